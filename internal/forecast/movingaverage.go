package forecast

import (
	"context"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/seasonal"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

const maxAverageWindow = 14

var weekdayMultiplier = map[time.Weekday]float64{
	time.Monday:    0.90,
	time.Tuesday:   0.95,
	time.Wednesday: 1.00,
	time.Thursday:  1.00,
	time.Friday:    1.10,
	time.Saturday:  1.20,
	time.Sunday:    0.85,
}

// MovingAverage projects the recent mean through a fixed weekday table.
type MovingAverage struct{}

func (MovingAverage) Name() string    { return "moving_average" }
func (MovingAverage) Weight() float64 { return 0.1 }

func (MovingAverage) Predict(_ context.Context, in ModelInput) ([]float64, error) {
	y := seasonal.Values(in.Series)
	window := len(y) / 3
	if window > maxAverageWindow {
		window = maxAverageWindow
	}
	if window < 1 {
		return nil, errInsufficientHistory
	}

	base := stats.Mean(y[len(y)-window:])
	out := make([]float64, len(in.Future))
	for h, p := range in.Future {
		out[h] = base * weekdayMultiplier[p.Weekday]
	}
	return out, nil
}
