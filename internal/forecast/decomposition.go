package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/andresuchdata/replenishment-engine/internal/seasonal"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

// Decomposition splits the series into an OLS trend, a weekly component and
// a monthly component; the residual is discarded.
type Decomposition struct{}

func (Decomposition) Name() string    { return "seasonal_decomposition" }
func (Decomposition) Weight() float64 { return 0.4 }

func (Decomposition) Predict(_ context.Context, in ModelInput) ([]float64, error) {
	y := seasonal.Values(in.Series)
	if len(y) < 2*weeklySeason {
		return nil, errInsufficientHistory
	}

	slope, intercept, err := stats.IndexFit(y)
	if err != nil {
		return nil, fmt.Errorf("trend fit: %w", err)
	}

	detrended := make([]float64, len(y))
	for i, v := range y {
		detrended[i] = v - (intercept + slope*float64(i))
	}

	var wSum [7]float64
	var wCount [7]int
	for i, p := range in.Series {
		wSum[p.Weekday] += detrended[i]
		wCount[p.Weekday]++
	}
	var weekly [7]float64
	for d := range weekly {
		if wCount[d] > 0 {
			weekly[d] = wSum[d] / float64(wCount[d])
		}
	}

	var mSum [12]float64
	var mCount [12]int
	for i, p := range in.Series {
		mSum[p.Month-1] += detrended[i] - weekly[p.Weekday]
		mCount[p.Month-1]++
	}
	var monthly [12]float64
	for m := range monthly {
		if mCount[m] > 0 {
			monthly[m] = mSum[m] / float64(mCount[m])
		}
	}

	out := make([]float64, len(in.Future))
	for h, p := range in.Future {
		t := float64(p.Index)
		v := intercept + slope*t + weekly[p.Weekday] + monthly[p.Month-1]
		out[h] = math.Max(0, v)
	}
	return out, nil
}
