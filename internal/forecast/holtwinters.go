package forecast

import (
	"context"
	"math"

	"github.com/andresuchdata/replenishment-engine/internal/seasonal"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

const weeklySeason = 7

// HoltWinters is additive triple exponential smoothing with a weekly season.
type HoltWinters struct {
	Alpha, Beta, Gamma float64
}

func (HoltWinters) Name() string    { return "holt_winters" }
func (HoltWinters) Weight() float64 { return 0.3 }

func (m HoltWinters) Predict(ctx context.Context, in ModelInput) ([]float64, error) {
	y := seasonal.Values(in.Series)
	n := len(y)
	if n < 2*weeklySeason {
		return nil, errInsufficientHistory
	}

	first := stats.Mean(y[:weeklySeason])
	second := stats.Mean(y[weeklySeason : 2*weeklySeason])
	level := first
	trend := (second - first) / weeklySeason
	season := make([]float64, weeklySeason)
	for i := 0; i < weeklySeason; i++ {
		season[i] = y[i] - first
	}

	for t := weeklySeason; t < n; t++ {
		if t%256 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s := season[t%weeklySeason]
		prev := level
		level = m.Alpha*(y[t]-s) + (1-m.Alpha)*(level+trend)
		trend = m.Beta*(level-prev) + (1-m.Beta)*trend
		season[t%weeklySeason] = m.Gamma*(y[t]-level) + (1-m.Gamma)*s
	}

	out := make([]float64, len(in.Future))
	for h := range out {
		v := level + float64(h+1)*trend + season[(n+h)%weeklySeason]
		out[h] = math.Max(0, v)
	}
	return out, nil
}
