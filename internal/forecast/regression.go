package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/andresuchdata/replenishment-engine/internal/seasonal"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

const ridgePenalty = 1e-6

// Regression is a linear model over calendar features fitted by least
// squares. Future holiday and promotion flags are unknown and set to 0.
type Regression struct{}

func (Regression) Name() string    { return "linear_regression" }
func (Regression) Weight() float64 { return 0.2 }

func (Regression) Predict(_ context.Context, in ModelInput) ([]float64, error) {
	n := len(in.Series)
	if n < 2*weeklySeason {
		return nil, errInsufficientHistory
	}

	x := make([][]float64, n)
	y := make([]float64, n)
	for i, p := range in.Series {
		x[i] = features(p, n, true)
		y[i] = p.Value
	}

	coef, err := stats.LeastSquares(x, y, ridgePenalty)
	if err != nil {
		return nil, fmt.Errorf("least squares: %w", err)
	}

	out := make([]float64, len(in.Future))
	for h, p := range in.Future {
		var v float64
		for j, f := range features(p, n, false) {
			v += coef[j] * f
		}
		out[h] = math.Max(0, v)
	}
	return out, nil
}

func features(p seasonal.Point, n int, observed bool) []float64 {
	t := float64(p.Index)
	weekly := 2 * math.Pi * t / weeklySeason
	yearly := 2 * math.Pi * float64(p.DayOfYear) / 365.25

	var weekend, holiday, promo float64
	if p.Weekend {
		weekend = 1
	}
	if observed && p.IsHoliday {
		holiday = 1
	}
	if observed && p.IsPromotion {
		promo = 1
	}
	return []float64{
		1,
		t / float64(n),
		weekend,
		holiday,
		promo,
		math.Sin(weekly),
		math.Cos(weekly),
		math.Sin(yearly),
		math.Cos(yearly),
	}
}
