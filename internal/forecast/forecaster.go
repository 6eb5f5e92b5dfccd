// Package forecast turns per product/store usage history into a daily
// usage estimate using an ensemble of time-series models.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/seasonal"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

const (
	// MinEnsembleHistory is the number of observed days needed before the
	// ensemble is attempted.
	MinEnsembleHistory = 30
	fallbackWindow     = 7
	fallbackConfidence = 0.5
	holidayLookahead   = 7 * 24 * time.Hour
)

// PatternCache stores detected seasonal patterns between runs. A cached
// pattern whose fingerprint differs from the current history is stale.
type PatternCache interface {
	Get(ctx context.Context, productID, storeID string) (*domain.SeasonalPattern, bool, error)
	Set(ctx context.Context, pattern *domain.SeasonalPattern) error
}

// Request is the input of one forecast.
type Request struct {
	ProductID string
	StoreID   string
	History   []domain.UsageObservation
	Factors   *domain.ExternalFactors
	// AsOf anchors promotion, event and holiday windows. Defaults to the
	// day after the last observation.
	AsOf time.Time
}

type Forecaster struct {
	models   []Model
	detector *seasonal.Detector
	patterns PatternCache
}

type Option func(*Forecaster)

func WithPatternCache(c PatternCache) Option {
	return func(f *Forecaster) { f.patterns = c }
}

func WithModels(models ...Model) Option {
	return func(f *Forecaster) { f.models = models }
}

func New(opts ...Option) *Forecaster {
	f := &Forecaster{
		models:   DefaultModels(),
		detector: seasonal.NewDetector(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forecast produces the usage forecast for one product at one store. The
// result depends only on the request; model failures degrade to the
// fallback method instead of returning an error.
func (f *Forecaster) Forecast(ctx context.Context, req Request) (*domain.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series := seasonal.Annotate(req.ProductID, req.History, req.Factors)
	asOf := req.AsOf
	if asOf.IsZero() && len(series) > 0 {
		asOf = series[len(series)-1].Date.AddDate(0, 0, 1)
	}

	if len(series) < MinEnsembleHistory {
		return fallback(req, series, asOf), nil
	}

	pattern := f.pattern(ctx, req, series, asOf)
	in := ModelInput{
		Series:  series,
		Future:  seasonal.Future(series, Horizon),
		Pattern: pattern,
	}

	results := f.runModels(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := combine(results, Horizon)
	if err != nil {
		log.Debug().
			Str("product_id", req.ProductID).
			Str("store_id", req.StoreID).
			Err(err).
			Msg("ensemble unavailable, using fallback forecast")
		fc := fallback(req, series, asOf)
		fc.ModelMetrics = metrics(results)
		return fc, nil
	}

	mult := ExternalMultiplier(req.ProductID, asOf, activeFactors(req.Factors, asOf), pattern)
	scale := func(xs []float64) []float64 {
		out := make([]float64, len(xs))
		for i, x := range xs {
			out[i] = x * mult
		}
		return out
	}

	next30 := scale(c.values)
	return &domain.Forecast{
		ProductID:            req.ProductID,
		StoreID:              req.StoreID,
		ForecastedDailyUsage: next30[0],
		Confidence:           c.confidence,
		SeasonalityFactor:    seasonalityFactor(req.History, pattern, in.Future[0]),
		TrendComponent:       pattern.TrendSlope,
		Next7Days:            append([]float64(nil), next30[:7]...),
		Next30Days:           next30,
		ConfidenceInterval: domain.ConfidenceInterval{
			Lower: scale(c.lower),
			Upper: scale(c.upper),
		},
		ModelMetrics:     metrics(results),
		Method:           domain.ForecastMethodEnsemble,
		UsageVariability: c.variability,
		ExternalFactor:   mult,
		Observations:     len(series),
		GeneratedAt:      asOf,
	}, nil
}

func (f *Forecaster) runModels(ctx context.Context, in ModelInput) []modelResult {
	results := make([]modelResult, len(f.models))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range f.models {
		g.Go(func() error {
			results[i] = runModel(gctx, m, in)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runModel(ctx context.Context, m Model, in ModelInput) (res modelResult) {
	res = modelResult{name: m.Name(), weight: m.Weight()}
	defer func() {
		if r := recover(); r != nil {
			res.values = nil
			res.err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	res.values, res.err = m.Predict(ctx, in)
	return res
}

func (f *Forecaster) pattern(ctx context.Context, req Request, series []seasonal.Point, asOf time.Time) *domain.SeasonalPattern {
	fingerprint := seasonal.Fingerprint(req.History)
	if f.patterns != nil {
		cached, ok, err := f.patterns.Get(ctx, req.ProductID, req.StoreID)
		if err != nil {
			log.Warn().Err(err).Str("product_id", req.ProductID).Str("store_id", req.StoreID).Msg("seasonal pattern cache read failed")
		}
		if ok && cached != nil && cached.Fingerprint == fingerprint {
			return cached
		}
	}

	p := f.detector.Detect(req.ProductID, req.StoreID, series, asOf)
	p.Fingerprint = fingerprint
	if f.patterns != nil {
		if err := f.patterns.Set(ctx, p); err != nil {
			log.Warn().Err(err).Str("product_id", req.ProductID).Str("store_id", req.StoreID).Msg("seasonal pattern cache write failed")
		}
	}
	return p
}

// fallback averages the trailing observations. No ensemble, no seasonal
// or external adjustment.
func fallback(req Request, series []seasonal.Point, asOf time.Time) *domain.Forecast {
	values := seasonal.Values(series)
	if len(values) > fallbackWindow {
		values = values[len(values)-fallbackWindow:]
	}
	avg := stats.Mean(values)
	half := intervalZ * stats.StdDev(values)

	next30 := make([]float64, Horizon)
	lower := make([]float64, Horizon)
	upper := make([]float64, Horizon)
	for i := range next30 {
		next30[i] = avg
		lower[i] = math.Max(0, avg-half)
		upper[i] = avg + half
	}

	return &domain.Forecast{
		ProductID:            req.ProductID,
		StoreID:              req.StoreID,
		ForecastedDailyUsage: avg,
		Confidence:           fallbackConfidence,
		SeasonalityFactor:    1,
		Next7Days:            append([]float64(nil), next30[:7]...),
		Next30Days:           next30,
		ConfidenceInterval:   domain.ConfidenceInterval{Lower: lower, Upper: upper},
		Method:               domain.ForecastMethodFallback,
		UsageVariability:     stats.CoefficientOfVariation(values),
		ExternalFactor:       1,
		Observations:         len(series),
		GeneratedAt:          asOf,
	}
}

// seasonalityFactor is the weekly times monthly index of the first
// forecast day. Histories never flagged as seasonally sensitive get 1.
func seasonalityFactor(history []domain.UsageObservation, p *domain.SeasonalPattern, next seasonal.Point) float64 {
	sensitive := false
	for _, obs := range history {
		if obs.SeasonallySensitive {
			sensitive = true
			break
		}
	}
	if !sensitive {
		return 1
	}
	return seasonal.WeeklyIndex(p, next.Weekday) * seasonal.MonthlyIndex(p, next.Month)
}

// activeFactors drops holidays that fall outside the lookahead from asOf.
// Holidays without a date are always active.
func activeFactors(f *domain.ExternalFactors, asOf time.Time) *domain.ExternalFactors {
	if f == nil || len(f.Holidays) == 0 {
		return f
	}
	out := *f
	out.Holidays = nil
	from := asOf.Truncate(24 * time.Hour)
	for _, h := range f.Holidays {
		if h.Date.IsZero() || (!h.Date.Before(from) && h.Date.Before(from.Add(holidayLookahead))) {
			out.Holidays = append(out.Holidays, h)
		}
	}
	return &out
}
