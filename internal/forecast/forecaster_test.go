package forecast

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

var historyStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func usage(values ...float64) []domain.UsageObservation {
	out := make([]domain.UsageObservation, len(values))
	for i, v := range values {
		out[i] = domain.UsageObservation{
			ProductID: "p1",
			StoreID:   "s1",
			Date:      historyStart.AddDate(0, 0, i),
			Quantity:  v,
		}
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestForecastFallbackBelowMinimumHistory(t *testing.T) {
	values := append(constant(10, 100), 4, 6, 4, 6, 4, 6, 4)
	fc, err := New().Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: usage(values...)})
	require.NoError(t, err)

	assert.Equal(t, domain.ForecastMethodFallback, fc.Method)
	assert.InDelta(t, 34.0/7, fc.ForecastedDailyUsage, 1e-9)
	assert.Equal(t, 0.5, fc.Confidence)
	assert.Equal(t, 1.0, fc.SeasonalityFactor)
	assert.Len(t, fc.Next7Days, 7)
	assert.Len(t, fc.Next30Days, Horizon)
	assert.Greater(t, fc.UsageVariability, 0.0)
	assert.Empty(t, fc.ModelMetrics)
}

func TestForecastEmptyHistoryIsZero(t *testing.T) {
	fc, err := New().Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, fc.ForecastedDailyUsage)
	assert.Equal(t, domain.ForecastMethodFallback, fc.Method)
}

func TestForecastEnsembleOnStableDemand(t *testing.T) {
	fc, err := New().Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: usage(constant(60, 10)...)})
	require.NoError(t, err)

	assert.Equal(t, domain.ForecastMethodEnsemble, fc.Method)
	assert.InDelta(t, 10.0, fc.ForecastedDailyUsage, 0.3)
	assert.Greater(t, fc.Confidence, 0.9)
	assert.LessOrEqual(t, fc.Confidence, 1.0)
	assert.Len(t, fc.ModelMetrics, 4)
	for _, m := range fc.ModelMetrics {
		assert.False(t, m.Failed, m.Name)
	}
	require.Len(t, fc.Next30Days, Horizon)
	for h, v := range fc.Next30Days {
		assert.LessOrEqual(t, fc.ConfidenceInterval.Lower[h], v)
		assert.GreaterOrEqual(t, fc.ConfidenceInterval.Upper[h], v)
		assert.GreaterOrEqual(t, fc.ConfidenceInterval.Lower[h], 0.0)
	}
	assert.Equal(t, 1.0, fc.ExternalFactor)
	assert.Equal(t, historyStart.AddDate(0, 0, 60), fc.GeneratedAt)
}

func TestForecastAppliesExternalMultiplier(t *testing.T) {
	history := usage(constant(45, 8)...)
	base, err := New().Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: history})
	require.NoError(t, err)

	factors := &domain.ExternalFactors{
		Weather:    &domain.Weather{Storm: true},
		Promotions: []domain.Promotion{{ID: "promo", ProductID: "p1", DiscountPercent: 20}},
	}
	adjusted, err := New().Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: history, Factors: factors})
	require.NoError(t, err)

	assert.InDelta(t, 1.8, adjusted.ExternalFactor, 1e-9)
	assert.InDelta(t, base.ForecastedDailyUsage*1.8, adjusted.ForecastedDailyUsage, 1e-9)
	assert.InDelta(t, base.Next30Days[29]*1.8, adjusted.Next30Days[29], 1e-9)
	assert.InDelta(t, base.ConfidenceInterval.Upper[0]*1.8, adjusted.ConfidenceInterval.Upper[0], 1e-9)
}

type failingModel struct{ panics bool }

func (failingModel) Name() string    { return "failing" }
func (failingModel) Weight() float64 { return 1 }
func (m failingModel) Predict(context.Context, ModelInput) ([]float64, error) {
	if m.panics {
		panic("boom")
	}
	return nil, errors.New("degenerate variance")
}

func TestForecastAllModelsFailFallsBack(t *testing.T) {
	f := New(WithModels(failingModel{}, failingModel{panics: true}))
	fc, err := f.Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: usage(constant(40, 5)...)})
	require.NoError(t, err)

	assert.Equal(t, domain.ForecastMethodFallback, fc.Method)
	assert.Equal(t, 5.0, fc.ForecastedDailyUsage)
	require.Len(t, fc.ModelMetrics, 2)
	assert.True(t, fc.ModelMetrics[0].Failed)
	assert.Contains(t, fc.ModelMetrics[1].Error, "panicked")
}

func TestForecastFailedModelIsExcluded(t *testing.T) {
	f := New(WithModels(MovingAverage{}, failingModel{}))
	fc, err := f.Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: usage(constant(42, 10)...)})
	require.NoError(t, err)

	assert.Equal(t, domain.ForecastMethodEnsemble, fc.Method)
	// Only the moving average contributes: one prediction, no spread.
	assert.Equal(t, 1.0, fc.Confidence)
	assert.Equal(t, fc.Next30Days[0], fc.ConfidenceInterval.Upper[0])
}

func TestForecastCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Forecast(ctx, Request{History: usage(constant(40, 1)...)})
	assert.ErrorIs(t, err, context.Canceled)
}

type memoryPatternCache struct {
	mu      sync.Mutex
	entries map[string]*domain.SeasonalPattern
	hits    int
	sets    int
}

func (c *memoryPatternCache) Get(_ context.Context, productID, storeID string) (*domain.SeasonalPattern, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[productID+":"+storeID]
	if ok {
		c.hits++
	}
	return p, ok, nil
}

func (c *memoryPatternCache) Set(_ context.Context, p *domain.SeasonalPattern) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.ProductID+":"+p.StoreID] = p
	c.sets++
	return nil
}

func TestForecastReusesFreshPatternAndRecomputesStale(t *testing.T) {
	cache := &memoryPatternCache{entries: map[string]*domain.SeasonalPattern{}}
	f := New(WithPatternCache(cache))
	history := usage(constant(35, 3)...)

	_, err := f.Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: history})
	require.NoError(t, err)
	_, err = f.Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: history})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	history = append(history, domain.UsageObservation{Date: historyStart.AddDate(0, 0, 35), Quantity: 9})
	_, err = f.Forecast(context.Background(), Request{ProductID: "p1", StoreID: "s1", History: history})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
}

func TestForecastIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	f := New()
	properties.Property("identical input yields identical forecasts", prop.ForAll(
		func(values []float64, storm bool) bool {
			req := Request{
				ProductID: "p1",
				StoreID:   "s1",
				History:   usage(values...),
				Factors:   &domain.ExternalFactors{Weather: &domain.Weather{Storm: storm}},
			}
			a, errA := f.Forecast(context.Background(), req)
			b, errB := f.Forecast(context.Background(), req)
			return errA == nil && errB == nil && reflect.DeepEqual(a, b)
		},
		gen.SliceOfN(45, gen.Float64Range(0, 50)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestCombineRenormalisesPerHorizon(t *testing.T) {
	short := constant(Horizon, math.NaN())
	for i := 0; i < 10; i++ {
		short[i] = 20
	}
	results := []modelResult{
		{name: "full", weight: 0.5, values: constant(Horizon, 10)},
		{name: "short", weight: 0.5, values: short},
		{name: "broken", weight: 0.4, err: errors.New("singular")},
	}

	c, err := combine(results, Horizon)
	require.NoError(t, err)
	assert.Equal(t, 15.0, c.values[0])
	assert.Equal(t, 10.0, c.values[20])
	assert.InDelta(t, 1-5.0/15, c.confidence, 1e-12)
	assert.InDelta(t, 15-1.96*5, c.lower[0], 1e-12)
	assert.Equal(t, 10.0, c.upper[20])

	_, err = combine([]modelResult{{err: errors.New("x")}}, Horizon)
	assert.ErrorIs(t, err, ErrAllModelsFailed)
}

func TestConfidenceFloor(t *testing.T) {
	assert.Equal(t, minConfidence, confidence([]float64{0, 0}))
	assert.Equal(t, minConfidence, confidence([]float64{1, 100}))
}
