package domain

import "time"

// ForecastMethod identifies how a forecast was produced.
type ForecastMethod string

const (
	ForecastMethodEnsemble ForecastMethod = "ensemble"
	ForecastMethodFallback ForecastMethod = "fallback"
)

// ConfidenceInterval holds per-horizon lower and upper bounds.
type ConfidenceInterval struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// ModelMetric describes one ensemble member's contribution.
type ModelMetric struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	FirstValue float64 `json:"first_value"`
	Horizons   int     `json:"horizons"`
	Failed     bool    `json:"failed"`
	Error      string  `json:"error,omitempty"`
}

// Forecast is the daily-usage estimate for one product at one store.
type Forecast struct {
	ProductID            string             `json:"product_id"`
	StoreID              string             `json:"store_id"`
	ForecastedDailyUsage float64            `json:"forecasted_daily_usage"`
	Confidence           float64            `json:"confidence"`
	SeasonalityFactor    float64            `json:"seasonality_factor"`
	TrendComponent       float64            `json:"trend_component"`
	Next7Days            []float64          `json:"next_7_days"`
	Next30Days           []float64          `json:"next_30_days"`
	ConfidenceInterval   ConfidenceInterval `json:"confidence_interval"`
	ModelMetrics         []ModelMetric      `json:"model_metrics"`
	Method               ForecastMethod     `json:"method"`
	// UsageVariability is the relative spread used to size safety stock:
	// interval half-width over mean prediction for the ensemble, the
	// coefficient of variation of the trailing window for the fallback.
	UsageVariability float64   `json:"usage_variability"`
	ExternalFactor   float64   `json:"external_factor"`
	Observations     int       `json:"observations"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// SeasonalPattern holds demand multipliers derived from usage history.
type SeasonalPattern struct {
	ProductID         string             `json:"product_id"`
	StoreID           string             `json:"store_id"`
	Weekly            [7]float64         `json:"weekly"`
	Monthly           [12]float64        `json:"monthly"`
	Quarterly         [4]float64         `json:"quarterly"`
	EventMultipliers  map[string]float64 `json:"event_multipliers"`
	WeeklyStrength    float64            `json:"weekly_strength"`
	MonthlyStrength   float64            `json:"monthly_strength"`
	QuarterlyStrength float64            `json:"quarterly_strength"`
	TrendSlope        float64            `json:"trend_slope"`
	TrendStrength     float64            `json:"trend_strength"`
	Mean              float64            `json:"mean"`
	Observations      int                `json:"observations"`
	Fingerprint       string             `json:"fingerprint"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// EventMultiplier returns the multiplier for tag, 1.0 when unknown.
func (p *SeasonalPattern) EventMultiplier(tag string) float64 {
	if p == nil {
		return 1
	}
	if m, ok := p.EventMultipliers[tag]; ok && m > 0 {
		return m
	}
	return 1
}
