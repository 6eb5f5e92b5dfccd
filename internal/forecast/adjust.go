package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// Weather impact contributions; their sum is capped at 1.
const (
	stormImpact         = 0.5
	heatwaveImpact      = 0.3
	extremeTempImpact   = 0.2
	precipitationImpact = 0.3

	extremeHeatC       = 35.0
	extremeColdC       = -5.0
	heavyPrecipitation = 10.0
)

// WeatherIndex maps conditions to a value in [0, 1].
func WeatherIndex(w *domain.Weather) float64 {
	if w == nil {
		return 0
	}
	var idx float64
	if w.Storm {
		idx += stormImpact
	}
	if w.Heatwave {
		idx += heatwaveImpact
	}
	if w.TemperatureC != nil && (*w.TemperatureC >= extremeHeatC || *w.TemperatureC <= extremeColdC) {
		idx += extremeTempImpact
	}
	if w.PrecipitationMM >= heavyPrecipitation {
		idx += precipitationImpact
	}
	return math.Min(1, idx)
}

// ExternalMultiplier folds every active external factor into one scalar.
// Holidays use the pattern's multiplier for their tag; promotions scale by
// their discount; store events by their impact factor.
func ExternalMultiplier(productID string, at time.Time, f *domain.ExternalFactors, pattern *domain.SeasonalPattern) float64 {
	if f == nil {
		return 1
	}

	mult := 1 + WeatherIndex(f.Weather)
	for _, h := range f.Holidays {
		tag := h.Tag
		if tag == "" {
			tag = domain.EventTagHoliday
		}
		mult *= pattern.EventMultiplier(tag)
	}
	for _, p := range f.Promotions {
		if p.AppliesTo(productID, at) && p.DiscountPercent > 0 {
			mult *= 1 + p.DiscountPercent/100
		}
	}
	for _, e := range f.StoreEvents {
		if e.ActiveAt(at) && e.ImpactFactor > 0 {
			mult *= e.ImpactFactor
		}
	}
	return mult
}
