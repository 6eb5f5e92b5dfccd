package scheduler

import (
	"fmt"
	"math"
	"strings"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// Synthetic conditions forced by a weather trigger.
const (
	stormPrecipitationMM = 25.0
	heatwaveTemperatureC = 38.0
)

// severityFor returns the severity of per-store errors in a run.
func severityFor(t *domain.ReplenishmentTrigger) domain.Severity {
	if t != nil && t.Priority == domain.TriggerPriorityCritical {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}

// restrictStores keeps the stores named by the trigger, falling back to
// every active store when the trigger names none or none of them match.
func restrictStores(stores []domain.Store, t *domain.ReplenishmentTrigger) []domain.Store {
	if t == nil || len(t.StoreIDs) == 0 {
		return stores
	}
	wanted := toSet(t.StoreIDs)
	out := make([]domain.Store, 0, len(wanted))
	for _, s := range stores {
		if wanted[s.ID] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return stores
	}
	return out
}

// restrictProducts keeps the products named by the trigger, falling back to
// the full active set when the trigger names none or none of them match.
func restrictProducts(products []domain.Product, t *domain.ReplenishmentTrigger) []domain.Product {
	if t == nil || len(t.ProductIDs) == 0 {
		return products
	}
	wanted := toSet(t.ProductIDs)
	out := make([]domain.Product, 0, len(wanted))
	for _, p := range products {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return products
	}
	return out
}

// perturb returns a copy of the store's factors with the trigger's
// conditions forced on top.
func perturb(f *domain.ExternalFactors, t *domain.ReplenishmentTrigger) *domain.ExternalFactors {
	out := &domain.ExternalFactors{}
	if f != nil {
		*out = *f
		out.Holidays = append([]domain.Holiday(nil), f.Holidays...)
		out.Promotions = append([]domain.Promotion(nil), f.Promotions...)
		out.StoreEvents = append([]domain.StoreEvent(nil), f.StoreEvents...)
		if f.Weather != nil {
			w := *f.Weather
			out.Weather = &w
		}
	}
	if t == nil {
		return out
	}

	switch t.Type {
	case domain.TriggerWeatherEvent:
		w := domain.Weather{}
		if out.Weather != nil {
			w = *out.Weather
		}
		switch strings.ToLower(payloadString(t.Payload, "condition")) {
		case "heatwave":
			w.Heatwave = true
			temp := math.Max(heatwaveTemperatureC, payloadFloat(t.Payload, "temperature_c"))
			w.TemperatureC = &temp
		default:
			w.Storm = true
			w.PrecipitationMM = math.Max(w.PrecipitationMM, math.Max(stormPrecipitationMM, payloadFloat(t.Payload, "precipitation_mm")))
		}
		out.Weather = &w

	case domain.TriggerPromotion:
		discount := payloadFloat(t.Payload, "discount_percent")
		if discount <= 0 {
			break
		}
		targets := t.ProductIDs
		if len(targets) == 0 {
			targets = []string{payloadString(t.Payload, "product_id")}
		}
		for _, productID := range targets {
			out.Promotions = append(out.Promotions, domain.Promotion{
				ID:              fmt.Sprintf("trigger:%s", t.ID),
				ProductID:       productID,
				DiscountPercent: discount,
			})
		}
	}
	return out
}

// excludedVendors returns the vendors a disruption trigger takes out of
// selection.
func excludedVendors(t *domain.ReplenishmentTrigger) map[string]bool {
	if t == nil || t.Type != domain.TriggerVendorDisruption {
		return nil
	}
	ids := payloadStrings(t.Payload, "vendor_ids")
	if id := payloadString(t.Payload, "vendor_id"); id != "" {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	return toSet(ids)
}

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func payloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func payloadStrings(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
