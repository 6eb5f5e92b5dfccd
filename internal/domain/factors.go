package domain

import "time"

// ExternalFactors are optional context signals applied on top of a forecast.
// A nil value or empty slice is neutral.
type ExternalFactors struct {
	Weather     *Weather     `json:"weather,omitempty"`
	Holidays    []Holiday    `json:"holidays,omitempty"`
	Promotions  []Promotion  `json:"promotions,omitempty"`
	StoreEvents []StoreEvent `json:"store_events,omitempty"`
}

// Weather describes current or forecast conditions around a store.
type Weather struct {
	Storm           bool     `json:"storm"`
	Heatwave        bool     `json:"heatwave"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	PrecipitationMM float64  `json:"precipitation_mm"`
}

// Holiday is an entry of the holiday calendar. Tag selects the seasonal
// event multiplier; empty means "holiday".
type Holiday struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
	Tag  string    `json:"tag,omitempty"`
}

// Promotion is an active promotion. An empty ProductID applies store-wide.
type Promotion struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id,omitempty"`
	DiscountPercent float64   `json:"discount_percent"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// AppliesTo reports whether the promotion covers productID at t.
// Zero bounds are open.
func (p Promotion) AppliesTo(productID string, t time.Time) bool {
	if p.ProductID != "" && p.ProductID != productID {
		return false
	}
	return withinWindow(t, p.StartsAt, p.EndsAt)
}

// StoreEvent is a local event (opening, renovation, fair) with a demand impact factor.
type StoreEvent struct {
	Name         string    `json:"name"`
	ImpactFactor float64   `json:"impact_factor"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

// ActiveAt reports whether the event is running at t. Zero bounds are open.
func (e StoreEvent) ActiveAt(t time.Time) bool {
	return withinWindow(t, e.StartsAt, e.EndsAt)
}

func withinWindow(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
