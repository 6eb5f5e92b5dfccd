package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority of a replenishment suggestion.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank orders priorities; higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ReplenishmentSuggestion is the engine's reorder recommendation for one
// product at one store.
type ReplenishmentSuggestion struct {
	ID                   string          `json:"id" db:"id"`
	JobRunID             string          `json:"job_run_id,omitempty" db:"job_run_id"`
	ProductID            string          `json:"product_id" db:"product_id"`
	StoreID              string          `json:"store_id" db:"store_id"`
	VendorID             string          `json:"vendor_id" db:"vendor_id"`
	VendorName           string          `json:"vendor_name" db:"vendor_name"`
	CurrentAvailable     int             `json:"current_available" db:"current_available"`
	InTransit            int             `json:"in_transit" db:"in_transit"`
	SafetyStock          int             `json:"safety_stock" db:"safety_stock"`
	ReorderPoint         int             `json:"reorder_point" db:"reorder_point"`
	AdjustedReorderPoint float64         `json:"adjusted_reorder_point" db:"adjusted_reorder_point"`
	TargetOnHand         int             `json:"target_on_hand" db:"target_on_hand"`
	DaysOfCover          int             `json:"days_of_cover" db:"days_of_cover"`
	QuantityNeeded       int             `json:"quantity_needed" db:"quantity_needed"`
	UnitCost             decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	EstimatedCost        decimal.Decimal `json:"estimated_cost" db:"estimated_cost"`
	Priority             Priority        `json:"priority" db:"priority"`
	Confidence           float64         `json:"confidence" db:"confidence"`
	SeasonalityFactor    float64         `json:"seasonality_factor" db:"seasonality_factor"`
	PredictedDailyUsage  float64         `json:"predicted_daily_usage" db:"predicted_daily_usage"`
	ForecastMethod       ForecastMethod  `json:"forecast_method" db:"forecast_method"`
	NeedGroup            string          `json:"need_group,omitempty" db:"need_group"`
	Justification        string          `json:"justification" db:"justification"`
	GeneratedAt          time.Time       `json:"generated_at" db:"generated_at"`
	ExpiresAt            time.Time       `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the suggestion is past its validity window and
// must be regenerated rather than reused.
func (s ReplenishmentSuggestion) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
