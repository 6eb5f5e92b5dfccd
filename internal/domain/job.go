package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobType identifies a scheduler job.
type JobType string

const (
	JobTypeNightly JobType = "nightly"
	JobTypeWeekly  JobType = "weekly"
	JobTypeMonthly JobType = "monthly"
	JobTypeTrigger JobType = "trigger"
)

// JobStatus is the outcome of a scheduler run.
type JobStatus string

const (
	JobStatusSuccess        JobStatus = "SUCCESS"
	JobStatusPartialFailure JobStatus = "PARTIAL_FAILURE"
	JobStatusFailed         JobStatus = "FAILED"
)

// Severity of a per-store error.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// StoreError records a failure isolated to one store during a run.
type StoreError struct {
	StoreID   string   `json:"store_id"`
	ProductID string   `json:"product_id,omitempty"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// ForecastQuality summarises forecasts produced during a run.
type ForecastQuality struct {
	Forecasts          int     `json:"forecasts"`
	EnsembleCount      int     `json:"ensemble_count"`
	FallbackCount      int     `json:"fallback_count"`
	AverageConfidence  float64 `json:"average_confidence"`
	AverageVariability float64 `json:"average_variability"`
}

// Add folds a single forecast into the running averages.
func (q *ForecastQuality) Add(f *Forecast) {
	if f == nil {
		return
	}
	n := float64(q.Forecasts)
	q.AverageConfidence = (q.AverageConfidence*n + f.Confidence) / (n + 1)
	q.AverageVariability = (q.AverageVariability*n + f.UsageVariability) / (n + 1)
	q.Forecasts++
	if f.Method == ForecastMethodEnsemble {
		q.EnsembleCount++
	} else {
		q.FallbackCount++
	}
}

// Merge combines two quality summaries.
func (q *ForecastQuality) Merge(o ForecastQuality) {
	total := q.Forecasts + o.Forecasts
	if total == 0 {
		return
	}
	q.AverageConfidence = (q.AverageConfidence*float64(q.Forecasts) + o.AverageConfidence*float64(o.Forecasts)) / float64(total)
	q.AverageVariability = (q.AverageVariability*float64(q.Forecasts) + o.AverageVariability*float64(o.Forecasts)) / float64(total)
	q.Forecasts = total
	q.EnsembleCount += o.EnsembleCount
	q.FallbackCount += o.FallbackCount
}

// ScheduledJobResult is the audit record of one scheduler run.
type ScheduledJobResult struct {
	ID                   string          `json:"id" db:"id"`
	JobType              JobType         `json:"job_type" db:"job_type"`
	TriggerID            string          `json:"trigger_id,omitempty" db:"trigger_id"`
	Status               JobStatus       `json:"status" db:"status"`
	StartedAt            time.Time       `json:"started_at" db:"started_at"`
	CompletedAt          time.Time       `json:"completed_at" db:"completed_at"`
	StoresProcessed      int             `json:"stores_processed" db:"stores_processed"`
	ProductsAnalyzed     int             `json:"products_analyzed" db:"products_analyzed"`
	SuggestionsGenerated int             `json:"suggestions_generated" db:"suggestions_generated"`
	OrdersGenerated      int             `json:"orders_generated" db:"orders_generated"`
	// SuggestionsSaved counts suggestions persisted for manual review.
	SuggestionsSaved     int             `json:"suggestions_saved" db:"suggestions_saved"`
	OrderIDs             []string        `json:"order_ids,omitempty"`
	TotalCost            decimal.Decimal `json:"total_cost" db:"total_cost"`
	SuccessRate          float64         `json:"success_rate" db:"success_rate"`
	Errors               []StoreError    `json:"errors"`
	ForecastQuality      ForecastQuality `json:"forecast_quality"`
	FailureReason        string          `json:"failure_reason,omitempty" db:"failure_reason"`
}

// TriggerType identifies the event behind a replenishment trigger.
type TriggerType string

const (
	TriggerStockoutAlert    TriggerType = "STOCKOUT_ALERT"
	TriggerWeatherEvent     TriggerType = "WEATHER_EVENT"
	TriggerPromotion        TriggerType = "PROMOTION"
	TriggerVendorDisruption TriggerType = "VENDOR_DISRUPTION"
	TriggerManual           TriggerType = "MANUAL"
)

// TriggerPriority is the urgency of a trigger.
type TriggerPriority string

const (
	TriggerPriorityCritical TriggerPriority = "CRITICAL"
	TriggerPriorityHigh     TriggerPriority = "HIGH"
	TriggerPriorityNormal   TriggerPriority = "NORMAL"
	TriggerPriorityLow      TriggerPriority = "LOW"
)

// ReplenishmentTrigger is an event-driven request to run the engine outside
// its fixed cadence.
type ReplenishmentTrigger struct {
	ID          string          `json:"id" db:"id"`
	Type        TriggerType     `json:"type" db:"trigger_type"`
	StoreIDs    []string        `json:"store_ids"`
	ProductIDs  []string        `json:"product_ids"`
	Priority    TriggerPriority `json:"priority" db:"priority"`
	Payload     map[string]any  `json:"payload"`
	Processed   bool            `json:"processed" db:"processed"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
