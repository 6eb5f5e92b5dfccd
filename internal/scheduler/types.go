// Package scheduler drives the replenishment engine on fixed cadences and
// in response to triggers, and aggregates one audit record per run.
package scheduler

import (
	"errors"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

var (
	ErrJobRunning     = errors.New("job already running")
	ErrUnknownJobType = errors.New("unknown job type")
	ErrStopped        = errors.New("orchestrator stopped")
)

// RunStatus is the live state of a job type.
type RunStatus string

const (
	StatusIdle    RunStatus = "IDLE"
	StatusRunning RunStatus = "RUNNING"
)

const (
	nightlyLookback = 90 * 24 * time.Hour
	triggerLookback = 30 * 24 * time.Hour

	suggestionValidity = 7 * 24 * time.Hour
)

// JobState is a point-in-time view of one job type.
type JobState struct {
	JobType      domain.JobType   `json:"job_type"`
	Status       RunStatus        `json:"status"`
	NextFireAt   *time.Time       `json:"next_fire_at,omitempty"`
	LastRunAt    *time.Time       `json:"last_run_at,omitempty"`
	LastOutcome  domain.JobStatus `json:"last_outcome,omitempty"`
	LastResultID string           `json:"last_result_id,omitempty"`
}

// Config tunes the orchestrator and the per-run pipeline.
type Config struct {
	// Workers bounds concurrent store processing within one run.
	Workers int
	// CadenceLookback is the usage window of nightly, weekly and monthly runs.
	CadenceLookback time.Duration
	// TriggerLookback is the usage window of trigger runs.
	TriggerLookback time.Duration
	// ManualReview stores suggestions for review instead of creating orders.
	ManualReview bool
	// StoreTimeout bounds a single store's computation; 0 disables it.
	StoreTimeout time.Duration
	// TriggerPoll is the interval between pending trigger scans.
	TriggerPoll time.Duration
	// TriggerBatch caps how many pending triggers are read per scan.
	TriggerBatch int
	// SuggestionValidity dates suggestions created by need-group top-ups.
	SuggestionValidity time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.CadenceLookback <= 0 {
		c.CadenceLookback = nightlyLookback
	}
	if c.TriggerLookback <= 0 {
		c.TriggerLookback = triggerLookback
	}
	if c.TriggerPoll <= 0 {
		c.TriggerPoll = time.Minute
	}
	if c.TriggerBatch <= 0 {
		c.TriggerBatch = 100
	}
	if c.SuggestionValidity <= 0 {
		c.SuggestionValidity = suggestionValidity
	}
	return c
}

// runSpec describes one pass of the pipeline.
type runSpec struct {
	JobType  domain.JobType
	Lookback time.Duration
	Trigger  *domain.ReplenishmentTrigger
}

// storeOutcome is what one store contributes to a run.
type storeOutcome struct {
	StoreID          string
	Suggestions      []domain.ReplenishmentSuggestion
	Forecasts        []*domain.Forecast
	ProductsAnalyzed int
	Err              *domain.StoreError
	cause            error
}
