package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenishment-engine/internal/cache"
	"github.com/andresuchdata/replenishment-engine/internal/clock"
	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/forecast"
	"github.com/andresuchdata/replenishment-engine/internal/metrics"
	"github.com/andresuchdata/replenishment-engine/internal/replenishment"
	"github.com/andresuchdata/replenishment-engine/internal/repository"
	"github.com/andresuchdata/replenishment-engine/internal/repository/postgres"
	"github.com/andresuchdata/replenishment-engine/internal/scheduler"
	"github.com/andresuchdata/replenishment-engine/internal/sourcing"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 200
	defaultPreviewDays  = 90
)

// ErrInvalidRequest marks caller mistakes the API reports as 400.
var ErrInvalidRequest = errors.New("invalid request")

// Repositories are the data ports the engine runs against.
type Repositories struct {
	Catalog     repository.CatalogRepository
	Inventory   repository.InventoryRepository
	Usage       repository.UsageRepository
	Environment repository.EnvironmentProvider
	Performance repository.VendorPerformanceRepository
	Orders      repository.OrderWorkflow
	Suggestions repository.SuggestionRepository
	Triggers    repository.TriggerRepository
	Results     repository.JobResultRepository
}

// NewPostgresRepositories binds every port to the postgres adapters.
func NewPostgresRepositories(db *postgres.DB) Repositories {
	return Repositories{
		Catalog:     postgres.NewCatalogRepository(db),
		Inventory:   postgres.NewInventoryRepository(db),
		Usage:       postgres.NewUsageRepository(db),
		Environment: postgres.NewEnvironmentRepository(db),
		Performance: postgres.NewVendorPerformanceRepository(db),
		Orders:      postgres.NewOrderRepository(db),
		Suggestions: postgres.NewSuggestionRepository(db),
		Triggers:    postgres.NewTriggerRepository(db),
		Results:     postgres.NewJobResultRepository(db),
	}
}

// Options carry the optional collaborators. Nil caches fall back to noop
// implementations; a nil archive disables archiving.
type Options struct {
	Patterns  cache.SeasonalPatternCache
	Summaries cache.JobSummaryCache
	Archive   scheduler.ResultArchive
	Metrics   *metrics.EngineMetrics
	Clock     clock.Clock
}

// ReplenishmentService is the application facade over the engine, used by
// the HTTP API, the server and the CLI.
type ReplenishmentService struct {
	repos        Repositories
	forecaster   *forecast.Forecaster
	orchestrator *scheduler.Orchestrator
	summaries    cache.JobSummaryCache
	clock        clock.Clock
	lookback     time.Duration
}

func NewReplenishmentService(cfg *config.Config, repos Repositories, opts Options) (*ReplenishmentService, error) {
	if opts.Patterns == nil {
		opts.Patterns = cache.NewNoopSeasonalPatternCache()
	}
	if opts.Summaries == nil {
		opts.Summaries = cache.NewNoopJobSummaryCache()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	cadences, err := scheduler.CadencesFromConfig(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("schedule config: %w", err)
	}

	forecaster := forecast.New(forecast.WithPatternCache(opts.Patterns))
	selector := sourcing.NewSelector(sourcing.Weights{
		Cost:     cfg.Engine.CostWeight,
		LeadTime: cfg.Engine.LeadTimeWeight,
		SLA:      cfg.Engine.SLAWeight,
	})
	calculator := replenishment.NewCalculator(forecaster, selector, CalculatorConfig(cfg.Engine), opts.Clock.Now)

	schedCfg := SchedulerConfig(cfg)
	deps := scheduler.Dependencies{
		Catalog:     repos.Catalog,
		Inventory:   repos.Inventory,
		Usage:       repos.Usage,
		Environment: repos.Environment,
		Performance: repos.Performance,
		Orders:      repos.Orders,
		Suggestions: repos.Suggestions,
		Triggers:    repos.Triggers,
		Results:     repos.Results,
		Archive:     opts.Archive,
		Summaries:   opts.Summaries,
		Calculator:  calculator,
		Metrics:     opts.Metrics,
		Clock:       opts.Clock,
	}
	runner := scheduler.NewRunner(deps, schedCfg)

	return &ReplenishmentService{
		repos:        repos,
		forecaster:   forecaster,
		orchestrator: scheduler.NewOrchestrator(runner, cadences, schedCfg),
		summaries:    opts.Summaries,
		clock:        opts.Clock,
		lookback:     schedCfg.CadenceLookback,
	}, nil
}

// CalculatorConfig maps the engine settings onto the reorder policy.
func CalculatorConfig(e config.EngineConfig) replenishment.Config {
	return replenishment.Config{
		SafetyStockMultiplier: e.SafetyStockMultiplier,
		DaysOfCover: map[domain.StoreTier]int{
			domain.StoreTierPremium:  e.DaysOfCoverPremium,
			domain.StoreTierStandard: e.DaysOfCoverStandard,
			domain.StoreTierBasic:    e.DaysOfCoverBasic,
		},
		SuggestionValidity: time.Duration(e.SuggestionValidityDays) * 24 * time.Hour,
	}
}

// SchedulerConfig maps the engine and schedule settings onto the orchestrator.
func SchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Workers:            cfg.Engine.Workers,
		CadenceLookback:    days(cfg.Engine.CadenceLookbackDays),
		TriggerLookback:    days(cfg.Engine.TriggerLookbackDays),
		ManualReview:       cfg.Engine.ManualReview(),
		StoreTimeout:       time.Duration(cfg.Engine.StoreTimeoutSeconds) * time.Second,
		TriggerPoll:        cfg.Schedule.TriggerPollInterval(),
		SuggestionValidity: days(cfg.Engine.SuggestionValidityDays),
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Start arms the cadence timers and the trigger poller.
func (s *ReplenishmentService) Start(ctx context.Context) error {
	return s.orchestrator.Start(ctx)
}

// Stop disarms the timers and waits for in-flight runs.
func (s *ReplenishmentService) Stop(ctx context.Context) error {
	return s.orchestrator.Stop(ctx)
}

// RunJob runs a cadence job immediately.
func (s *ReplenishmentService) RunJob(ctx context.Context, label string) (*domain.ScheduledJobResult, error) {
	jobType, ok := domain.ParseJobType(label)
	if !ok {
		return nil, fmt.Errorf("%w: %q", scheduler.ErrUnknownJobType, label)
	}
	return s.orchestrator.RunNow(ctx, jobType)
}

// ProcessTriggers runs every pending trigger once.
func (s *ReplenishmentService) ProcessTriggers(ctx context.Context) ([]*domain.ScheduledJobResult, error) {
	return s.orchestrator.ProcessTriggers(ctx)
}

// TriggerRequest is the external form of a new trigger.
type TriggerRequest struct {
	Type       string         `json:"type" binding:"required"`
	Priority   string         `json:"priority"`
	StoreIDs   []string       `json:"store_ids"`
	ProductIDs []string       `json:"product_ids"`
	Payload    map[string]any `json:"payload"`
}

// SubmitTrigger validates and enqueues a trigger.
func (s *ReplenishmentService) SubmitTrigger(ctx context.Context, req TriggerRequest) (*domain.ReplenishmentTrigger, error) {
	triggerType, ok := domain.ParseTriggerType(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown trigger type %q", ErrInvalidRequest, req.Type)
	}
	t := &domain.ReplenishmentTrigger{
		Type:       triggerType,
		Priority:   domain.ParseTriggerPriority(req.Priority),
		StoreIDs:   compact(req.StoreIDs),
		ProductIDs: compact(req.ProductIDs),
		Payload:    req.Payload,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.orchestrator.Submit(ctx, t); err != nil {
		return nil, fmt.Errorf("submit trigger: %w", err)
	}

	log.Info().
		Str("trigger_id", t.ID).
		Str("trigger_type", string(t.Type)).
		Str("priority", string(t.Priority)).
		Msg("trigger submitted")
	return t, nil
}

// JobStates returns the live state of every job type.
func (s *ReplenishmentService) JobStates() []scheduler.JobState {
	return s.orchestrator.States()
}

// ListJobs returns recent job results, newest first, reading through the
// summary cache.
func (s *ReplenishmentService) ListJobs(ctx context.Context, jobTypeLabel string, limit int) ([]domain.ScheduledJobResult, error) {
	var jobType domain.JobType
	if strings.TrimSpace(jobTypeLabel) != "" {
		jt, ok := domain.ParseJobType(jobTypeLabel)
		if !ok {
			return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidRequest, jobTypeLabel)
		}
		jobType = jt
	}
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	limit = min(limit, maxJobListLimit)

	filter := cache.JobResultFilter{JobType: jobType, Limit: limit}
	if cached, ok, err := s.summaries.GetRecent(ctx, filter); err != nil {
		log.Warn().Err(err).Msg("job summary cache read failed")
	} else if ok {
		return cached, nil
	}

	results, err := s.repos.Results.List(ctx, jobType, limit)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	if results == nil {
		results = []domain.ScheduledJobResult{}
	}
	if err := s.summaries.SetRecent(ctx, filter, results); err != nil {
		log.Warn().Err(err).Msg("job summary cache write failed")
	}
	return results, nil
}

// ActiveSuggestions returns the unexpired suggestions for a store.
func (s *ReplenishmentService) ActiveSuggestions(ctx context.Context, storeID string) ([]domain.ReplenishmentSuggestion, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("%w: store id is required", ErrInvalidRequest)
	}
	suggestions, err := s.repos.Suggestions.ListActive(ctx, storeID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	if suggestions == nil {
		suggestions = []domain.ReplenishmentSuggestion{}
	}
	return suggestions, nil
}

// ForecastRequest asks for an ad-hoc forecast of one product at one store.
type ForecastRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	StoreID      string `json:"store_id" binding:"required"`
	LookbackDays int    `json:"lookback_days"`
}

// PreviewForecast forecasts one product from stored history and the
// store's current context signals. Nothing is persisted.
func (s *ReplenishmentService) PreviewForecast(ctx context.Context, req ForecastRequest) (*domain.Forecast, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.StoreID = strings.TrimSpace(req.StoreID)
	if req.ProductID == "" || req.StoreID == "" {
		return nil, fmt.Errorf("%w: product_id and store_id are required", ErrInvalidRequest)
	}

	lookback := s.lookback
	if req.LookbackDays > 0 {
		lookback = days(req.LookbackDays)
	}
	if lookback <= 0 {
		lookback = days(defaultPreviewDays)
	}

	now := s.clock.Now()
	usage, err := s.repos.Usage.History(ctx, req.StoreID, now.Add(-lookback))
	if err != nil {
		return nil, fmt.Errorf("usage history: %w", err)
	}

	return s.forecaster.Forecast(ctx, forecast.Request{
		ProductID: req.ProductID,
		StoreID:   req.StoreID,
		History:   usage[req.ProductID],
		Factors:   s.factors(ctx, req.StoreID, now, lookback),
		AsOf:      now,
	})
}

// factors collects the optional context signals; unavailable ones stay neutral.
func (s *ReplenishmentService) factors(ctx context.Context, storeID string, now time.Time, lookback time.Duration) *domain.ExternalFactors {
	f := &domain.ExternalFactors{}
	env := s.repos.Environment
	if env == nil {
		return f
	}
	logger := log.With().Str("store_id", storeID).Logger()

	if w, err := env.Weather(ctx, storeID, now); err != nil {
		logger.Warn().Err(err).Msg("weather unavailable")
	} else {
		f.Weather = w
	}
	if h, err := env.Holidays(ctx, now.Add(-lookback), now.Add(7*24*time.Hour)); err != nil {
		logger.Warn().Err(err).Msg("holiday calendar unavailable")
	} else {
		f.Holidays = h
	}
	if p, err := env.Promotions(ctx, storeID, now); err != nil {
		logger.Warn().Err(err).Msg("promotions unavailable")
	} else {
		f.Promotions = p
	}
	if e, err := env.StoreEvents(ctx, storeID, now); err != nil {
		logger.Warn().Err(err).Msg("store events unavailable")
	} else {
		f.StoreEvents = e
	}
	return f
}

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
