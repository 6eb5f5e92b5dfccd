package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenishment-engine/internal/clock"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/metrics"
	"github.com/andresuchdata/replenishment-engine/internal/needgroup"
	"github.com/andresuchdata/replenishment-engine/internal/replenishment"
	"github.com/andresuchdata/replenishment-engine/internal/repository"
)

// StoreCalculator computes one store's suggestions from a snapshot.
type StoreCalculator interface {
	CalculateStore(ctx context.Context, in replenishment.StoreInput, opts replenishment.Options) (*replenishment.StoreResult, error)
}

// ResultArchive keeps a copy of every job result outside the database.
type ResultArchive interface {
	Archive(ctx context.Context, res *domain.ScheduledJobResult) error
}

// SummaryInvalidator drops cached job listings after a run.
type SummaryInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Dependencies are the collaborators of a run. Environment, Performance,
// Archive, Summaries and Metrics are optional.
type Dependencies struct {
	Catalog     repository.CatalogRepository
	Inventory   repository.InventoryRepository
	Usage       repository.UsageRepository
	Environment repository.EnvironmentProvider
	Performance repository.VendorPerformanceRepository
	Orders      repository.OrderWorkflow
	Suggestions repository.SuggestionRepository
	Triggers    repository.TriggerRepository
	Results     repository.JobResultRepository
	Archive     ResultArchive
	Summaries   SummaryInvalidator
	Calculator  StoreCalculator
	Metrics     *metrics.EngineMetrics
	Clock       clock.Clock
}

// Runner executes one pass of the pipeline over the active stores.
type Runner struct {
	deps Dependencies
	cfg  Config
}

func NewRunner(deps Dependencies, cfg Config) *Runner {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Runner{deps: deps, cfg: cfg.withDefaults()}
}

// snapshot is the catalog state shared by every store in a run.
type snapshot struct {
	now         time.Time
	since       time.Time
	stores      []domain.Store
	products    []domain.Product
	groups      []domain.NeedGroup
	performance map[string]domain.VendorPerformance
	holidays    []domain.Holiday
}

// Run executes spec and records its result. It never panics and never
// returns a nil result; job-level failures are reported as FAILED.
func (r *Runner) Run(ctx context.Context, spec runSpec) *domain.ScheduledJobResult {
	startedAt := r.deps.Clock.Now()
	res := &domain.ScheduledJobResult{
		ID:        uuid.NewString(),
		JobType:   spec.JobType,
		StartedAt: startedAt,
		TotalCost: decimal.Zero,
		Errors:    []domain.StoreError{},
	}
	if spec.Trigger != nil {
		res.TriggerID = spec.Trigger.ID
	}
	logger := log.With().Str("job", string(spec.JobType)).Str("run_id", res.ID).Logger()

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				res.Status = domain.JobStatusFailed
				res.FailureReason = fmt.Sprintf("%v: %v", metrics.ErrPanic, rec)
			}
		}()
		if err := r.execute(ctx, spec, res); err != nil {
			res.Status = domain.JobStatusFailed
			res.FailureReason = err.Error()
		}
	}()

	res.CompletedAt = r.deps.Clock.Now()
	r.record(ctx, res)

	logger.Info().
		Str("status", string(res.Status)).
		Int("stores", res.StoresProcessed).
		Int("errors", len(res.Errors)).
		Int("orders", res.OrdersGenerated).
		Int("suggestions", res.SuggestionsGenerated).
		Str("total_cost", res.TotalCost.StringFixed(2)).
		Float64("success_rate", res.SuccessRate).
		Msg("replenishment run finished")
	return res
}

func (r *Runner) execute(ctx context.Context, spec runSpec, res *domain.ScheduledJobResult) error {
	snap, err := r.load(ctx, spec, res.StartedAt)
	if err != nil {
		return err
	}

	severity := severityFor(spec.Trigger)
	opts := replenishment.Options{
		JobRunID:        res.ID,
		ExcludedVendors: excludedVendors(spec.Trigger),
		Performance:     snap.performance,
	}

	outcomes := processStores(ctx, snap.stores, r.cfg.Workers, severity, func(ctx context.Context, store domain.Store) (*storeOutcome, error) {
		return r.processStore(ctx, store, snap, spec, opts)
	})

	batcher := NewOrderBatcher(r.deps.Orders, r.deps.Suggestions, r.cfg.ManualReview, res.ID, r.deps.Clock.Now)
	for _, out := range outcomes {
		res.ProductsAnalyzed += out.ProductsAnalyzed
		for _, fc := range out.Forecasts {
			res.ForecastQuality.Add(fc)
			r.deps.Metrics.IncForecast(string(fc.Method))
		}
		if out.Err != nil {
			res.Errors = append(res.Errors, *out.Err)
			r.deps.Metrics.IncStoreError(string(out.Err.Severity), out.cause)
			continue
		}
		res.SuggestionsGenerated += len(out.Suggestions)
		for _, s := range out.Suggestions {
			r.deps.Metrics.IncSuggestion(string(s.Priority))
		}
		batcher.Add(out.Suggestions)
	}

	flushed := batcher.Flush(ctx, severity)
	res.OrderIDs = flushed.OrderIDs
	res.OrdersGenerated = len(flushed.OrderIDs)
	res.SuggestionsSaved = flushed.Saved
	res.TotalCost = flushed.TotalCost
	res.Errors = append(res.Errors, flushed.Errors...)
	total, _ := flushed.TotalCost.Float64()
	r.deps.Metrics.AddOrders(string(spec.JobType), res.OrdersGenerated, total)

	res.StoresProcessed = len(snap.stores)
	res.SuccessRate = successRate(res.StoresProcessed, len(res.Errors))
	res.Status = domain.JobStatusSuccess
	if len(res.Errors) > 0 {
		res.Status = domain.JobStatusPartialFailure
	}
	return nil
}

// load reads the catalog once per run. Catalog failures fail the job;
// performance and holiday failures degrade to neutral.
func (r *Runner) load(ctx context.Context, spec runSpec, now time.Time) (*snapshot, error) {
	snap := &snapshot{now: now, since: truncateDay(now.Add(-spec.Lookback))}

	stores, err := r.deps.Catalog.ActiveStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active stores: %w", err)
	}
	products, err := r.deps.Catalog.ActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active products: %w", err)
	}
	groups, err := r.deps.Catalog.NeedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load need groups: %w", err)
	}
	snap.stores = restrictStores(stores, spec.Trigger)
	snap.products = restrictProducts(products, spec.Trigger)
	snap.groups = groups

	if r.deps.Performance != nil {
		perf, err := r.deps.Performance.Performance(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("vendor performance unavailable, using simple vendor ordering")
		} else if len(perf) > 0 {
			snap.performance = perf
		}
	}

	if r.deps.Environment != nil {
		holidays, err := r.deps.Environment.Holidays(ctx, snap.since, now.Add(7*24*time.Hour))
		if err != nil {
			log.Warn().Err(err).Msg("holiday calendar unavailable")
		}
		snap.holidays = holidays
	}
	return snap, nil
}

// processStore fetches one consistent snapshot for the store and runs the
// calculator and need-group pass over it.
func (r *Runner) processStore(ctx context.Context, store domain.Store, snap *snapshot, spec runSpec, opts replenishment.Options) (*storeOutcome, error) {
	if r.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.StoreTimeout)
		defer cancel()
	}

	inventory, err := r.deps.Inventory.Snapshot(ctx, store.ID)
	if err != nil {
		return nil, fmt.Errorf("inventory snapshot: %w", err)
	}
	usage, err := r.deps.Usage.History(ctx, store.ID, snap.since)
	if err != nil {
		return nil, fmt.Errorf("usage history: %w", err)
	}

	factors := r.factors(ctx, store.ID, snap)
	if spec.Trigger != nil {
		factors = perturb(factors, spec.Trigger)
	}

	calc, err := r.deps.Calculator.CalculateStore(ctx, replenishment.StoreInput{
		Store:     store,
		Products:  snap.products,
		Inventory: inventory,
		Usage:     usage,
		Factors:   factors,
	}, opts)
	if err != nil {
		out := &storeOutcome{}
		if calc != nil {
			out.ProductsAnalyzed = calc.ProductsAnalyzed
			out.Forecasts = calc.Forecasts
		}
		return out, err
	}

	stamp := needgroup.Stamp{
		JobRunID:    opts.JobRunID,
		GeneratedAt: snap.now,
		ExpiresAt:   snap.now.Add(r.cfg.SuggestionValidity),
	}
	suggestions := calc.Suggestions
	for _, g := range snap.groups {
		suggestions, _ = needgroup.Consolidate(g, store.ID, suggestions, snap.products, inventory, stamp)
	}

	return &storeOutcome{
		Suggestions:      suggestions,
		Forecasts:        calc.Forecasts,
		ProductsAnalyzed: calc.ProductsAnalyzed,
	}, nil
}

// factors gathers the optional context signals for a store. Any failure
// leaves that signal neutral.
func (r *Runner) factors(ctx context.Context, storeID string, snap *snapshot) *domain.ExternalFactors {
	f := &domain.ExternalFactors{Holidays: snap.holidays}
	env := r.deps.Environment
	if env == nil {
		return f
	}

	if w, err := env.Weather(ctx, storeID, snap.now); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Msg("weather unavailable")
	} else {
		f.Weather = w
	}
	if p, err := env.Promotions(ctx, storeID, snap.now); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Msg("promotions unavailable")
	} else {
		f.Promotions = p
	}
	if e, err := env.StoreEvents(ctx, storeID, snap.now); err != nil {
		log.Warn().Err(err).Str("store_id", storeID).Msg("store events unavailable")
	} else {
		f.StoreEvents = e
	}
	return f
}

// record persists, archives and reports a finished run. Failures here are
// logged; they never fail the run.
func (r *Runner) record(ctx context.Context, res *domain.ScheduledJobResult) {
	logger := log.With().Str("job", string(res.JobType)).Str("run_id", res.ID).Logger()

	if r.deps.Results != nil {
		if err := r.deps.Results.Save(ctx, res); err != nil {
			logger.Error().Err(err).Msg("failed to save job result")
		}
	}
	if r.deps.Archive != nil {
		if err := r.deps.Archive.Archive(ctx, res); err != nil {
			logger.Warn().Err(err).Msg("failed to archive job result")
		}
	}
	if r.deps.Summaries != nil {
		if err := r.deps.Summaries.InvalidateAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate job summary cache")
		}
	}
	r.deps.Metrics.ObserveJob(string(res.JobType), string(res.Status), res.CompletedAt.Sub(res.StartedAt), res.SuccessRate)
}

func storeError(storeID string, err error, severity domain.Severity) *domain.StoreError {
	se := &domain.StoreError{StoreID: storeID, Message: err.Error(), Severity: severity}
	var pe *replenishment.ProductError
	if errors.As(err, &pe) {
		se.ProductID = pe.ProductID
	}
	return se
}

func successRate(stores, errs int) float64 {
	if stores <= 0 {
		return 0
	}
	return max(0, float64(stores-errs)/float64(stores))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
