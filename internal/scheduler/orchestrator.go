package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenishment-engine/internal/clock"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// jobState is the explicit state record of one job type. cancel disarms
// the job's timer; it never cancels a run in flight.
type jobState struct {
	status       RunStatus
	nextFireAt   time.Time
	lastRunAt    time.Time
	lastOutcome  domain.JobStatus
	lastResultID string
	cancel       context.CancelFunc
}

// Orchestrator owns the cadence timers, the trigger poller and the
// per-job-type state. One instance is assumed authoritative.
type Orchestrator struct {
	runner   *Runner
	triggers TriggerSource
	cadences map[domain.JobType]Cadence
	cfg      Config
	clock    clock.Clock

	mu      sync.Mutex
	states  map[domain.JobType]*jobState
	handled map[string]bool
	started bool
	stopped bool

	loops    sync.WaitGroup
	inflight sync.WaitGroup
	wake     chan struct{}
}

// TriggerSource is the trigger port as seen by the orchestrator.
type TriggerSource interface {
	Create(ctx context.Context, trigger *domain.ReplenishmentTrigger) error
	Pending(ctx context.Context, limit int) ([]domain.ReplenishmentTrigger, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error)
}

func NewOrchestrator(runner *Runner, cadences map[domain.JobType]Cadence, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		runner:   runner,
		triggers: runner.deps.Triggers,
		cadences: cadences,
		cfg:      cfg,
		clock:    runner.deps.Clock,
		states:   make(map[domain.JobType]*jobState),
		handled:  make(map[string]bool),
		wake:     make(chan struct{}, 1),
	}
	for _, jt := range []domain.JobType{domain.JobTypeNightly, domain.JobTypeWeekly, domain.JobTypeMonthly, domain.JobTypeTrigger} {
		o.states[jt] = &jobState{status: StatusIdle}
	}
	return o
}

// Start arms one timer loop per cadence and the trigger poller.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	if o.started {
		return nil
	}
	o.started = true

	types := make([]domain.JobType, 0, len(o.cadences))
	for jt := range o.cadences {
		types = append(types, jt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, jt := range types {
		st, ok := o.states[jt]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownJobType, jt)
		}
		loopCtx, cancel := context.WithCancel(ctx)
		st.cancel = cancel
		o.loops.Add(1)
		go o.cadenceLoop(loopCtx, jt, o.cadences[jt])
	}

	if o.triggers != nil {
		loopCtx, cancel := context.WithCancel(ctx)
		o.states[domain.JobTypeTrigger].cancel = cancel
		o.loops.Add(1)
		go o.triggerLoop(loopCtx)
	}

	log.Info().Int("cadences", len(types)).Dur("trigger_poll", o.cfg.TriggerPoll).Msg("orchestrator started")
	return nil
}

// Stop disarms every timer and waits for in-flight runs to finish and
// record their results, or for ctx to expire.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	for _, st := range o.states {
		if st.cancel != nil {
			st.cancel()
			st.cancel = nil
		}
		st.nextFireAt = time.Time{}
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.loops.Wait()
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("orchestrator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight runs: %w", ctx.Err())
	}
}

// RunNow executes a cadence job immediately. It fails with ErrJobRunning
// when a run of the same type is in progress.
func (o *Orchestrator) RunNow(ctx context.Context, jobType domain.JobType) (*domain.ScheduledJobResult, error) {
	if jobType == domain.JobTypeTrigger {
		return nil, fmt.Errorf("%w: use ProcessTriggers for %s", ErrUnknownJobType, jobType)
	}
	if _, ok := o.states[jobType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	if err := o.acquire(jobType); err != nil {
		return nil, err
	}
	return o.run(ctx, runSpec{JobType: jobType, Lookback: o.cfg.CadenceLookback}), nil
}

// Submit stores a new trigger and wakes the poller.
func (o *Orchestrator) Submit(ctx context.Context, t *domain.ReplenishmentTrigger) error {
	if o.triggers == nil {
		return fmt.Errorf("trigger source not configured")
	}
	if t.Priority == "" {
		t.Priority = domain.TriggerPriorityNormal
	}
	if err := o.triggers.Create(ctx, t); err != nil {
		return err
	}
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// ProcessTriggers runs every pending trigger once, most urgent first, and
// returns their results. Trigger runs never overlap each other.
func (o *Orchestrator) ProcessTriggers(ctx context.Context) ([]*domain.ScheduledJobResult, error) {
	if o.triggers == nil {
		return nil, nil
	}
	if err := o.acquire(domain.JobTypeTrigger); err != nil {
		return nil, err
	}
	defer o.release(domain.JobTypeTrigger, nil)

	pending, err := o.triggers.Pending(ctx, o.cfg.TriggerBatch)
	if err != nil {
		return nil, fmt.Errorf("load pending triggers: %w", err)
	}

	var results []*domain.ScheduledJobResult
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		t := pending[i]
		if o.seen(t.ID) {
			o.markProcessed(ctx, &t)
			continue
		}
		res := o.runner.Run(context.WithoutCancel(ctx), runSpec{JobType: domain.JobTypeTrigger, Lookback: o.cfg.TriggerLookback, Trigger: &t})
		o.remember(t.ID)
		o.markProcessed(ctx, &t)
		o.runner.deps.Metrics.IncTrigger(string(t.Type), string(t.Priority))
		o.setOutcome(domain.JobTypeTrigger, res)
		results = append(results, res)
	}
	return results, nil
}

// States returns a snapshot of every job type's state.
func (o *Orchestrator) States() []JobState {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]JobState, 0, len(o.states))
	for jt, st := range o.states {
		s := JobState{
			JobType:      jt,
			Status:       st.status,
			LastOutcome:  st.lastOutcome,
			LastResultID: st.lastResultID,
		}
		if !st.nextFireAt.IsZero() {
			t := st.nextFireAt
			s.NextFireAt = &t
		}
		if !st.lastRunAt.IsZero() {
			t := st.lastRunAt
			s.LastRunAt = &t
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobType < out[j].JobType })
	return out
}

// cadenceLoop fires a job on its cadence. The next timer is armed only
// after the previous run has finished.
func (o *Orchestrator) cadenceLoop(ctx context.Context, jobType domain.JobType, cadence Cadence) {
	defer o.loops.Done()
	logger := log.With().Str("job", string(jobType)).Logger()

	for {
		now := o.clock.Now()
		next := cadence.Next(now)
		o.setNextFire(jobType, next)
		logger.Debug().Time("next_fire_at", next).Msg("timer armed")

		select {
		case <-ctx.Done():
			return
		case <-o.clock.After(next.Sub(now)):
		}

		if err := o.acquire(jobType); err != nil {
			if errors.Is(err, ErrStopped) {
				return
			}
			o.runner.deps.Metrics.IncJobSkipped(string(jobType))
			logger.Warn().Err(err).Msg("skipping fire")
			continue
		}
		o.run(ctx, runSpec{JobType: jobType, Lookback: o.cfg.CadenceLookback})
	}
}

func (o *Orchestrator) triggerLoop(ctx context.Context) {
	defer o.loops.Done()

	for {
		_, err := o.ProcessTriggers(ctx)
		switch {
		case errors.Is(err, ErrStopped):
			return
		case err != nil:
			log.Warn().Err(err).Str("job", string(domain.JobTypeTrigger)).Msg("trigger scan failed")
		}

		next := o.clock.Now().Add(o.cfg.TriggerPoll)
		o.setNextFire(domain.JobTypeTrigger, next)
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		case <-o.clock.After(o.cfg.TriggerPoll):
		}
	}
}

// run executes an acquired job. The run itself is detached from ctx so a
// stop lets it finish and record its result.
func (o *Orchestrator) run(ctx context.Context, spec runSpec) *domain.ScheduledJobResult {
	res := o.runner.Run(context.WithoutCancel(ctx), spec)
	o.release(spec.JobType, res)
	return res
}

func (o *Orchestrator) acquire(jobType domain.JobType) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	st, ok := o.states[jobType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	if st.status == StatusRunning {
		return fmt.Errorf("%w: %s", ErrJobRunning, jobType)
	}
	st.status = StatusRunning
	o.inflight.Add(1)
	return nil
}

func (o *Orchestrator) release(jobType domain.JobType, res *domain.ScheduledJobResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.states[jobType]
	st.status = StatusIdle
	o.inflight.Done()
	if res != nil {
		st.lastRunAt = res.StartedAt
		st.lastOutcome = res.Status
		st.lastResultID = res.ID
	}
}

func (o *Orchestrator) setOutcome(jobType domain.JobType, res *domain.ScheduledJobResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.states[jobType]
	st.lastRunAt = res.StartedAt
	st.lastOutcome = res.Status
	st.lastResultID = res.ID
}

func (o *Orchestrator) setNextFire(jobType domain.JobType, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.states[jobType].nextFireAt = at
}

func (o *Orchestrator) seen(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handled[id]
}

func (o *Orchestrator) remember(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handled[id] = true
}

// markProcessed flips the trigger after its run. A trigger that was already
// processed elsewhere is logged, not re-run.
func (o *Orchestrator) markProcessed(ctx context.Context, t *domain.ReplenishmentTrigger) {
	logger := log.With().Str("trigger_id", t.ID).Str("trigger_type", string(t.Type)).Logger()
	ok, err := o.triggers.MarkProcessed(context.WithoutCancel(ctx), t.ID, o.clock.Now())
	if err != nil {
		logger.Error().Err(err).Msg("failed to mark trigger processed; will retry without re-running")
		return
	}
	if !ok {
		logger.Warn().Msg("trigger was already processed")
	}
	o.mu.Lock()
	delete(o.handled, t.ID)
	o.mu.Unlock()
}
