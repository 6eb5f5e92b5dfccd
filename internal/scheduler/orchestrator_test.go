package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

const eventually = 2 * time.Second

func stateOf(o *Orchestrator, jt domain.JobType) JobState {
	for _, s := range o.States() {
		if s.JobType == jt {
			return s
		}
	}
	return JobState{}
}

func TestRunNowRejectsOverlapOfSameType(t *testing.T) {
	f := newFixture("s1")
	entered, release := f.calc.blockFirst()
	o := NewOrchestrator(f.runner(Config{}), nil, Config{})

	done := make(chan *domain.ScheduledJobResult)
	go func() {
		res, err := o.RunNow(context.Background(), domain.JobTypeNightly)
		assert.NoError(t, err)
		done <- res
	}()
	<-entered

	assert.Equal(t, StatusRunning, stateOf(o, domain.JobTypeNightly).Status)
	_, err := o.RunNow(context.Background(), domain.JobTypeNightly)
	assert.ErrorIs(t, err, ErrJobRunning)

	// other job types are independent
	weekly, err := o.RunNow(context.Background(), domain.JobTypeWeekly)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTypeWeekly, weekly.JobType)

	close(release)
	res := <-done
	assert.Equal(t, domain.JobStatusSuccess, res.Status)

	st := stateOf(o, domain.JobTypeNightly)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Equal(t, domain.JobStatusSuccess, st.LastOutcome)
	assert.Equal(t, res.ID, st.LastResultID)
	assert.Equal(t, 2, f.results.count())
}

func TestRunNowUnknownType(t *testing.T) {
	f := newFixture("s1")
	o := NewOrchestrator(f.runner(Config{}), nil, Config{})

	_, err := o.RunNow(context.Background(), domain.JobType("hourly"))
	assert.ErrorIs(t, err, ErrUnknownJobType)
	_, err = o.RunNow(context.Background(), domain.JobTypeTrigger)
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestTriggerProcessedExactlyOnce(t *testing.T) {
	f := newFixture("s1", "s2")
	o := NewOrchestrator(f.runner(Config{}), nil, Config{})

	trig := &domain.ReplenishmentTrigger{Type: domain.TriggerStockoutAlert, StoreIDs: []string{"s2"}}
	require.NoError(t, o.Submit(context.Background(), trig))
	assert.Equal(t, domain.TriggerPriorityNormal, trig.Priority)

	results, err := o.ProcessTriggers(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, trig.ID, results[0].TriggerID)
	assert.Equal(t, domain.JobTypeTrigger, results[0].JobType)

	again, err := o.ProcessTriggers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)

	assert.Equal(t, 1, f.triggers.marks[trig.ID])
	assert.Equal(t, 1, f.results.count())
	assert.Equal(t, []string{"s2"}, f.calc.storesSeen())
	assert.Equal(t, domain.JobStatusSuccess, stateOf(o, domain.JobTypeTrigger).LastOutcome)
}

func TestTriggerNotRerunWhenMarkFails(t *testing.T) {
	f := newFixture("s1")
	f.triggers = newMemTriggers(domain.ReplenishmentTrigger{ID: "t1", Type: domain.TriggerManual, Priority: domain.TriggerPriorityHigh})
	f.triggers.failMarks = 1
	o := NewOrchestrator(f.runner(Config{}), nil, Config{})

	first, err := o.ProcessTriggers(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Zero(t, f.triggers.marks["t1"])

	second, err := o.ProcessTriggers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, f.triggers.marks["t1"])
	assert.Equal(t, 1, f.results.count())
}

func TestCadenceFiresAndRearms(t *testing.T) {
	f := newFixture("s1")
	deps := f.deps()
	deps.Triggers = nil
	o := NewOrchestrator(NewRunner(deps, Config{}), map[domain.JobType]Cadence{
		domain.JobTypeNightly: Daily{Hour: 2},
	}, Config{})

	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() { _ = o.Stop(context.Background()) })

	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, eventually, time.Millisecond)
	st := stateOf(o, domain.JobTypeNightly)
	require.NotNil(t, st.NextFireAt)
	assert.Equal(t, time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC), *st.NextFireAt)

	f.clock.Advance(time.Hour)

	require.Eventually(t, func() bool { return f.results.count() == 1 }, eventually, time.Millisecond)
	require.Eventually(t, func() bool {
		st := stateOf(o, domain.JobTypeNightly)
		return st.NextFireAt != nil && st.NextFireAt.Equal(time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC))
	}, eventually, time.Millisecond)
	assert.Equal(t, domain.JobStatusSuccess, stateOf(o, domain.JobTypeNightly).LastOutcome)
}

func TestStopWaitsForInflightRun(t *testing.T) {
	f := newFixture("s1")
	entered, release := f.calc.blockFirst()
	deps := f.deps()
	deps.Triggers = nil
	o := NewOrchestrator(NewRunner(deps, Config{}), map[domain.JobType]Cadence{
		domain.JobTypeNightly: Daily{Hour: 2},
	}, Config{})

	require.NoError(t, o.Start(context.Background()))
	require.Eventually(t, func() bool { return f.clock.Waiters() == 1 }, eventually, time.Millisecond)
	f.clock.Advance(time.Hour)
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- o.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-stopped)
	assert.Equal(t, 1, f.results.count())
	assert.Equal(t, domain.JobStatusSuccess, f.results.results[0].Status)

	st := stateOf(o, domain.JobTypeNightly)
	assert.Nil(t, st.NextFireAt)
	assert.Equal(t, StatusIdle, st.Status)

	_, err := o.RunNow(context.Background(), domain.JobTypeNightly)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, o.Start(context.Background()), ErrStopped)
}

func TestStopHonoursDeadline(t *testing.T) {
	f := newFixture("s1")
	entered, release := f.calc.blockFirst()
	defer close(release)
	o := NewOrchestrator(f.runner(Config{}), nil, Config{})

	go func() { _, _ = o.RunNow(context.Background(), domain.JobTypeMonthly) }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Stop(ctx), context.DeadlineExceeded)
}

func TestTriggerLoopProcessesSubmittedTrigger(t *testing.T) {
	f := newFixture("s1")
	o := NewOrchestrator(f.runner(Config{}), nil, Config{TriggerPoll: time.Hour})

	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() { _ = o.Stop(context.Background()) })

	require.NoError(t, o.Submit(context.Background(), &domain.ReplenishmentTrigger{Type: domain.TriggerManual}))
	require.Eventually(t, func() bool { return f.results.count() == 1 }, eventually, time.Millisecond)
	require.Eventually(t, func() bool {
		f.triggers.mu.Lock()
		defer f.triggers.mu.Unlock()
		return f.triggers.marks["t1"] == 1
	}, eventually, time.Millisecond)
}
