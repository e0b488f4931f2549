package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/service"
)

type countingSyncer struct {
	runs atomic.Int32
	err  error
}

func (c *countingSyncer) Run(_ context.Context, req service.SyncRequest) (service.SyncReport, error) {
	c.runs.Add(1)
	return service.SyncReport{Fetched: len(req.Leagues)}, c.err
}

type countingPurger struct {
	runs atomic.Int32
	err  error
}

func (p *countingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	p.runs.Add(1)
	return 3, p.err
}

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestAddRejectsNonPositiveInterval(t *testing.T) {
	s := newScheduler(t)
	assert.Error(t, s.AddFixtureSync(&countingSyncer{}, service.SyncRequest{}, 0))
	assert.Error(t, s.AddTokenCleanup(&countingPurger{}, -time.Second))
	assert.Equal(t, 0, s.Jobs())
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := newScheduler(t)
	syncer := &countingSyncer{}
	purger := &countingPurger{}
	require.NoError(t, s.AddFixtureSync(syncer, service.SyncRequest{Leagues: []int{128}, Season: 2025}, 50*time.Millisecond))
	require.NoError(t, s.AddTokenCleanup(purger, 50*time.Millisecond))
	assert.Equal(t, 2, s.Jobs())
	s.Start()

	assert.Eventually(t, func() bool { return syncer.runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return purger.runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunSyncSwallowsErrors(t *testing.T) {
	for _, err := range []error{service.ErrNoFixtureData, errors.New("boom"), nil} {
		syncer := &countingSyncer{err: err}
		s := &Scheduler{syncer: syncer, timeout: time.Second, log: zap.NewNop()}
		assert.NotPanics(t, s.runSync)
		assert.Equal(t, int32(1), syncer.runs.Load())
	}
}

func TestRunCleanupSwallowsErrors(t *testing.T) {
	for _, err := range []error{errors.New("db down"), nil} {
		purger := &countingPurger{err: err}
		s := &Scheduler{purger: purger, timeout: time.Second, log: zap.NewNop()}
		assert.NotPanics(t, s.runCleanup)
		assert.Equal(t, int32(1), purger.runs.Load())
	}
}
