// Package scheduler runs the periodic background jobs: the fixture sync and
// the refresh token cleanup.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/service"
)

// Syncer is the part of the fixture sync the scheduler drives.
type Syncer interface {
	Run(ctx context.Context, req service.SyncRequest) (service.SyncReport, error)
}

// TokenPurger deletes refresh tokens that can no longer be used.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler wraps a gocron scheduler.  Every job runs in singleton mode, so
// a slow run is never stacked on top of itself.
type Scheduler struct {
	sched   gocron.Scheduler
	syncer  Syncer
	req     service.SyncRequest
	purger  TokenPurger
	timeout time.Duration
	jobs    int
	log     *zap.Logger
}

func New(log *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: sched, timeout: 2 * time.Minute, log: log.Named("scheduler")}, nil
}

// AddFixtureSync pulls req from the provider every interval.
func (s *Scheduler) AddFixtureSync(syncer Syncer, req service.SyncRequest, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("scheduler: sync interval must be positive")
	}
	s.syncer, s.req = syncer, req
	return s.add("fixture-sync", interval, s.runSync)
}

// AddTokenCleanup purges dead refresh tokens every interval.
func (s *Scheduler) AddTokenCleanup(p TokenPurger, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("scheduler: cleanup interval must be positive")
	}
	s.purger = p
	return s.add("token-cleanup", interval, s.runCleanup)
}

func (s *Scheduler) add(name string, every time.Duration, fn func()) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.jobs++
	s.log.Info("job scheduled", zap.String("job", name), zap.Duration("every", every))
	return nil
}

// Jobs is the number of registered jobs.
func (s *Scheduler) Jobs() int { return s.jobs }

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rep, err := s.syncer.Run(ctx, s.req)
	switch {
	case errors.Is(err, service.ErrNoFixtureData):
		s.log.Info("scheduled sync: provider returned no data")
	case err != nil:
		s.log.Warn("scheduled sync failed", zap.Error(err))
	default:
		s.log.Info("scheduled sync done",
			zap.Ints("leagues", s.req.Leagues), zap.Int("season", s.req.Season),
			zap.Int("fetched", rep.Fetched), zap.Int("created", rep.Created),
			zap.Int("updated", rep.Updated), zap.Int("skipped", rep.Skipped))
	}
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx, time.Now())
	if err != nil {
		s.log.Warn("token cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("token cleanup done", zap.Int64("purged", n))
	}
}
