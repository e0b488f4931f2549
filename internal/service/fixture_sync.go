package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/football"
	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/queue"
	"github.com/iliyamo/prode-predictions/internal/repository"
)

// FixtureSource lists the fixtures of one league season.
type FixtureSource interface {
	Fixtures(ctx context.Context, league, season int) ([]football.Fixture, error)
}

// SyncRequest selects what to pull from the provider.
type SyncRequest struct {
	Leagues []int
	Season  int
}

// SyncReport summarises one reconciliation run.
type SyncReport struct {
	Fetched  int `json:"fetched"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Rescored int `json:"rescored"`
}

// FixtureSync merges provider fixtures into the match store, keyed by
// external id.
type FixtureSync struct {
	db        *sql.DB
	source    FixtureSource
	publisher queue.Publisher
	cache     CacheInvalidator
	log       *zap.Logger
	now       func() time.Time
	// maxFetches bounds concurrent provider calls.
	maxFetches int
}

func NewFixtureSync(db *sql.DB, src FixtureSource, pub queue.Publisher, cache CacheInvalidator, log *zap.Logger) *FixtureSync {
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &FixtureSync{
		db: db, source: src, publisher: pub, cache: cache,
		log: log.Named("fixture-sync"), now: time.Now, maxFetches: 4,
	}
}

// Run fetches every requested league concurrently, then reconciles all
// fixtures in one transaction.  A provider failure returns
// ErrProviderUnavailable and an empty provider answer ErrNoFixtureData;
// in both cases the store is untouched.
func (s *FixtureSync) Run(ctx context.Context, req SyncRequest) (SyncReport, error) {
	leagues := uniqueLeagues(req.Leagues)
	if len(leagues) == 0 || req.Season <= 0 {
		return SyncReport{}, fmt.Errorf("%w: at least one league and a season are required", ErrInvalidInput)
	}

	fixtures, err := s.fetchAll(ctx, leagues, req.Season)
	if err != nil {
		s.log.Warn("provider fetch failed", zap.Ints("leagues", leagues), zap.Int("season", req.Season), zap.Error(err))
		return SyncReport{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(fixtures) == 0 {
		s.log.Info("provider returned no fixtures", zap.Ints("leagues", leagues), zap.Int("season", req.Season))
		return SyncReport{}, ErrNoFixtureData
	}

	rep := SyncReport{Fetched: len(fixtures)}
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.reconcile(ctx, tx, fixtures, &rep)
	})
	if err != nil {
		s.log.Error("fixture reconcile failed", zap.Error(err))
		return SyncReport{}, err
	}

	s.log.Info("fixtures synced",
		zap.Ints("leagues", leagues), zap.Int("season", req.Season),
		zap.Int("fetched", rep.Fetched), zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated), zap.Int("skipped", rep.Skipped), zap.Int("rescored", rep.Rescored))
	s.afterSync(ctx, leagues, req.Season, rep)
	return rep, nil
}

func (s *FixtureSync) fetchAll(ctx context.Context, leagues []int, season int) ([]football.Fixture, error) {
	p := pool.NewWithResults[[]football.Fixture]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(s.maxFetches)
	for _, league := range leagues {
		p.Go(func(ctx context.Context) ([]football.Fixture, error) {
			return s.source.Fixtures(ctx, league, season)
		})
	}
	batches, err := p.Wait()
	if err != nil {
		return nil, err
	}
	var out []football.Fixture
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, nil
}

func (s *FixtureSync) reconcile(ctx context.Context, tx *sql.Tx, fixtures []football.Fixture, rep *SyncReport) error {
	matches := repository.NewMatchRepo(tx)
	for _, f := range fixtures {
		incoming, err := matchFromFixture(f)
		if err != nil {
			rep.Skipped++
			s.log.Debug("skipping malformed fixture", zap.Int64("external_id", f.ID), zap.Error(err))
			continue
		}

		existing, err := matches.GetByExternalID(ctx, *incoming.ExternalID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			if _, err := matches.Insert(ctx, incoming); err != nil {
				return fmt.Errorf("insert fixture %d: %w", f.ID, err)
			}
			rep.Created++
			continue
		case err != nil:
			return fmt.Errorf("lookup fixture %d: %w", f.ID, err)
		}

		updated := existing
		updated.KickoffAt = incoming.KickoffAt
		updated.Status = incoming.Status
		updated.HomeScore, updated.AwayScore = incoming.HomeScore, incoming.AwayScore
		updated.HomeLogo, updated.AwayLogo = incoming.HomeLogo, incoming.AwayLogo
		if err := matches.UpdateFromProvider(ctx, updated); err != nil {
			return fmt.Errorf("update fixture %d: %w", f.ID, err)
		}
		rep.Updated++

		if scoringChanged(existing, updated) {
			if _, err := recompute(ctx, tx, updated); err != nil {
				return fmt.Errorf("recompute fixture %d: %w", f.ID, err)
			}
			rep.Rescored++
		}
	}
	return nil
}

func (s *FixtureSync) afterSync(ctx context.Context, leagues []int, season int, rep SyncReport) {
	ev := queue.FixturesSyncedEvent{
		EventID:  queue.NewEventID(),
		Leagues:  leagues,
		Season:   season,
		Fetched:  rep.Fetched,
		Created:  rep.Created,
		Updated:  rep.Updated,
		Skipped:  rep.Skipped,
		Rescored: rep.Rescored,
		SyncedAt: queue.Stamp(s.now()),
	}
	if err := s.publisher.PublishFixturesSynced(ctx, ev); err != nil {
		s.log.Warn("publish fixtures.synced failed", zap.Error(err))
	}
	if rep.Rescored > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn("ranking cache purge failed", zap.Error(err))
		}
	}
}

// matchFromFixture converts a provider record, rejecting records without a
// usable id, teams, kickoff or status.
func matchFromFixture(f football.Fixture) (model.Match, error) {
	if f.ID <= 0 {
		return model.Match{}, errors.New("missing fixture id")
	}
	home, away := strings.TrimSpace(f.HomeTeam), strings.TrimSpace(f.AwayTeam)
	if home == "" || away == "" {
		return model.Match{}, errors.New("missing team names")
	}
	kickoff, err := f.Kickoff()
	if err != nil {
		return model.Match{}, err
	}
	status, err := model.NormalizeProviderStatus(f.Status)
	if err != nil {
		return model.Match{}, err
	}

	id := f.ID
	m := model.Match{
		ExternalID: &id,
		HomeTeam:   home,
		AwayTeam:   away,
		HomeLogo:   f.HomeLogo,
		AwayLogo:   f.AwayLogo,
		KickoffAt:  kickoff,
		Status:     status,
		Round:      f.Round,
		IsActive:   true,
	}
	if f.HomeGoals != nil && f.AwayGoals != nil {
		h, a := *f.HomeGoals, *f.AwayGoals
		m.HomeScore, m.AwayScore = &h, &a
	}
	return m, nil
}

func uniqueLeagues(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, l := range in {
		if l <= 0 {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
