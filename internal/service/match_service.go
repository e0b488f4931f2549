package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/queue"
	"github.com/iliyamo/prode-predictions/internal/repository"
)

// CacheInvalidator drops cached ranking responses after points change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context) error { return nil }

// MatchService implements the administrative match operations.
type MatchService struct {
	db        *sql.DB
	publisher queue.Publisher
	cache     CacheInvalidator
	log       *zap.Logger
	now       func() time.Time
}

// NewMatchService wires the service.  A nil publisher or cache disables
// that side effect.
func NewMatchService(db *sql.DB, pub queue.Publisher, cache CacheInvalidator, log *zap.Logger) *MatchService {
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &MatchService{db: db, publisher: pub, cache: cache, log: log.Named("matches"), now: time.Now}
}

// NewMatch is a manually entered fixture.
type NewMatch struct {
	HomeTeam  string
	AwayTeam  string
	HomeLogo  string
	AwayLogo  string
	KickoffAt time.Time
	Round     string
}

// BulkCreate inserts manual matches in one transaction and returns their ids
// in input order.
func (s *MatchService) BulkCreate(ctx context.Context, items []NewMatch) ([]uint64, error) {
	if len(items) == 0 {
		return nil, ErrNothingToSave
	}
	rows := make([]model.Match, 0, len(items))
	for i, it := range items {
		home, away := strings.TrimSpace(it.HomeTeam), strings.TrimSpace(it.AwayTeam)
		if home == "" || away == "" || it.KickoffAt.IsZero() {
			return nil, fmt.Errorf("%w: item %d needs both teams and a kickoff", ErrInvalidInput, i)
		}
		rows = append(rows, model.Match{
			HomeTeam: home, AwayTeam: away,
			HomeLogo: strings.TrimSpace(it.HomeLogo), AwayLogo: strings.TrimSpace(it.AwayLogo),
			KickoffAt: it.KickoffAt.UTC(), Status: model.StatusNotStarted,
			Round: strings.TrimSpace(it.Round), IsActive: true,
		})
	}

	ids := make([]uint64, 0, len(rows))
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		matches := repository.NewMatchRepo(tx)
		for _, m := range rows {
			id, err := matches.Insert(ctx, m)
			if err != nil {
				return fmt.Errorf("insert %s vs %s: %w", m.HomeTeam, m.AwayTeam, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		s.log.Error("bulk create failed", zap.Int("items", len(rows)), zap.Error(err))
		return nil, err
	}
	s.log.Info("matches created", zap.Int("count", len(ids)))
	return ids, nil
}

// ResultEdit is an administrator's correction of a match.  Scores are both
// set or both nil.  A nil KickoffAt keeps the current kickoff.
type ResultEdit struct {
	HomeScore *int
	AwayScore *int
	Status    model.Status
	KickoffAt *time.Time
}

func (e ResultEdit) validate() error {
	if _, err := model.ParseStatus(string(e.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if (e.HomeScore == nil) != (e.AwayScore == nil) {
		return fmt.Errorf("%w: home and away score must be given together", ErrInvalidInput)
	}
	if e.HomeScore != nil && (*e.HomeScore < 0 || *e.AwayScore < 0) {
		return fmt.Errorf("%w: scores cannot be negative", ErrInvalidInput)
	}
	if e.KickoffAt != nil && e.KickoffAt.IsZero() {
		return fmt.Errorf("%w: kickoff is empty", ErrInvalidInput)
	}
	return nil
}

// EditResult is the match after the edit and how many predictions were rescored.
type EditResult struct {
	Match             model.Match
	PredictionsScored int64
}

// UpdateResult applies the edit and rescores every prediction on the match
// in the same transaction.  After commit it publishes match.scored and
// purges the ranking cache; failures there are logged only.
func (s *MatchService) UpdateResult(ctx context.Context, id uint64, edit ResultEdit) (EditResult, error) {
	if id == 0 {
		return EditResult{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	if err := edit.validate(); err != nil {
		return EditResult{}, err
	}

	var out EditResult
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		matches := repository.NewMatchRepo(tx)
		m, err := matches.GetByIDForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMatchNotFound
		}
		if err != nil {
			return fmt.Errorf("load match %d: %w", id, err)
		}

		m.HomeScore, m.AwayScore = edit.HomeScore, edit.AwayScore
		m.Status = edit.Status
		if edit.KickoffAt != nil {
			m.KickoffAt = edit.KickoffAt.UTC()
		}
		if err := matches.UpdateResult(ctx, m); err != nil {
			return fmt.Errorf("update match %d: %w", id, err)
		}
		n, err := s.Recompute(ctx, tx, m)
		if err != nil {
			return err
		}
		out = EditResult{Match: m, PredictionsScored: n}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrMatchNotFound) {
			s.log.Error("update result failed", zap.Uint64("match_id", id), zap.Error(err))
		}
		return EditResult{}, err
	}

	s.log.Info("match result updated",
		zap.Uint64("match_id", id), zap.String("status", string(out.Match.Status)),
		zap.Int64("predictions_scored", out.PredictionsScored))
	s.afterScoring(ctx, out)
	return out, nil
}

// Recompute rewrites the points of every prediction on m inside tx.
func (s *MatchService) Recompute(ctx context.Context, tx repository.DBTX, m model.Match) (int64, error) {
	n, err := recompute(ctx, tx, m)
	if err != nil {
		return 0, fmt.Errorf("recompute points for match %d: %w", m.ID, err)
	}
	return n, nil
}

func (s *MatchService) afterScoring(ctx context.Context, r EditResult) {
	ev := queue.MatchScoredEvent{
		EventID:           queue.NewEventID(),
		MatchID:           r.Match.ID,
		HomeTeam:          r.Match.HomeTeam,
		AwayTeam:          r.Match.AwayTeam,
		Status:            string(r.Match.Status),
		HomeScore:         r.Match.HomeScore,
		AwayScore:         r.Match.AwayScore,
		PredictionsScored: r.PredictionsScored,
		ScoredAt:          queue.Stamp(s.now()),
	}
	if o, ok := ScorableOutcome(r.Match); ok {
		ev.Outcome = string(o)
	}
	if err := s.publisher.PublishMatchScored(ctx, ev); err != nil {
		s.log.Warn("publish match.scored failed", zap.Uint64("match_id", r.Match.ID), zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("ranking cache purge failed", zap.Error(err))
	}
}

// ResetReport counts the rows removed by ResetAll.
type ResetReport struct {
	Predictions int64
	Matches     int64
}

// ResetAll deletes every prediction and match in one transaction, then
// restarts the id sequences.  The sequence reset is best effort.
func (s *MatchService) ResetAll(ctx context.Context) (ResetReport, error) {
	var rep ResetReport
	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := repository.NewPredictionRepo(tx).DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("delete predictions: %w", err)
		}
		rep.Predictions = n
		n, err = repository.NewMatchRepo(tx).DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("delete matches: %w", err)
		}
		rep.Matches = n
		return nil
	})
	if err != nil {
		s.log.Error("reset failed", zap.Error(err))
		return ResetReport{}, err
	}

	if err := repository.NewMatchRepo(s.db).ResetAutoIncrement(ctx); err != nil {
		s.log.Warn("auto increment reset failed", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("ranking cache purge failed", zap.Error(err))
	}
	s.log.Info("all matches reset", zap.Int64("predictions", rep.Predictions), zap.Int64("matches", rep.Matches))
	return rep, nil
}
