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
	"github.com/iliyamo/prode-predictions/internal/repository"
)

// PredictionService accepts picks and serves the per-user match listings.
type PredictionService struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

func NewPredictionService(db *sql.DB, log *zap.Logger) *PredictionService {
	return &PredictionService{db: db, log: log.Named("predictions"), now: time.Now}
}

// SubmitResult tells the caller whether the pick created a new row.
type SubmitResult struct {
	MatchID uint64
	Created bool
}

// BulkItem is one pick of a batch.
type BulkItem struct {
	MatchID uint64
	Choice  model.Outcome
}

// BulkResult counts the rows written by a batch.
type BulkResult struct {
	Created int
	Updated int
}

// ItemRejection explains why one pick of a batch cannot be saved.
type ItemRejection struct {
	MatchID uint64
	Reason  error
}

// BulkRejection is returned when any pick of a batch fails its
// preconditions.  Nothing from the batch is written.
type BulkRejection struct {
	Items []ItemRejection
}

func (e *BulkRejection) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("match %d: %v", it.MatchID, it.Reason))
	}
	return "batch rejected: " + strings.Join(parts, "; ")
}

// Unwrap exposes every item reason to errors.Is.
func (e *BulkRejection) Unwrap() []error {
	out := make([]error, 0, len(e.Items))
	for _, it := range e.Items {
		out = append(out, it.Reason)
	}
	return out
}

// deadlockAttempts bounds how often a pick write is run when concurrent
// upserts of the same row deadlock.
const deadlockAttempts = 2

// Submit stores the user's pick for one match.  The match is read under a
// shared lock in the same transaction as the write so a concurrent kickoff
// edit cannot slip between the check and the upsert.  A deadlock with a
// concurrent submit of the same pick is retried once.
func (s *PredictionService) Submit(ctx context.Context, userID, matchID uint64, choice model.Outcome) (SubmitResult, error) {
	if userID == 0 || matchID == 0 {
		return SubmitResult{}, fmt.Errorf("%w: user and match are required", ErrInvalidInput)
	}
	if _, err := model.ParseOutcome(string(choice)); err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	res := SubmitResult{MatchID: matchID}
	err := repository.WithTxRetry(ctx, s.db, deadlockAttempts, func(tx *sql.Tx) error {
		if err := s.checkOpen(ctx, tx, matchID); err != nil {
			return err
		}
		created, err := repository.NewPredictionRepo(tx).Upsert(ctx, userID, matchID, choice)
		if err != nil {
			return fmt.Errorf("upsert prediction: %w", err)
		}
		res.Created = created
		return nil
	})
	if err != nil {
		if !isRuleViolation(err) {
			s.log.Error("submit prediction failed", zap.Uint64("user_id", userID), zap.Uint64("match_id", matchID), zap.Error(err))
		}
		return SubmitResult{}, err
	}
	return res, nil
}

// SubmitBulk stores a batch of picks atomically.  Repeated match ids keep
// the last pick.  If any pick fails its preconditions the whole batch is
// rejected with a *BulkRejection; a storage failure rolls everything back.
func (s *PredictionService) SubmitBulk(ctx context.Context, userID uint64, items []BulkItem) (BulkResult, error) {
	if userID == 0 {
		return BulkResult{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	picks := dedupeLastWins(items)
	if len(picks) == 0 {
		return BulkResult{}, ErrNothingToSave
	}

	var res BulkResult
	err := repository.WithTxRetry(ctx, s.db, deadlockAttempts, func(tx *sql.Tx) error {
		res = BulkResult{}
		var rejected []ItemRejection
		for _, p := range picks {
			if p.MatchID == 0 {
				rejected = append(rejected, ItemRejection{MatchID: p.MatchID, Reason: ErrInvalidInput})
				continue
			}
			if _, err := model.ParseOutcome(string(p.Choice)); err != nil {
				rejected = append(rejected, ItemRejection{MatchID: p.MatchID, Reason: ErrInvalidInput})
				continue
			}
			if err := s.checkOpen(ctx, tx, p.MatchID); err != nil {
				if !isRuleViolation(err) {
					return err
				}
				rejected = append(rejected, ItemRejection{MatchID: p.MatchID, Reason: err})
			}
		}
		if len(rejected) > 0 {
			return &BulkRejection{Items: rejected}
		}

		preds := repository.NewPredictionRepo(tx)
		for _, p := range picks {
			created, err := preds.Upsert(ctx, userID, p.MatchID, p.Choice)
			if err != nil {
				return fmt.Errorf("upsert prediction for match %d: %w", p.MatchID, err)
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		var rej *BulkRejection
		if !errors.As(err, &rej) {
			s.log.Error("bulk submit failed", zap.Uint64("user_id", userID), zap.Int("items", len(picks)), zap.Error(err))
		}
		return BulkResult{}, err
	}
	return res, nil
}

// checkOpen locks the match row for reading and verifies kickoff is still
// strictly in the future.
func (s *PredictionService) checkOpen(ctx context.Context, tx repository.DBTX, matchID uint64) error {
	m, err := repository.NewMatchRepo(tx).GetByIDForShare(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMatchNotFound
	}
	if err != nil {
		return fmt.Errorf("load match %d: %w", matchID, err)
	}
	if !m.KickoffAt.After(s.now().UTC()) {
		return ErrMatchStarted
	}
	return nil
}

func isRuleViolation(err error) bool {
	var rej *BulkRejection
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrMatchStarted) || errors.As(err, &rej)
}

// dedupeLastWins keeps one pick per match, ordered by first appearance,
// carrying the choice of the last appearance.
func dedupeLastWins(items []BulkItem) []BulkItem {
	idx := make(map[uint64]int, len(items))
	out := make([]BulkItem, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.MatchID]; ok {
			out[i].Choice = it.Choice
			continue
		}
		idx[it.MatchID] = len(out)
		out = append(out, it)
	}
	return out
}

// ListForUser returns the open matches with the user's current picks.
func (s *PredictionService) ListForUser(ctx context.Context, userID uint64) ([]model.MatchWithPick, error) {
	out, err := repository.NewMatchRepo(s.db).ListOpenForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open matches: %w", err)
	}
	return out, nil
}

// MyHistory returns every match the user has predicted with the points earned.
func (s *PredictionService) MyHistory(ctx context.Context, userID uint64) ([]model.MatchWithPick, error) {
	out, err := repository.NewMatchRepo(s.db).ListHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list prediction history: %w", err)
	}
	return out, nil
}

// AllPredictions lists every prediction for the admin dashboard.
func (s *PredictionService) AllPredictions(ctx context.Context) ([]model.PredictionRow, error) {
	out, err := repository.NewPredictionRepo(s.db).AllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return out, nil
}
