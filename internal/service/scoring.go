package service

import (
	"context"
	"slices"
	"strings"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/repository"
)

// OutcomeOf maps a final score to the outcome players pick.
func OutcomeOf(home, away int) model.Outcome {
	switch {
	case home > away:
		return model.OutcomeHome
	case away > home:
		return model.OutcomeAway
	default:
		return model.OutcomeDraw
	}
}

// ScorableOutcome returns the match outcome when predictions on it earn
// points: the match is finished and both goal counts are known.
func ScorableOutcome(m model.Match) (model.Outcome, bool) {
	switch m.Status {
	case model.StatusFinished:
		if !m.HasScore() {
			return "", false
		}
		return OutcomeOf(*m.HomeScore, *m.AwayScore), true
	case model.StatusNotStarted, model.StatusPostponed, model.StatusFirstHalf, model.StatusHalfTime,
		model.StatusSecondHalf, model.StatusCancelled, model.StatusAbandoned:
		return "", false
	}
	return "", false
}

// Points is 1 when choice matches the outcome of a scorable match, else 0.
func Points(m model.Match, choice model.Outcome) int {
	outcome, ok := ScorableOutcome(m)
	if !ok || choice != outcome {
		return 0
	}
	return 1
}

// pointsTable evaluates Points for every choice so one UPDATE can rescore
// all predictions on the match.
func pointsTable(m model.Match) repository.PointsTable {
	return repository.PointsTable{
		Home: Points(m, model.OutcomeHome),
		Draw: Points(m, model.OutcomeDraw),
		Away: Points(m, model.OutcomeAway),
	}
}

// recompute rewrites the points of every prediction on m.  It must run in
// the same transaction as the write that changed m.
func recompute(ctx context.Context, tx repository.DBTX, m model.Match) (int64, error) {
	return repository.NewPredictionRepo(tx).ApplyPoints(ctx, m.ID, pointsTable(m))
}

// scoringChanged reports whether an edit from before to after can change
// any prediction's points.
func scoringChanged(before, after model.Match) bool {
	bo, bok := ScorableOutcome(before)
	ao, aok := ScorableOutcome(after)
	return bok != aok || bo != ao
}

// SortRanking orders entries by points descending, then username ascending.
// The sort is stable so equal entries keep their input order.
func SortRanking(entries []model.RankingEntry) {
	slices.SortStableFunc(entries, func(a, b model.RankingEntry) int {
		if a.Points != b.Points {
			return b.Points - a.Points
		}
		return strings.Compare(a.Username, b.Username)
	})
}
