package handler

import (
	"context"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/service"
)

// The interfaces below are the slices of the service layer each handler
// uses.  The concrete services in internal/service satisfy them.

type predictionService interface {
	Submit(ctx context.Context, userID, matchID uint64, choice model.Outcome) (service.SubmitResult, error)
	SubmitBulk(ctx context.Context, userID uint64, items []service.BulkItem) (service.BulkResult, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.MatchWithPick, error)
	MyHistory(ctx context.Context, userID uint64) ([]model.MatchWithPick, error)
	AllPredictions(ctx context.Context) ([]model.PredictionRow, error)
}

type rankingService interface {
	Ranking(ctx context.Context) ([]model.RankingEntry, error)
}

type matchService interface {
	BulkCreate(ctx context.Context, items []service.NewMatch) ([]uint64, error)
	UpdateResult(ctx context.Context, id uint64, edit service.ResultEdit) (service.EditResult, error)
	ResetAll(ctx context.Context) (service.ResetReport, error)
}

type fixtureSyncer interface {
	Run(ctx context.Context, req service.SyncRequest) (service.SyncReport, error)
}

type userService interface {
	List(ctx context.Context) ([]model.User, error)
	ChangeRole(ctx context.Context, actorID uint64, actorRole model.Role, targetID uint64, role model.Role) (model.User, error)
}
