package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/repository"
)

// RankingService builds the leaderboard.
type RankingService struct {
	db  repository.DBTX
	log *zap.Logger
}

func NewRankingService(db repository.DBTX, log *zap.Logger) *RankingService {
	return &RankingService{db: db, log: log.Named("ranking")}
}

// Ranking returns every user with their points on finished matches, highest
// first and ties broken by username.
func (s *RankingService) Ranking(ctx context.Context) ([]model.RankingEntry, error) {
	entries, err := repository.NewPredictionRepo(s.db).Ranking(ctx)
	if err != nil {
		s.log.Error("ranking query failed", zap.Error(err))
		return nil, fmt.Errorf("ranking: %w", err)
	}
	// the store's collation may order usernames differently from Go
	SortRanking(entries)
	return entries, nil
}
