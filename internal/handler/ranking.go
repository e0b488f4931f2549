package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type RankingHandler struct {
	svc rankingService
	log *zap.Logger
}

func NewRankingHandler(svc rankingService, log *zap.Logger) *RankingHandler {
	return &RankingHandler{svc: svc, log: log.Named("ranking-http")}
}

// Get returns [{username, points}] sorted by points, then username.
func (h *RankingHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	entries, err := h.svc.Ranking(ctx)
	if err != nil {
		h.log.Error("ranking failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "could not load ranking")
	}
	out := make([]rankingView, 0, len(entries))
	for _, e := range entries {
		out = append(out, rankingView{Username: e.Username, Points: e.Points})
	}
	return c.JSON(http.StatusOK, out)
}
