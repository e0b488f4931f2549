package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/service"
)

// syncTimeout covers every provider round trip plus the reconcile transaction.
const syncTimeout = 2 * time.Minute

// AdminMatchHandler serves match administration for Owner and Dev accounts.
// Unlike player endpoints it returns raw error messages on failure.
type AdminMatchHandler struct {
	matches  matchService
	sync     fixtureSyncer
	football config.FootballConfig
	log      *zap.Logger
}

func NewAdminMatchHandler(matches matchService, sync fixtureSyncer, fc config.FootballConfig, log *zap.Logger) *AdminMatchHandler {
	return &AdminMatchHandler{matches: matches, sync: sync, football: fc, log: log.Named("admin-matches")}
}

// newMatchReq accepts the logo keys the match creator form posts
// (localLogo, visitanteLogo) as well as the ones /api/partidos renders.
type newMatchReq struct {
	Local         string `json:"local" validate:"required"`
	Visitante     string `json:"visitante" validate:"required"`
	Fecha         string `json:"fecha" validate:"required"`
	LocalLogo     string `json:"localLogo"`
	VisitanteLogo string `json:"visitanteLogo"`
	LogoLocal     string `json:"logoLocal"`
	LogoVisitante string `json:"logoVisitante"`
	Round         string `json:"round"`
}

func (r newMatchReq) logos() (home, away string) {
	return firstNonEmpty(r.LocalLogo, r.LogoLocal), firstNonEmpty(r.VisitanteLogo, r.LogoVisitante)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type bulkCreateReq struct {
	Matches []newMatchReq `json:"matches" validate:"dive"`
}

type updateMatchReq struct {
	HomeScore *int    `json:"home_score" validate:"omitempty,min=0"`
	AwayScore *int    `json:"away_score" validate:"omitempty,min=0"`
	Status    string  `json:"status" validate:"required"`
	MatchDate *string `json:"match_date"`
}

type syncReq struct {
	Leagues []int `json:"leagues"`
	Season  int   `json:"season"`
}

// BulkCreate inserts hand-entered matches in one transaction.
func (h *AdminMatchHandler) BulkCreate(c echo.Context) error {
	var req bulkCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	items := make([]service.NewMatch, 0, len(req.Matches))
	for i, m := range req.Matches {
		kickoff, err := parseKickoff(m.Fecha)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "invalid fecha", "index": i})
		}
		homeLogo, awayLogo := m.logos()
		items = append(items, service.NewMatch{
			HomeTeam: m.Local, AwayTeam: m.Visitante,
			HomeLogo: homeLogo, AwayLogo: awayLogo,
			KickoffAt: kickoff, Round: m.Round,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ids, err := h.matches.BulkCreate(ctx, items)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) || errors.Is(err, service.ErrNothingToSave) {
			return fail(c, http.StatusBadRequest, err.Error())
		}
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "count": len(ids), "ids": ids})
}

// UpdateResult edits score, status and optionally kickoff, then rescoring
// runs in the same transaction.
func (h *AdminMatchHandler) UpdateResult(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid match id")
	}
	var req updateMatchReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	edit := service.ResultEdit{HomeScore: req.HomeScore, AwayScore: req.AwayScore, Status: model.Status(req.Status)}
	if req.MatchDate != nil && strings.TrimSpace(*req.MatchDate) != "" {
		kickoff, err := parseKickoff(*req.MatchDate)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid match_date")
		}
		edit.KickoffAt = &kickoff
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.matches.UpdateResult(ctx, id, edit)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMatchNotFound):
		return fail(c, http.StatusNotFound, "match not found")
	case err != nil:
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":            true,
		"message":            "match updated",
		"match":              newAdminMatchView(res.Match),
		"predictions_scored": res.PredictionsScored,
	})
}

// Reset deletes every prediction and match.
func (h *AdminMatchHandler) Reset(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rep, err := h.matches.ResetAll(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "reset failed")
	}
	h.log.Warn("match store reset", zap.Uint64("by", mustUserID(c)),
		zap.Int64("predictions", rep.Predictions), zap.Int64("matches", rep.Matches))
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"message":     "database cleared",
		"predictions": rep.Predictions,
		"matches":     rep.Matches,
	})
}

// Sync pulls fixtures from the provider.  The body may override the
// configured leagues and season.
func (h *AdminMatchHandler) Sync(c echo.Context) error {
	var req syncReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}
	}
	if len(req.Leagues) == 0 {
		req.Leagues = h.football.Leagues
	}
	if req.Season == 0 {
		req.Season = h.football.Season
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), syncTimeout)
	defer cancel()

	rep, err := h.sync.Run(ctx, service.SyncRequest{Leagues: req.Leagues, Season: req.Season})
	switch {
	case errors.Is(err, service.ErrNoFixtureData):
		return fail(c, http.StatusNotFound, "provider returned no fixtures")
	case errors.Is(err, service.ErrProviderUnavailable):
		return fail(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "report": rep})
}

func mustUserID(c echo.Context) uint64 {
	id, _ := getUserID(c)
	return id
}
