package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/service"
)

// PredictionHandler serves the player-facing match list and pick submission.
type PredictionHandler struct {
	svc predictionService
	log *zap.Logger
}

func NewPredictionHandler(svc predictionService, log *zap.Logger) *PredictionHandler {
	return &PredictionHandler{svc: svc, log: log.Named("predictions-http")}
}

type submitReq struct {
	MatchID uint64 `json:"matchId" validate:"required"`
	Result  string `json:"result" validate:"required,oneof=HOME DRAW AWAY"`
}

type submitBulkReq struct {
	Predictions []submitReq `json:"predictions" validate:"dive"`
}

func (r *submitReq) normalize() {
	r.Result = strings.ToUpper(strings.TrimSpace(r.Result))
}

// ListMatches returns the open matches with the caller's pick.  A failed
// read renders an empty list; the error is only logged.
func (h *PredictionHandler) ListMatches(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rows, err := h.svc.ListForUser(ctx, uid)
	if err != nil {
		h.log.Error("list matches failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusOK, []matchView{})
	}
	return c.JSON(http.StatusOK, matchViews(rows, false))
}

// MyHistory lists every active match the caller predicted, with points.
func (h *PredictionHandler) MyHistory(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rows, err := h.svc.MyHistory(ctx, uid)
	if err != nil {
		h.log.Error("history failed", zap.Uint64("user_id", uid), zap.Error(err))
		return c.JSON(http.StatusOK, []matchView{})
	}
	return c.JSON(http.StatusOK, matchViews(rows, true))
}

func (h *PredictionHandler) Submit(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.svc.Submit(ctx, uid, req.MatchID, model.Outcome(req.Result))
	if err != nil {
		if isRuleViolation(err) {
			return fail(c, http.StatusBadRequest, err.Error())
		}
		h.log.Error("submit failed", zap.Uint64("user_id", uid), zap.Uint64("match_id", req.MatchID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "internal error")
	}
	msg := "prediction updated"
	if res.Created {
		msg = "prediction saved"
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": msg,
		"matchId": res.MatchID,
		"created": res.Created,
	})
}

// SubmitBulk saves a round of picks all-or-nothing.
func (h *PredictionHandler) SubmitBulk(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	var req submitBulkReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	for i := range req.Predictions {
		req.Predictions[i].normalize()
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	items := make([]service.BulkItem, 0, len(req.Predictions))
	for _, p := range req.Predictions {
		items = append(items, service.BulkItem{MatchID: p.MatchID, Choice: model.Outcome(p.Result)})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.svc.SubmitBulk(ctx, uid, items)
	if err != nil {
		var rej *service.BulkRejection
		switch {
		case errors.As(err, &rej):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"success":  false,
				"message":  "batch rejected",
				"rejected": rejectionViews(rej),
			})
		case isRuleViolation(err):
			return fail(c, http.StatusBadRequest, err.Error())
		}
		h.log.Error("bulk submit failed", zap.Uint64("user_id", uid), zap.Int("items", len(items)), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "could not save predictions")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "predictions saved",
		"created": res.Created,
		"updated": res.Updated,
	})
}

// AdminList is the all-predictions dashboard.  Errors render [].
func (h *PredictionHandler) AdminList(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rows, err := h.svc.AllPredictions(ctx)
	if err != nil {
		h.log.Error("admin predictions failed", zap.Error(err))
		return c.JSON(http.StatusOK, []predictionRowView{})
	}
	out := make([]predictionRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, predictionRowView{
			ID: r.ID, Username: r.Username,
			HomeTeam: r.HomeTeam, HomeLogo: r.HomeLogo,
			AwayTeam: r.AwayTeam, AwayLogo: r.AwayLogo,
			MatchDate: formatTime(r.KickoffAt), Status: string(r.Status),
			PredictionResult: string(r.Choice), Points: r.Points,
		})
	}
	return c.JSON(http.StatusOK, out)
}

type rejectionView struct {
	MatchID uint64 `json:"matchId"`
	Reason  string `json:"reason"`
}

func rejectionViews(rej *service.BulkRejection) []rejectionView {
	out := make([]rejectionView, 0, len(rej.Items))
	for _, it := range rej.Items {
		out = append(out, rejectionView{MatchID: it.MatchID, Reason: it.Reason.Error()})
	}
	return out
}

// isRuleViolation reports errors the caller can fix by changing the request.
func isRuleViolation(err error) bool {
	return errors.Is(err, service.ErrInvalidInput) ||
		errors.Is(err, service.ErrMatchNotFound) ||
		errors.Is(err, service.ErrMatchStarted) ||
		errors.Is(err, service.ErrNothingToSave)
}
