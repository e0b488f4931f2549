package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/service"
)

type fakePredictions struct {
	listed    []model.MatchWithPick
	listErr   error
	submitRes service.SubmitResult
	submitErr error
	bulkRes   service.BulkResult
	bulkErr   error
	rows      []model.PredictionRow
	rowsErr   error

	gotUser   uint64
	gotMatch  uint64
	gotChoice model.Outcome
	gotItems  []service.BulkItem
	calls     int
}

func (f *fakePredictions) Submit(_ context.Context, userID, matchID uint64, choice model.Outcome) (service.SubmitResult, error) {
	f.calls++
	f.gotUser, f.gotMatch, f.gotChoice = userID, matchID, choice
	return f.submitRes, f.submitErr
}

func (f *fakePredictions) SubmitBulk(_ context.Context, userID uint64, items []service.BulkItem) (service.BulkResult, error) {
	f.calls++
	f.gotUser, f.gotItems = userID, items
	return f.bulkRes, f.bulkErr
}

func (f *fakePredictions) ListForUser(_ context.Context, userID uint64) ([]model.MatchWithPick, error) {
	f.gotUser = userID
	return f.listed, f.listErr
}

func (f *fakePredictions) MyHistory(_ context.Context, userID uint64) ([]model.MatchWithPick, error) {
	f.gotUser = userID
	return f.listed, f.listErr
}

func (f *fakePredictions) AllPredictions(context.Context) ([]model.PredictionRow, error) {
	return f.rows, f.rowsErr
}

func TestListMatches_RequiresUser(t *testing.T) {
	h := NewPredictionHandler(&fakePredictions{}, zap.NewNop())
	rec := call(t, h.ListMatches, http.MethodGet, "/api/partidos", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMatches_ReadErrorRendersEmptyList(t *testing.T) {
	h := NewPredictionHandler(&fakePredictions{listErr: errors.New("connection reset")}, zap.NewNop())
	rec := call(t, h.ListMatches, http.MethodGet, "/api/partidos", "", asUser(3, "User"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListMatches_Shape(t *testing.T) {
	home := model.OutcomeHome
	svc := &fakePredictions{listed: []model.MatchWithPick{
		{Match: model.Match{ID: 1, HomeTeam: "River", AwayTeam: "Boca", KickoffAt: time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC), Status: model.StatusNotStarted}, Choice: &home},
		{Match: model.Match{ID: 2, HomeTeam: "Racing", AwayTeam: "Independiente", KickoffAt: time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC), Status: model.StatusNotStarted}},
	}}
	h := NewPredictionHandler(svc, zap.NewNop())
	rec := call(t, h.ListMatches, http.MethodGet, "/api/partidos", "", asUser(3, "User"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(3), svc.gotUser)
	assert.JSONEq(t, `[
		{"id":1,"local":"River","logoLocal":"","visitante":"Boca","logoVisitante":"","fecha":"2025-03-01T20:00:00Z","status":"NS","miPronostico":"HOME"},
		{"id":2,"local":"Racing","logoLocal":"","visitante":"Independiente","logoVisitante":"","fecha":"2025-03-02T20:00:00Z","status":"NS","miPronostico":null}
	]`, rec.Body.String())
}

func TestMyHistory_IncludesPoints(t *testing.T) {
	draw := model.OutcomeDraw
	one := 1
	svc := &fakePredictions{listed: []model.MatchWithPick{
		{Match: model.Match{ID: 5, HomeTeam: "A", AwayTeam: "B", Status: model.StatusFinished, HomeScore: &one, AwayScore: &one}, Choice: &draw, Points: 1},
	}}
	h := NewPredictionHandler(svc, zap.NewNop())
	rec := call(t, h.MyHistory, http.MethodGet, "/api/predictions/me", "", asUser(3, "User"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"puntos":1`)
	assert.Contains(t, rec.Body.String(), `"golesLocal":1`)
}

func TestSubmit_Created(t *testing.T) {
	svc := &fakePredictions{submitRes: service.SubmitResult{MatchID: 9, Created: true}}
	h := NewPredictionHandler(svc, zap.NewNop())
	rec := call(t, h.Submit, http.MethodPost, "/api/predictions/submit", `{"matchId":9,"result":"home"}`, asUser(3, "User"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.OutcomeHome, svc.gotChoice)
	assert.Equal(t, uint64(9), svc.gotMatch)
	assert.Contains(t, rec.Body.String(), "prediction saved")
}

func TestSubmit_UpdateSaysUpdated(t *testing.T) {
	svc := &fakePredictions{submitRes: service.SubmitResult{MatchID: 9}}
	h := NewPredictionHandler(svc, zap.NewNop())
	rec := call(t, h.Submit, http.MethodPost, "/api/predictions/submit", `{"matchId":9,"result":"DRAW"}`, asUser(3, "User"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "prediction updated")
}

func TestSubmit_InvalidBodyNeverReachesService(t *testing.T) {
	svc := &fakePredictions{}
	h := NewPredictionHandler(svc, zap.NewNop())
	for _, body := range []string{`{"matchId":9,"result":"WIN"}`, `{"result":"HOME"}`, `not json`} {
		rec := call(t, h.Submit, http.MethodPost, "/api/predictions/submit", body, asUser(3, "User"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, svc.calls)
}

func TestSubmit_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("match 9: %w", service.ErrMatchStarted), http.StatusBadRequest},
		{service.ErrMatchNotFound, http.StatusBadRequest},
		{errors.New("deadlock"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewPredictionHandler(&fakePredictions{submitErr: tc.err}, zap.NewNop())
		rec := call(t, h.Submit, http.MethodPost, "/api/predictions/submit", `{"matchId":9,"result":"AWAY"}`, asUser(3, "User"))
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		if tc.code == http.StatusInternalServerError {
			assert.NotContains(t, rec.Body.String(), "deadlock")
		}
	}
}

func TestSubmitBulk_Success(t *testing.T) {
	svc := &fakePredictions{bulkRes: service.BulkResult{Created: 2, Updated: 1}}
	h := NewPredictionHandler(svc, zap.NewNop())
	body := `{"predictions":[{"matchId":1,"result":"HOME"},{"matchId":2,"result":"draw"},{"matchId":3,"result":"AWAY"}]}`
	rec := call(t, h.SubmitBulk, http.MethodPost, "/api/predictions/submit-bulk", body, asUser(3, "User"))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.gotItems, 3)
	assert.Equal(t, model.OutcomeDraw, svc.gotItems[1].Choice)
	assert.Contains(t, rec.Body.String(), `"created":2`)
}

func TestSubmitBulk_EmptyIs400(t *testing.T) {
	h := NewPredictionHandler(&fakePredictions{bulkErr: service.ErrNothingToSave}, zap.NewNop())
	rec := call(t, h.SubmitBulk, http.MethodPost, "/api/predictions/submit-bulk", `{"predictions":[]}`, asUser(3, "User"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitBulk_RejectionListsItems(t *testing.T) {
	rej := &service.BulkRejection{Items: []service.ItemRejection{{MatchID: 2, Reason: service.ErrMatchNotFound}}}
	h := NewPredictionHandler(&fakePredictions{bulkErr: rej}, zap.NewNop())
	body := `{"predictions":[{"matchId":1,"result":"HOME"},{"matchId":2,"result":"HOME"}]}`
	rec := call(t, h.SubmitBulk, http.MethodPost, "/api/predictions/submit-bulk", body, asUser(3, "User"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rejected":[{"matchId":2,"reason":"match not found"}]`)
}

func TestSubmitBulk_StorageFailureIs500(t *testing.T) {
	h := NewPredictionHandler(&fakePredictions{bulkErr: errors.New("tx aborted")}, zap.NewNop())
	body := `{"predictions":[{"matchId":1,"result":"HOME"}]}`
	rec := call(t, h.SubmitBulk, http.MethodPost, "/api/predictions/submit-bulk", body, asUser(3, "User"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminList_ErrorRendersEmptyList(t *testing.T) {
	h := NewPredictionHandler(&fakePredictions{rowsErr: errors.New("boom")}, zap.NewNop())
	rec := call(t, h.AdminList, http.MethodGet, "/api/admin/predictions", "", asUser(1, "Owner"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
