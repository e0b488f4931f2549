package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
)

type fakeRanking struct {
	entries []model.RankingEntry
	err     error
}

func (f fakeRanking) Ranking(context.Context) ([]model.RankingEntry, error) { return f.entries, f.err }

func TestRanking(t *testing.T) {
	h := NewRankingHandler(fakeRanking{entries: []model.RankingEntry{
		{UserID: 1, Username: "ana", Points: 2},
		{UserID: 2, Username: "beto", Points: 2},
		{UserID: 3, Username: "caro", Points: 0},
	}}, zap.NewNop())
	rec := call(t, h.Get, http.MethodGet, "/api/ranking", "", asUser(1, "User"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"username":"ana","points":2},{"username":"beto","points":2},{"username":"caro","points":0}]`, rec.Body.String())
}

func TestRanking_FailureIs500(t *testing.T) {
	h := NewRankingHandler(fakeRanking{err: errors.New("boom")}, zap.NewNop())
	rec := call(t, h.Get, http.MethodGet, "/api/ranking", "", asUser(1, "User"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRanking_EmptyIsArray(t *testing.T) {
	h := NewRankingHandler(fakeRanking{}, zap.NewNop())
	rec := call(t, h.Get, http.MethodGet, "/api/ranking", "", asUser(1, "User"))
	assert.JSONEq(t, `[]`, rec.Body.String())
}
