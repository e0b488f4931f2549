package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/prode-predictions/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var matchCols = []string{"id", "external_id", "home_team", "away_team", "home_logo", "away_logo",
	"match_date", "status", "home_score", "away_score", "round", "is_active"}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM predictions").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := NewPredictionRepo(tx).DeleteAll(ctx)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = WithTx(ctx, db, func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.Panics(t, func() {
		_ = WithTx(ctx, db, func(tx *sql.Tx) error { panic("bad") })
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'bob' for key 'users.uq_users_username'"})
	_, err := repo.Create(ctx, "bob", "bob@x.io", "password1", model.RoleUser, 4)
	assert.ErrorIs(t, err, ErrUsernameExists)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'bob@x.io' for key 'users.uq_users_email'"})
	_, err = repo.Create(ctx, "bob", "bob@x.io", "password1", model.RoleUser, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("bob", "bob@x.io", sqlmock.AnyArg(), "User").
		WillReturnResult(sqlmock.NewResult(7, 1))
	id, err := repo.Create(ctx, " bob ", " BOB@x.io", "password1", model.RoleUser, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM users WHERE id=").WithArgs(uint64(9)).WillReturnError(sql.ErrNoRows)

	_, err := NewUserRepo(db).GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserUpdateRole(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE users SET role").WithArgs("Owner", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateRole(ctx, 3, model.RoleOwner))

	mock.ExpectExec("UPDATE users SET role").WithArgs("Dev", uint64(4)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM users").WithArgs(uint64(4)).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.UpdateRole(ctx, 4, model.RoleDev), ErrNotFound)

	mock.ExpectExec("UPDATE users SET role").WithArgs("Dev", uint64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM users").WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	assert.NoError(t, repo.UpdateRole(ctx, 5, model.RoleDev))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	cols := []string{"user_id", "expires_at", "revoked_at"}

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(2), time.Now().Add(time.Hour), nil))
	id, err := repo.Owner(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("h2").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(2), time.Now().Add(time.Hour), time.Now()))
	_, err = repo.Owner(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("h3").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(uint64(2), time.Now().Add(-time.Hour), nil))
	_, err = repo.Owner(ctx, "h3")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("FROM refresh_tokens").WithArgs("h4").WillReturnError(sql.ErrNoRows)
	_, err = repo.Owner(ctx, "h4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRevokeAllAndPurge(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	cutoff := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.RevokeAll(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mock.ExpectExec("DELETE FROM refresh_tokens").WithArgs(cutoff, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))
	n, err = repo.PurgeExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchGetByIDScansNullables(t *testing.T) {
	db, mock := newMock(t)
	kick := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM matches m WHERE m.id=?")).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(uint64(1), nil, "River", "Boca", "", "", kick, "NS", nil, nil, "Fecha 1", true))
	m, err := NewMatchRepo(db).GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, m.ExternalID)
	assert.False(t, m.FromProvider())
	assert.False(t, m.HasScore())
	assert.Equal(t, model.StatusNotStarted, m.Status)
	assert.Equal(t, kick, m.KickoffAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM matches m WHERE m.id=?")).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(uint64(2), int64(9001), "River", "Boca", "a.png", "b.png", kick, "FT", int64(2), int64(0), "", true))
	m, err = NewMatchRepo(db).GetByID(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, m.ExternalID)
	assert.Equal(t, int64(9001), *m.ExternalID)
	require.True(t, m.HasScore())
	assert.Equal(t, 2, *m.HomeScore)
	assert.Equal(t, 0, *m.AwayScore)

	mock.ExpectQuery(regexp.QuoteMeta("FROM matches m WHERE m.id=?")).WithArgs(uint64(3)).WillReturnError(sql.ErrNoRows)
	_, err = NewMatchRepo(db).GetByID(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatchInsertWritesDBTimeLayout(t *testing.T) {
	db, mock := newMock(t)
	ext := int64(77)
	m := model.Match{
		ExternalID: &ext, HomeTeam: "Racing", AwayTeam: "Independiente",
		KickoffAt: time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("ART", -3*3600)),
		Status:    model.StatusNotStarted, IsActive: true,
	}
	mock.ExpectExec("INSERT INTO matches").
		WithArgs(int64(77), "Racing", "Independiente", "", "", "2025-03-02 02:30:00", "NS", nil, nil, "", true).
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := NewMatchRepo(db).Insert(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchListOpenForUser(t *testing.T) {
	db, mock := newMock(t)
	kick := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	cols := append(append([]string{}, matchCols...), "prediction_result", "points")

	mock.ExpectQuery("NOT IN \\('FT','PST','CANC','ABD'\\)").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uint64(1), nil, "A", "B", "", "", kick, "NS", nil, nil, "R1", true, "HOME", 0).
			AddRow(uint64(2), nil, "C", "D", "", "", kick.Add(time.Hour), "NS", nil, nil, "R1", true, nil, 0))

	items, err := NewMatchRepo(db).ListOpenForUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Choice)
	assert.Equal(t, model.OutcomeHome, *items[0].Choice)
	assert.Nil(t, items[1].Choice)
}

func TestPredictionUpsertCreatedVsUpdated(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPredictionRepo(db)
	ctx := context.Background()

	mock.ExpectExec("ON DUPLICATE KEY UPDATE").WithArgs(uint64(1), uint64(2), "HOME").
		WillReturnResult(sqlmock.NewResult(1, 1))
	created, err := repo.Upsert(ctx, 1, 2, model.OutcomeHome)
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec("ON DUPLICATE KEY UPDATE").WithArgs(uint64(1), uint64(2), "AWAY").
		WillReturnResult(sqlmock.NewResult(1, 2))
	created, err = repo.Upsert(ctx, 1, 2, model.OutcomeAway)
	require.NoError(t, err)
	assert.False(t, created)

	mock.ExpectExec("ON DUPLICATE KEY UPDATE").WithArgs(uint64(1), uint64(2), "AWAY").
		WillReturnResult(sqlmock.NewResult(1, 0))
	created, err = repo.Upsert(ctx, 1, 2, model.OutcomeAway)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPredictionApplyPoints(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE predictions").WithArgs(0, 1, 0, uint64(8)).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := NewPredictionRepo(db).ApplyPoints(context.Background(), 8, PointsTable{Draw: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPredictionRanking(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("LEFT JOIN predictions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "total"}).
			AddRow(uint64(1), "ana", 2).
			AddRow(uint64(2), "beto", 2).
			AddRow(uint64(3), "caro", 0))

	out, err := NewPredictionRepo(db).Ranking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.RankingEntry{
		{UserID: 1, Username: "ana", Points: 2},
		{UserID: 2, Username: "beto", Points: 2},
		{UserID: 3, Username: "caro", Points: 0},
	}, out)
}
