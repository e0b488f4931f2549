package handler

import (
	"context"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
	"github.com/iliyamo/prode-predictions/internal/repository"
	"github.com/iliyamo/prode-predictions/internal/utils"
)

var userCols = []string{"id", "username", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}

type countingPurge struct{ calls int }

func (p *countingPurge) Invalidate(context.Context) error {
	p.calls++
	return nil
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	return NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), nil, zap.NewNop()), mock
}

func TestRegister_IssuesTokens(t *testing.T) {
	h, mock := newAuthHandler(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, email, password_hash, role)")).
		WithArgs("ana", "ana@prode.io", sqlmock.AnyArg(), "User").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(12, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := call(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"username":" ana ","email":"Ana@Prode.io","password":"secret1"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"user":{"id":12,"username":"ana","role":"User"}`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_PurgesRankingCache(t *testing.T) {
	h, mock := newAuthHandler(t)
	purge := &countingPurge{}
	h.Ranking = purge
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(13, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).WillReturnResult(sqlmock.NewResult(1, 1))

	rec := call(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"beto","email":"beto@prode.io","password":"secret1"}`, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, purge.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, mock := newAuthHandler(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ana@prode.io' for key 'uq_users_email'"})

	rec := call(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"ana","email":"ana@prode.io","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already registered")
}

func TestRegister_Validation(t *testing.T) {
	h, mock := newAuthHandler(t)
	rec := call(t, h.Register, http.MethodPost, "/api/auth/register",
		`{"username":"an","email":"not-an-email","password":"123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	h, mock := newAuthHandler(t)
	hash, err := utils.HashPassword("secret1", 4)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery("SELECT id,username,email,password_hash,role,is_active,created_at,updated_at FROM users WHERE email=").
		WithArgs("ana@prode.io").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "ana", "ana@prode.io", hash, "Owner", true, now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := call(t, h.Login, http.MethodPost, "/api/auth/login", `{"email":"ana@prode.io","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"Owner"`)
	assert.Contains(t, rec.Body.String(), `"success":true`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_WrongPassword(t *testing.T) {
	h, mock := newAuthHandler(t)
	hash, err := utils.HashPassword("secret1", 4)
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery("FROM users WHERE email=").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "ana", "ana@prode.io", hash, "User", true, now, now))

	rec := call(t, h.Login, http.MethodPost, "/api/auth/login", `{"email":"ana@prode.io","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	h, mock := newAuthHandler(t)
	mock.ExpectQuery("FROM users WHERE email=").WillReturnRows(sqlmock.NewRows(userCols))

	rec := call(t, h.Login, http.MethodPost, "/api/auth/login", `{"email":"who@prode.io","password":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestLogout_RequiresSomething(t *testing.T) {
	h, _ := newAuthHandler(t)
	rec := call(t, h.Logout, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_BearerRevokesAll(t *testing.T) {
	h, mock := newAuthHandler(t)
	tok, err := utils.NewAccessToken("test-secret", utils.Identity{UserID: 3, Username: "ana", Role: "User"}, 5)
	require.NoError(t, err)
	mock.ExpectExec("UPDATE refresh_tokens").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 2))

	rec := call(t, h.Logout, http.MethodPost, "/api/auth/logout", "", func(c echo.Context) {
		c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMe(t *testing.T) {
	h, _ := newAuthHandler(t)
	rec := call(t, h.Me, http.MethodGet, "/api/me", "", asUser(3, "User"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"user":{"id":3,"username":"ana","role":"User"}}`, rec.Body.String())
}
