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
	"github.com/iliyamo/prode-predictions/internal/repository"
	"github.com/iliyamo/prode-predictions/internal/service"
	"github.com/iliyamo/prode-predictions/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
// Ranking is purged after a sign-up so the new player shows up with 0
// points; it may be nil.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Tokens  *repository.TokenRepo
	Ranking service.CacheInvalidator
	Log     *zap.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, ranking service.CacheInvalidator, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Ranking: ranking, Log: log.Named("auth")}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
type authResp struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message,omitempty"`
	Token        string    `json:"token"`
	TokenExpires time.Time `json:"token_expires"`
	Refresh      string    `json:"refresh"`
	User         userPart  `json:"user"`
}

// Register creates a player account with the User role and returns tokens
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, "email already registered")
	case errors.Is(err, repository.ErrUsernameExists):
		return fail(c, http.StatusConflict, "username already taken")
	case err != nil:
		h.Log.Error("create user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "create user failed")
	}

	if h.Ranking != nil {
		if err := h.Ranking.Invalidate(ctx); err != nil {
			h.Log.Warn("ranking cache purge failed", zap.Error(err))
		}
	}

	u := model.User{ID: uid, Username: req.Username, Email: req.Email, Role: model.RoleUser}
	return h.issue(c, ctx, http.StatusCreated, u, "user registered")
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		h.Log.Error("load user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "query failed")
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	return h.issue(c, ctx, http.StatusOK, u, "")
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	userID, err := h.Tokens.Owner(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	if err := h.Tokens.Revoke(ctx, hash); err != nil {
		h.Log.Warn("revoke old refresh failed", zap.Uint64("user_id", userID), zap.Error(err))
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "invalid refresh")
		}
		h.Log.Error("load user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "load user failed")
	}
	return h.issue(c, ctx, http.StatusOK, u, "")
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.Owner(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.Revoke(ctx, hash); err != nil {
			h.Log.Error("revoke refresh failed", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return fail(c, http.StatusBadRequest, "provide Authorization header or refresh_token")
	}
	id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid token")
	}
	n, err := h.Tokens.RevokeAll(ctx, id.UserID)
	if err != nil {
		h.Log.Error("revoke all failed", zap.Uint64("user_id", id.UserID), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "logout failed")
	}
	h.Log.Debug("signed out everywhere", zap.Uint64("user_id", id.UserID), zap.Int64("revoked", n))
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    userPart{ID: uid, Username: getUsername(c), Role: string(getRole(c))},
	})
}

func (h *AuthHandler) issue(c echo.Context, ctx context.Context, status int, u model.User, msg string) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret,
		utils.Identity{UserID: u.ID, Username: u.Username, Role: string(u.Role)}, h.Cfg.AccessTTLMin)
	if err != nil {
		h.Log.Error("issue access failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		h.Log.Error("issue refresh failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "issue refresh failed")
	}
	if err := h.Tokens.Save(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.Log.Error("save refresh failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "save refresh failed")
	}
	return c.JSON(status, authResp{
		Success:      true,
		Message:      msg,
		Token:        access.Token,
		TokenExpires: access.Exp,
		Refresh:      refresh.Raw,
		User:         userPart{ID: u.ID, Username: u.Username, Role: string(u.Role)},
	})
}
