package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/model"
	"github.com/iliyamo/prode-predictions/internal/repository"
	"github.com/iliyamo/prode-predictions/internal/service"
)

type AdminUserHandler struct {
	users userService
	log   *zap.Logger
}

func NewAdminUserHandler(users userService, log *zap.Logger) *AdminUserHandler {
	return &AdminUserHandler{users: users, log: log.Named("admin-users")}
}

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=User Owner Dev"`
}

func (h *AdminUserHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	users, err := h.users.List(ctx)
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "users": []userView{}})
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": out})
}

func (h *AdminUserHandler) ChangeRole(c echo.Context) error {
	target, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid user id")
	}
	actor, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.users.ChangeRole(ctx, actor, getRole(c), target, model.Role(req.Role))
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, "user not found")
	case err != nil:
		h.log.Error("change role failed", zap.Uint64("target", target), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "could not change role")
	}
	h.log.Info("role changed", zap.Uint64("by", actor), zap.Uint64("user_id", u.ID), zap.String("role", string(u.Role)))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": newUserView(u)})
}
