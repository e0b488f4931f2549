package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/chat"
	"github.com/iliyamo/prode-predictions/internal/utils"
)

// ChatHandler authenticates the websocket handshake and hands the
// connection to the hub.  Browsers cannot set headers on websocket
// requests, so the access token travels in the query string.
type ChatHandler struct {
	hub    *chat.Hub
	secret string
	log    *zap.Logger
}

func NewChatHandler(hub *chat.Hub, secret string, log *zap.Logger) *ChatHandler {
	return &ChatHandler{hub: hub, secret: secret, log: log.Named("chat-http")}
}

func (h *ChatHandler) Connect(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("token"))
	if raw == "" {
		return fail(c, http.StatusUnauthorized, "missing token")
	}
	id, err := utils.ParseAccessToken(h.secret, raw)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid token")
	}
	if err := h.hub.Serve(c.Response(), c.Request(), id.Username); err != nil {
		// the upgrader has already answered the client
		h.log.Debug("chat handshake failed", zap.Uint64("user_id", id.UserID), zap.Error(err))
	}
	return nil
}
