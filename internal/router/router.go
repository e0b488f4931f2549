// Package router registers every HTTP route and the middleware guarding it.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prode-predictions/internal/handler"
	"github.com/iliyamo/prode-predictions/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints under /api/auth and the
// protected /api/me.  limiter guards the unauthenticated group.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)   // refresh_token body, or bearer for every session

	e.GET("/api/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterChat mounts the websocket relay.  The handler authenticates the
// token query parameter itself.
func RegisterChat(e *echo.Echo, ch *handler.ChatHandler) {
	e.GET("/ws/chat", ch.Connect)
}
