package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prode-predictions/internal/handler"
	"github.com/iliyamo/prode-predictions/internal/middleware"
)

// RegisterPlayer registers the endpoints any signed-in user may call.
// limiter runs after JWTAuth so buckets can be keyed by user; cache only
// wraps the ranking, whose output is the same for every caller.
func RegisterPlayer(e *echo.Echo, p *handler.PredictionHandler, r *handler.RankingHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/api", middleware.JWTAuth(jwtSecret), limiter)

	g.GET("/partidos", p.ListMatches)
	g.GET("/predictions/me", p.MyHistory)
	g.POST("/predictions/submit", p.Submit)
	g.POST("/predictions/submit-bulk", p.SubmitBulk)

	g.GET("/ranking", r.Get, cache)
}
