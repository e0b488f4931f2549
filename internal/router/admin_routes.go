package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prode-predictions/internal/handler"
	"github.com/iliyamo/prode-predictions/internal/middleware"
	"github.com/iliyamo/prode-predictions/internal/model"
)

// RegisterAdmin registers Owner/Dev endpoints under /api/admin.
func RegisterAdmin(e *echo.Echo, m *handler.AdminMatchHandler, u *handler.AdminUserHandler, p *handler.PredictionHandler, jwtSecret string) {
	g := e.Group(
		"/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.AdminRoles...),
	)

	// ---- Matches ----
	g.POST("/matches/bulk-create", m.BulkCreate)
	g.PUT("/matches/:id", m.UpdateResult)
	g.DELETE("/matches", m.Reset)
	g.POST("/sync-matches", m.Sync)

	// ---- Dashboard ----
	g.GET("/predictions", p.AdminList)

	// ---- Users ----
	g.GET("/users", u.List)
	g.PUT("/users/:id/role", u.ChangeRole)
}
