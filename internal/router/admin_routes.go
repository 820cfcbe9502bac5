package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/handler"
	"github.com/iliyamo/onstream-api/internal/middleware"
)

// registerAdmin registers the maintenance endpoints.  They require a
// token carrying the admin claim.
func registerAdmin(api *echo.Group, h *handler.AdminHandler, mw Middleware) {
	g := api.Group("/admin", middleware.JWTAuth(mw.Auth), middleware.RequireAdmin())
	g.GET("/stats", h.Stats, mw.Limits.PerMinute(writePerMin))
	g.POST("/cache/clear", h.ClearCache, mw.Limits.PerMinute(purgePerMin))
}
