package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/handler"
	"github.com/iliyamo/onstream-api/internal/middleware"
)

// registerLibrary registers the caller's favorites and watch history.
// Every route requires a valid bearer token.
func registerLibrary(api *echo.Group, h *handler.LibraryHandler, mw Middleware) {
	read := mw.Limits.PerMinute(readPerMin)
	write := mw.Limits.PerMinute(writePerMin)

	fav := api.Group("/favorites", middleware.JWTAuth(mw.Auth))
	fav.GET("", h.ListFavorites, read)
	fav.POST("", h.AddFavorite, write)
	fav.DELETE("/:id", h.RemoveFavorite, write)

	hist := api.Group("/watch-history", middleware.JWTAuth(mw.Auth))
	hist.GET("", h.ListWatchHistory, read)
	hist.POST("", h.AddWatchHistory, write)
	hist.GET("/:id", h.GetProgress, read)
	hist.DELETE("/:id", h.RemoveWatchHistory, write)
}
