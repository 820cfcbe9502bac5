package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/middleware"
	"github.com/iliyamo/onstream-api/internal/service"
)

// LibraryHandler serves the caller's favorites and watch history. Every
// route runs behind JWTAuth.
type LibraryHandler struct {
	Library *service.Library
}

func NewLibraryHandler(lib *service.Library) *LibraryHandler {
	return &LibraryHandler{Library: lib}
}

func caller(c echo.Context) string {
	id, _ := middleware.IdentityFrom(c)
	return id.Username
}

// AddFavorite handles POST /favorites.
func (h *LibraryHandler) AddFavorite(c echo.Context) error {
	var in service.FavoriteInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	f, err := h.Library.AddFavorite(c.Request().Context(), caller(c), in)
	if errors.Is(err, service.ErrAlreadyExists) {
		return fail(c, http.StatusConflict, CodeAlreadyExists, "Already in favorites")
	}
	if err != nil {
		return respondError(c, err, "Failed to add to favorites")
	}
	return ok(c, http.StatusCreated, "Added to favorites successfully", f)
}

// RemoveFavorite handles DELETE /favorites/:id.
func (h *LibraryHandler) RemoveFavorite(c echo.Context) error {
	id, valid := idParam(c)
	if !valid {
		return badID(c)
	}
	err := h.Library.RemoveFavorite(c.Request().Context(), caller(c), id)
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, http.StatusNotFound, CodeNotFound, "Movie not found in favorites")
	}
	if err != nil {
		return respondError(c, err, "Failed to remove from favorites")
	}
	return ok(c, http.StatusOK, "Removed from favorites successfully", nil)
}

// ListFavorites handles GET /favorites?page=.
func (h *LibraryHandler) ListFavorites(c echo.Context) error {
	page, valid := pageParam(c)
	if !valid {
		return badPage(c)
	}
	res, err := h.Library.ListFavorites(c.Request().Context(), caller(c), page)
	if err != nil {
		return respondError(c, err, "Failed to retrieve favorites")
	}
	return ok(c, http.StatusOK, "Favorites retrieved successfully", res)
}

// AddWatchHistory handles POST /watch-history.
func (h *LibraryHandler) AddWatchHistory(c echo.Context) error {
	var in service.HistoryInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	e, err := h.Library.AddWatchHistory(c.Request().Context(), caller(c), in)
	if err != nil {
		return respondError(c, err, "Failed to add to watch history")
	}
	return ok(c, http.StatusCreated, "Added to watch history successfully", e)
}

// ListWatchHistory handles GET /watch-history?page=.
func (h *LibraryHandler) ListWatchHistory(c echo.Context) error {
	page, valid := pageParam(c)
	if !valid {
		return badPage(c)
	}
	res, err := h.Library.ListWatchHistory(c.Request().Context(), caller(c), page)
	if err != nil {
		return respondError(c, err, "Failed to retrieve watch history")
	}
	return ok(c, http.StatusOK, "Watch history retrieved successfully", res)
}

// GetProgress handles GET /watch-history/:id, the latest entry of a title.
func (h *LibraryHandler) GetProgress(c echo.Context) error {
	id, valid := idParam(c)
	if !valid {
		return badID(c)
	}
	e, err := h.Library.CurrentProgress(c.Request().Context(), caller(c), id)
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, http.StatusNotFound, CodeNotFound, "Movie not found in watch history")
	}
	if err != nil {
		return respondError(c, err, "Failed to retrieve watch progress")
	}
	return ok(c, http.StatusOK, "Watch progress retrieved successfully", e)
}

// RemoveWatchHistory handles DELETE /watch-history/:id. Every entry of the
// title is removed.
func (h *LibraryHandler) RemoveWatchHistory(c echo.Context) error {
	id, valid := idParam(c)
	if !valid {
		return badID(c)
	}
	n, err := h.Library.RemoveWatchHistory(c.Request().Context(), caller(c), id)
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, http.StatusNotFound, CodeNotFound, "Movie not found in watch history")
	}
	if err != nil {
		return respondError(c, err, "Failed to remove from watch history")
	}
	return ok(c, http.StatusOK, "Removed from watch history successfully", echo.Map{"removed": n})
}
