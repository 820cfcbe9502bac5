package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/service"
)

// CatalogHandler serves the public browsing routes: listings, search,
// details and stream sources.
type CatalogHandler struct {
	Catalog  *service.Catalog
	Resolver *service.Resolver
}

func NewCatalogHandler(catalog *service.Catalog, resolver *service.Resolver) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog, Resolver: resolver}
}

// ListMovies handles GET /movies?page=&type=&genre=&year=.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	q := service.ListQuery{Page: 1}
	if err := c.Bind(&q); err != nil {
		return fail(c, http.StatusBadRequest, CodeValidation, "invalid query parameters")
	}
	page, err := h.Catalog.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err, "Failed to retrieve movies")
	}
	return ok(c, http.StatusOK, "Movies retrieved successfully", page)
}

// GetMovie handles GET /movies/:id. An optional ?type=movie|tv says which
// TMDB endpoint to try first.
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	id, valid := idParam(c)
	if !valid {
		return badID(c)
	}
	t, err := h.Resolver.ResolveTitle(c.Request().Context(), id, c.QueryParam("type"))
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, http.StatusNotFound, CodeNotFound, "Movie not found")
	}
	if err != nil {
		return respondError(c, err, "Failed to retrieve movie details")
	}
	return ok(c, http.StatusOK, "Movie details retrieved successfully", t)
}

// GetStreams handles GET /movies/:id/stream.
func (h *CatalogHandler) GetStreams(c echo.Context) error {
	id, valid := idParam(c)
	if !valid {
		return badID(c)
	}
	set, err := h.Resolver.ResolveStreams(c.Request().Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, http.StatusNotFound, CodeNotFound, "Movie not found")
	}
	if err != nil {
		return respondError(c, err, "Failed to retrieve streaming sources")
	}
	return ok(c, http.StatusOK, "Streaming sources retrieved successfully", set)
}

// Search handles GET /search?q=&page=.
func (h *CatalogHandler) Search(c echo.Context) error {
	q := service.SearchQuery{Page: 1}
	if err := c.Bind(&q); err != nil {
		return fail(c, http.StatusBadRequest, CodeValidation, "invalid query parameters")
	}
	page, err := h.Catalog.Search(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err, "Search failed")
	}
	return ok(c, http.StatusOK, "Search completed successfully", page)
}

// Trending handles GET /trending. The result is a single page.
func (h *CatalogHandler) Trending(c echo.Context) error {
	titles, err := h.Catalog.Trending(c.Request().Context())
	if err != nil {
		return respondError(c, err, "Failed to retrieve trending content")
	}
	page := model.NewPage(1, len(titles), int64(len(titles)), titles)
	return ok(c, http.StatusOK, "Trending content retrieved successfully", page)
}

// Genres handles GET /genres.
func (h *CatalogHandler) Genres(c echo.Context) error {
	genres, err := h.Catalog.Genres(c.Request().Context())
	if err != nil {
		return respondError(c, err, "Failed to retrieve genres")
	}
	return ok(c, http.StatusOK, "Genres retrieved successfully", echo.Map{"genres": genres})
}
