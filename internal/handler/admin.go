package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/service"
)

// AdminHandler serves /admin. Routes run behind JWTAuth and RequireAdmin.
type AdminHandler struct {
	Admin *service.Admin
}

func NewAdminHandler(a *service.Admin) *AdminHandler { return &AdminHandler{Admin: a} }

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	s, err := h.Admin.Stats(c.Request().Context())
	if err != nil {
		return respondError(c, err, "Failed to retrieve system stats")
	}
	return ok(c, http.StatusOK, "System stats retrieved successfully", s)
}

// ClearCache handles POST /admin/cache/clear. The purge runs after the
// response is sent, through the queue when a broker is reachable.
func (h *AdminHandler) ClearCache(c echo.Context) error {
	queued := h.Admin.RequestPurge(c.Request().Context(), caller(c))
	return ok(c, http.StatusAccepted, "Cache clearing initiated successfully", echo.Map{"queued": queued})
}
