// Package middleware holds the Echo middleware shared by the routes.
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin aborts with 403 unless the caller verified by JWTAuth holds
// the admin claim.  It must run after JWTAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			}
			if !id.IsAdmin {
				return deny(c, http.StatusForbidden, "FORBIDDEN", "admin access required")
			}
			return next(c)
		}
	}
}
