package middleware

// identity.go holds the context plumbing shared by the middleware: where
// JWTAuth stores the verified caller and how other middleware read it.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/model"
)

const identityKey = "identity"

// SetIdentity stores the verified caller on the request context.
func SetIdentity(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.Username != ""
}

// currentUser returns the caller's username, or "anon" before JWTAuth ran
// or on public routes.
func currentUser(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.Username
	}
	return "anon"
}

// deny writes the error envelope used across the API.
func deny(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"success": false, "error": code, "message": message})
}
