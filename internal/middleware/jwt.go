package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/service"
)

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(token string) (model.Identity, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller's identity in the context, where handlers read it via
// IdentityFrom.  Verification is stateless: no database read happens here.
func JWTAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			}

			id, err := auth.Authenticate(strings.TrimSpace(raw))
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, service.ErrTokenExpired) {
					msg = "token expired"
				}
				logging.Ctx(c.Request().Context()).Debug().Err(err).Msg("bearer token rejected")
				return deny(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			}

			SetIdentity(c, id)
			return next(c)
		}
	}
}
