package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
)

// RequestLogger propagates or assigns X-Request-ID, attaches a
// request-scoped zerolog logger to the request context and logs one line
// per request. It also records the request metrics.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" || len(id) > 128 {
				id = logging.GenerateRequestID()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(logging.ContextWithRequestID(req.Context(), id)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordAPIRequest(req.Method, route, status, elapsed)

			ev := logging.Ctx(c.Request().Context()).Info()
			if status >= 500 {
				ev = logging.Ctx(c.Request().Context()).Error().Err(err)
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", route).
				Int("status", status).
				Dur("duration", elapsed).
				Str("ip", c.RealIP()).
				Str("user", currentUser(c)).
				Msg("request")
			return nil
		}
	}
}
