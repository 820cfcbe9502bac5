package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Root is the banner served at /.
func Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "OnStream API", "version": "1.0.0"})
}

// Health is used by load balancers and monitoring.  It answers 503 when
// the database does not respond within two seconds.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		now := time.Now().UTC().Format(time.RFC3339)
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy", "database": "unreachable", "timestamp": now})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "healthy", "timestamp": now})
	}
}
