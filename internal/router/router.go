// Package router wires handlers and middleware onto the echo instance.
// API routes live under /api; the banner, health probe and Prometheus
// endpoint sit at the top level.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/onstream-api/internal/handler"
	"github.com/iliyamo/onstream-api/internal/middleware"
)

// Per-route request budgets, per client and minute.
const (
	registerPerMin = 5
	loginPerMin    = 10
	readPerMin     = 60
	writePerMin    = 30
	purgePerMin    = 10
)

// Handlers groups the route handlers.
type Handlers struct {
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Library *handler.LibraryHandler
	Admin   *handler.AdminHandler
	Health  echo.HandlerFunc
}

// Middleware groups the middleware shared by several routes.  Limits and
// Cache may be built without Redis, in which case they pass through.
type Middleware struct {
	Auth   middleware.Authenticator
	Limits *middleware.RateLimiter
	Cache  echo.MiddlewareFunc
}

// New creates the echo instance with the JSON serializer, error envelope,
// request logging, panic recovery and CORS for the given origins.
func New(corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = handler.JSONSerializer{}
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders:    []string{echo.HeaderXRequestID, "X-Cache", "Retry-After"},
		AllowCredentials: true,
	}))
	return e
}

// RegisterRoutes registers every route of the service.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middleware) {
	e.GET("/", handler.Root)
	if h.Health != nil {
		e.GET("/health", h.Health)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	registerAuth(api, h.Auth, mw)
	registerCatalog(api, h.Catalog, mw)
	registerLibrary(api, h.Library, mw)
	registerAdmin(api, h.Admin, mw)
}

func registerAuth(api *echo.Group, a *handler.AuthHandler, mw Middleware) {
	g := api.Group("/auth")
	g.POST("/register", a.Register, mw.Limits.PerMinute(registerPerMin))
	g.POST("/login", a.Login, mw.Limits.PerMinute(loginPerMin))
	g.GET("/me", a.Me, middleware.JWTAuth(mw.Auth), mw.Limits.PerMinute(writePerMin))
}

func registerCatalog(api *echo.Group, c *handler.CatalogHandler, mw Middleware) {
	read := mw.Limits.PerMinute(readPerMin)
	cache := mw.Cache
	if cache == nil {
		cache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	api.GET("/movies", c.ListMovies, read)
	api.GET("/movies/:id", c.GetMovie, read)
	api.GET("/movies/:id/stream", c.GetStreams, mw.Limits.PerMinute(writePerMin))
	api.GET("/search", c.Search, read)
	api.GET("/trending", c.Trending, read, cache)
	api.GET("/genres", c.Genres, read, cache)
}
