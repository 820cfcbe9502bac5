// Package handler exposes the HTTP handlers of the API. Every response,
// success or failure, uses the same envelope so the frontend can read
// success and message without looking at the status code.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/service"
	"github.com/iliyamo/onstream-api/internal/upstream"
	"github.com/iliyamo/onstream-api/internal/validation"
)

// Response is the envelope of every API response. Error is a machine
// readable code, set only on failures.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error codes.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeUserExists          = "USER_EXISTS"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeNotFound            = "NOT_FOUND"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamUnmappable  = "UPSTREAM_UNMAPPABLE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

func ok(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Response{Success: false, Error: code, Message: message})
}

// respondError maps a service error onto a status code and envelope.
// Unexpected errors are logged and answered with a generic 500; what
// fallback is the message of the operation that failed.
func respondError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return fail(c, http.StatusBadRequest, CodeValidation, validationMessage(err))
	case errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, CodeUnauthorized, "Incorrect username or password")
	case errors.Is(err, service.ErrUnauthenticated):
		return fail(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
	case errors.Is(err, service.ErrConflict):
		return fail(c, http.StatusConflict, CodeUserExists, "User with this username or email already exists")
	case errors.Is(err, service.ErrAlreadyExists):
		return fail(c, http.StatusConflict, CodeAlreadyExists, "Already exists")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, upstream.ErrNotFound):
		return fail(c, http.StatusNotFound, CodeNotFound, "Not found")
	case errors.Is(err, upstream.ErrUnmappable):
		logging.Ctx(c.Request().Context()).Warn().Err(err).Msg("upstream payload rejected")
		return fail(c, http.StatusBadGateway, CodeUpstreamUnmappable, "Upstream returned an unusable record")
	case errors.Is(err, service.ErrUpstreamUnavailable), errors.Is(err, upstream.ErrUnavailable):
		logging.Ctx(c.Request().Context()).Warn().Err(err).Msg("upstream unavailable")
		return fail(c, http.StatusServiceUnavailable, CodeUpstreamUnavailable, "Upstream service unavailable, try again later")
	}
	logging.Ctx(c.Request().Context()).Error().Err(err).Str("op", what).Msg("request failed")
	return fail(c, http.StatusInternalServerError, CodeInternal, what)
}

// validationMessage prefers the per-field messages of a validator error.
func validationMessage(err error) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Error()
	}
	prefix := service.ErrValidation.Error() + ": "
	msg := err.Error()
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

func badBody(c echo.Context) error {
	return fail(c, http.StatusBadRequest, CodeValidation, "invalid request body")
}

// idParam parses the {id} path parameter as a TMDB id.
func idParam(c echo.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParam reads ?page=, defaulting to 1. Pages above service.MaxPage are rejected.
func pageParam(c echo.Context) (int, bool) {
	raw := c.QueryParam("page")
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > service.MaxPage {
		return 0, false
	}
	return n, true
}

func badID(c echo.Context) error {
	return fail(c, http.StatusBadRequest, CodeValidation, "id must be a positive integer")
}

func badPage(c echo.Context) error {
	return fail(c, http.StatusBadRequest, CodeValidation, fmt.Sprintf("page must be between 1 and %d", service.MaxPage))
}

// HTTPErrorHandler renders errors that escape the handlers (unknown
// routes, bad JSON, recovered panics) in the envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, isStr := he.Message.(string); isStr {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		logging.Ctx(c.Request().Context()).Error().Err(err).Msg("unhandled error")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = fail(c, status, codeForStatus(status), msg)
	}
	if werr != nil {
		logging.Ctx(c.Request().Context()).Warn().Err(werr).Msg("writing error response failed")
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound, status == http.StatusMethodNotAllowed:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= http.StatusInternalServerError:
		return CodeInternal
	default:
		return CodeValidation
	}
}
