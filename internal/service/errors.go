// Package service holds the business logic behind the HTTP handlers: the
// cache-aside resolver, catalog browsing, authentication, the per-user
// library and admin maintenance. Services depend on small store
// interfaces so they can be exercised with in-memory fakes.
package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrTokenExpired        = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrInvalidCredentials  = fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	ErrConflict            = errors.New("username or email already registered")
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// invalid wraps a validation failure so callers can match ErrValidation
// and still reach the field errors.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// invalidf builds a validation error from a message.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
