// Package repository implements the MongoDB-backed stores. Repositories
// translate driver errors into the sentinel values below so higher layers
// never import the driver to tell failure scenarios apart.
package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no document matches the lookup key.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index, e.g. a
// second user with the same username or a repeated (username, tmdb_id)
// favorite. Handlers translate this into an HTTP 409 response.
var ErrDuplicate = errors.New("duplicate key")

// translate maps driver errors onto the sentinels above.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

// skipLimit converts a 1-based page and page size into skip/limit values.
func skipLimit(page, size int) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	return int64((page - 1) * size), int64(size)
}
