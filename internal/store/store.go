// Package store provides the key/value backends tokens are persisted in: the
// per-user session store and the process-wide shared cache.
package store

import (
	"context"
	"time"

	apierrors "github.com/poken/poseidon/internal/errors"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = apierrors.ErrNotFound

// Store is a key/value backend.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 keeps the value until it is
	// overwritten or deleted; session backends ignore ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
