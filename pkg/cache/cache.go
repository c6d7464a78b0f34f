// Package cache provides short-lived byte caches used in front of
// read-mostly tenant catalogs.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values with an expiry
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
