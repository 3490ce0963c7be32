// Package cache provides the key-value store used for last-known-good state.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store minimal key-value contract with bounded lists and counters.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; ttl of zero keeps the key forever.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	LPush(ctx context.Context, key string, values ...[]byte) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
}
