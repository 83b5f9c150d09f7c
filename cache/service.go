package cache

import (
	"context"
	"time"
)

// Backend is the byte store the Coordinator reads from and writes to.
// Implementations must be safe for concurrent use; connection pooling is
// their concern, the Coordinator issues one operation per call.
type Backend interface {
	// Get returns (value, true, nil) on a live entry and (nil, false, nil) on a miss.
	// Any transport or server failure is reported as a non-nil error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous entry, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Codec converts cached values to and from their stored byte form.
type Codec[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (T, error)
	Name() string
}

// FetchFn is the function signature the Coordinator expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)
