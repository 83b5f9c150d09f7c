package cache

import "errors"

var (
	// ErrCacheUnavailable is returned when the backend cannot be reached, either
	// at connect time or for an individual operation.
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrCacheFormat is returned when a stored value does not decode to the
	// expected shape, or a value cannot be encoded for storage.
	ErrCacheFormat = errors.New("cache: invalid entry format")

	// ErrClosed is returned when connecting a coordinator that was already closed.
	ErrClosed = errors.New("cache: coordinator closed")
)
