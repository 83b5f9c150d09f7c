// Package cache implements a read-through cache in front of an authoritative
// record store.
//
// # Overview
//
// The package exports three pieces:
//
//   - KeyBuilder: derives stable keys of the form "tracks:all" or "tracks:name=love"
//   - Codec: turns values into the bytes stored in the backend
//   - Coordinator: runs the get, fetch on miss, set with TTL protocol
//
// A Backend is any byte store with per-entry expiry. NewBackend builds the
// Redis or in-process sturdyc backend described by a Config, optionally
// behind a circuit breaker.
//
// # Basic Usage
//
//	backend, err := cache.NewBackend(cfg)
//	if err != nil {
//		return err
//	}
//	coord := cache.NewCoordinator[[]catalog.Track](backend, nil, cfg.Options()...)
//	if err := coord.Connect(ctx); err != nil {
//		log.Warn().Err(err).Msg("continuing without cache")
//	}
//	defer coord.Close()
//
//	tracks, err := coord.ReadThrough(ctx, "tracks", filter, func(ctx context.Context) ([]catalog.Track, error) {
//		return store.Fetch(ctx, filter)
//	})
//
// # Failure Isolation
//
// The cache is an optimization. Get, Set and ReadThrough never return cache
// errors: an unreachable backend, a timed out command or an undecodable entry
// is logged and treated as a miss, and a failed write is dropped. The only
// error ReadThrough returns is the one returned by the fetch function, which
// passes through unchanged.
//
// Connect is the only place the backend's reachability is decided. If the
// initial ping fails the coordinator is degraded and bypasses the backend
// for the rest of its life unless Reconnect is called. Runtime failures on a
// connected coordinator do not change its state.
//
// Lookup and Store expose the same operations with typed errors
// (ErrCacheUnavailable, ErrCacheFormat) for callers that need to tell the
// cases apart.
//
// # Wire Format
//
// JSONCodec writes the exact bytes Python's json.dumps writes for the same
// list of dicts, so Go and Python processes can share one Redis database.
// Entries are never partial: each write is a single SET with expiry.
//
// # Consistency
//
// Entries are not invalidated when the record store changes. Staleness is
// bounded by the TTL (DefaultTTL unless configured).
package cache
