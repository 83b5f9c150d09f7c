// Package storecache provides a cached decorator for catalog record stores.
//
// # Overview
//
// CachedStore wraps a catalog.RecordStore and routes every Fetch through a
// cache.Coordinator. Keys are derived from a namespace and the filter:
//
//	tracks:all          Fetch(ctx, "")
//	tracks:name=love    Fetch(ctx, "Love"), Fetch(ctx, "LOVE"), ...
//
// # Basic Usage
//
//	base := catalog.NewBunStore(db)
//	coord := cache.NewCoordinator[[]catalog.Track](backend, nil)
//	_ = coord.Connect(ctx)
//
//	store, err := storecache.New(base, coord, storecache.DefaultNamespace)
//	if err != nil {
//		return err
//	}
//	tracks, err := store.Fetch(ctx, "love")
//
// # Errors
//
// Errors from the base store propagate unchanged, since it is the source of
// truth. Cache failures are absorbed by the coordinator and turn into calls
// to the base store.
//
// # Staleness
//
// Nothing is invalidated when the underlying tables change. A cached answer
// may be up to one TTL old.
package storecache
