package storecache

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-track-cache/cache"
	"github.com/goliatone/go-track-cache/catalog"
)

// DefaultNamespace is the key namespace for track queries.
const DefaultNamespace = "tracks"

// DefaultKeyLimit caps how many served keys Keys reports.
const DefaultKeyLimit = 1024

// Option configures a CachedStore.
type Option func(*CachedStore)

// WithKeyLimit bounds the served key registry. Values below one keep the default.
func WithKeyLimit(n int) Option {
	return func(c *CachedStore) {
		if n > 0 {
			c.keyLimit = n
		}
	}
}

// WithClock overrides the clock used to expire registry entries.
func WithClock(now func() time.Time) Option {
	return func(c *CachedStore) {
		if now != nil {
			c.now = now
		}
	}
}

// Interface assertion to ensure CachedStore implements RecordStore
var _ catalog.RecordStore = (*CachedStore)(nil)

// CachedStore decorates a base record store with read-through caching
type CachedStore struct {
	base        catalog.RecordStore
	cache       *cache.Coordinator[[]catalog.Track]
	keys        cache.KeyBuilder
	namespace   string
	keyRegistry *xsync.MapOf[string, time.Time] // served key -> expiry, for diagnostics
	keyLimit    int
	now         func() time.Time
}

// New creates a CachedStore that serves base through coordinator under
// namespace. The namespace is validated so that distinct queries can never
// share a key.
func New(base catalog.RecordStore, coordinator *cache.Coordinator[[]catalog.Track], namespace string, opts ...Option) (*CachedStore, error) {
	if base == nil {
		return nil, errors.New("storecache: base store is required")
	}
	if coordinator == nil {
		return nil, errors.New("storecache: coordinator is required")
	}

	keys := cache.DefaultKeyBuilder()
	if err := keys.Validate(namespace); err != nil {
		return nil, err
	}

	c := &CachedStore{
		base:        base,
		cache:       coordinator,
		keys:        keys,
		namespace:   namespace,
		keyRegistry: xsync.NewMapOf[string, time.Time](),
		keyLimit:    DefaultKeyLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns tracks matching filter, from cache when possible. Errors
// from the base store are returned unchanged; cache failures never are.
func (c *CachedStore) Fetch(ctx context.Context, filter string) ([]catalog.Track, error) {
	key := c.keys.Build(c.namespace, filter)
	c.trackKey(key)

	return c.cache.GetOrFetch(ctx, key, func(ctx context.Context) ([]catalog.Track, error) {
		return c.base.Fetch(ctx, filter)
	})
}

// Namespace returns the key namespace.
func (c *CachedStore) Namespace() string {
	return c.namespace
}

// Key returns the cache key Fetch uses for filter.
func (c *CachedStore) Key(filter string) string {
	return c.keys.Build(c.namespace, filter)
}

// Keys returns the distinct served keys whose entries have not yet expired,
// sorted. At most the configured key limit is reported.
func (c *CachedStore) Keys() []string {
	now := c.now()
	keys := make([]string, 0, c.keyRegistry.Size())
	c.keyRegistry.Range(func(k string, expires time.Time) bool {
		if expires.After(now) {
			keys = append(keys, k)
		}
		return true
	})
	slices.Sort(keys)
	return keys
}

// Base returns the wrapped record store.
func (c *CachedStore) Base() catalog.RecordStore {
	return c.base
}

// trackKey records key until the cache entry it names would expire. When the
// registry outgrows its limit, expired keys go first, then the ones closest
// to expiry.
func (c *CachedStore) trackKey(key string) {
	now := c.now()
	c.keyRegistry.Store(key, now.Add(c.cache.TTL()))
	if c.keyRegistry.Size() <= c.keyLimit {
		return
	}

	c.keyRegistry.Range(func(k string, expires time.Time) bool {
		if !expires.After(now) {
			c.keyRegistry.Delete(k)
		}
		return true
	})

	for c.keyRegistry.Size() > c.keyLimit {
		oldest, found := "", false
		var oldestExpiry time.Time
		c.keyRegistry.Range(func(k string, expires time.Time) bool {
			if k != key && (!found || expires.Before(oldestExpiry)) {
				oldest, oldestExpiry, found = k, expires, true
			}
			return true
		})
		if !found {
			return
		}
		c.keyRegistry.Delete(oldest)
	}
}
