package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the time-to-live applied to writes that do not carry their own.
const DefaultTTL = 60 * time.Second

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	ttl          time.Duration
	opTimeout    time.Duration
	keys         KeyBuilder
	logger       zerolog.Logger
	metrics      *Metrics
	singleFlight bool
}

// WithTTL sets the default time-to-live for writes.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithOperationTimeout bounds every backend round-trip. Zero leaves the
// caller's context as the only bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.opTimeout = d
	}
}

// WithKeyBuilder replaces the default key builder used by ReadThrough.
func WithKeyBuilder(b KeyBuilder) Option {
	return func(o *options) {
		o.keys = b
	}
}

// WithLogger sets the logger used to report absorbed cache failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSingleFlight collapses concurrent misses on the same key into a single
// fetch. Without it, concurrent misses each call the fetch function, which is
// safe because results are idempotent and overwriting an entry is harmless.
func WithSingleFlight() Option {
	return func(o *options) {
		o.singleFlight = true
	}
}

// Coordinator owns the read-through protocol: build key, get, on miss fetch
// from the source of truth, set with TTL, return.
//
// Cache failures never reach the caller. A backend that cannot be reached at
// Connect leaves the coordinator degraded: every read is a miss and every
// write is dropped until the process restarts or Reconnect succeeds. Errors
// returned by the fetch function are returned unchanged.
//
// A Coordinator is safe for concurrent use.
type Coordinator[T any] struct {
	backend Backend
	codec   Codec[T]
	opts    options
	group   *singleflight.Group

	mu    sync.Mutex // serializes Connect, Reconnect and Close
	state atomic.Int32
}

// NewCoordinator creates a coordinator over backend. The coordinator starts
// uninitialized and bypasses the cache until Connect succeeds. A nil codec
// selects JSONCodec.
func NewCoordinator[T any](backend Backend, codec Codec[T], opts ...Option) *Coordinator[T] {
	o := options{
		ttl:    DefaultTTL,
		keys:   DefaultKeyBuilder(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if codec == nil {
		codec = JSONCodec[T]{}
	}

	c := &Coordinator[T]{
		backend: backend,
		codec:   codec,
		opts:    o,
	}
	if o.singleFlight {
		c.group = &singleflight.Group{}
	}
	c.setState(StateUninitialized)

	return c
}

// State returns the current connection state.
func (c *Coordinator[T]) State() State {
	return State(c.state.Load())
}

// TTL returns the default time-to-live for writes.
func (c *Coordinator[T]) TTL() time.Duration {
	return c.opts.ttl
}

// Connect pings the backend. On success the coordinator becomes connected;
// on failure it becomes degraded and the returned error wraps
// ErrCacheUnavailable. A degraded coordinator is fully usable, so callers
// should log the error and continue starting up.
func (c *Coordinator[T]) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateConnected:
		return nil
	case StateClosed:
		return ErrClosed
	}

	return c.connect(ctx)
}

// Reconnect retries the connect step of a degraded coordinator. Nothing calls
// it automatically; a supervisor that wants the cache back must call it.
func (c *Coordinator[T]) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateConnected:
		return nil
	case StateClosed:
		return ErrClosed
	}

	c.opts.logger.Info().Msg("retrying cache backend connection")
	return c.connect(ctx)
}

func (c *Coordinator[T]) connect(ctx context.Context) error {
	if c.backend == nil {
		c.setState(StateDegraded)
		c.opts.logger.Warn().Msg("no cache backend configured, running in bypass mode")
		return fmt.Errorf("%w: no backend configured", ErrCacheUnavailable)
	}

	c.setState(StateConnecting)

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.backend.Ping(opCtx); err != nil {
		c.setState(StateDegraded)
		c.opts.logger.Warn().Err(err).Msg("cache backend unreachable, running in bypass mode")
		return fmt.Errorf("%w: ping: %w", ErrCacheUnavailable, err)
	}

	c.setState(StateConnected)
	c.opts.logger.Info().Str("codec", c.codec.Name()).Dur("ttl", c.opts.ttl).Msg("connected to cache backend")
	return nil
}

// Close releases the backend. It is idempotent and safe to call on a
// coordinator that never connected or has no backend.
func (c *Coordinator[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateClosed {
		return nil
	}
	c.setState(StateClosed)

	if c.backend == nil {
		return nil
	}
	if err := c.backend.Close(); err != nil {
		c.opts.logger.Warn().Err(err).Msg("closing cache backend")
		return fmt.Errorf("close cache backend: %w", err)
	}

	c.opts.logger.Info().Msg("cache backend closed")
	return nil
}

// Lookup reads key and reports exactly what happened. It never contacts the
// backend unless the coordinator is connected.
func (c *Coordinator[T]) Lookup(ctx context.Context, key string) LookupResult[T] {
	res := c.lookup(ctx, key)
	c.opts.metrics.observeLookup(res.Outcome)
	return res
}

func (c *Coordinator[T]) lookup(ctx context.Context, key string) LookupResult[T] {
	if c.State() != StateConnected {
		return LookupResult[T]{Outcome: OutcomeBypass}
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	raw, found, err := c.backend.Get(opCtx, key)
	if err != nil {
		return LookupResult[T]{
			Outcome: OutcomeUnavailable,
			Err:     fmt.Errorf("%w: get %q: %w", ErrCacheUnavailable, key, err),
		}
	}
	if !found || len(raw) == 0 {
		return LookupResult[T]{Outcome: OutcomeMiss}
	}

	value, err := c.codec.Decode(raw)
	if err != nil {
		return LookupResult[T]{
			Outcome: OutcomeFormatError,
			Err:     fmt.Errorf("%w: decode %q: %w", ErrCacheFormat, key, err),
		}
	}

	return LookupResult[T]{Value: value, Outcome: OutcomeHit}
}

// Get returns the cached value for key. Absence, backend failures and
// undecodable entries all return false; failures are logged.
func (c *Coordinator[T]) Get(ctx context.Context, key string) (T, bool) {
	res := c.Lookup(ctx, key)

	switch res.Outcome {
	case OutcomeUnavailable, OutcomeFormatError:
		c.opts.logger.Warn().Err(res.Err).Str("key", key).Str("outcome", res.Outcome.String()).Msg("cache read failed, treating as miss")
	case OutcomeBypass:
		c.opts.logger.Debug().Str("key", key).Str("state", c.State().String()).Msg("cache bypassed")
	}

	return res.Value, res.Hit()
}

// Store encodes value and writes it under key. A non-positive ttl selects the
// default. The returned error wraps ErrCacheUnavailable or ErrCacheFormat.
//
// The write runs on a context detached from ctx's cancellation so that a
// request abandoned mid-flight either completes its single SET or drops it;
// partial entries are never written.
func (c *Coordinator[T]) Store(ctx context.Context, key string, value T, ttl time.Duration) error {
	if state := c.State(); state != StateConnected {
		c.opts.metrics.observeWrite("bypass")
		return fmt.Errorf("%w: coordinator is %s", ErrCacheUnavailable, state)
	}
	if ttl <= 0 {
		ttl = c.opts.ttl
	}

	data, err := c.codec.Encode(value)
	if err != nil {
		c.opts.metrics.observeWrite("dropped")
		return fmt.Errorf("%w: encode %q: %w", ErrCacheFormat, key, err)
	}

	opCtx, cancel := c.opContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := c.backend.Set(opCtx, key, data, ttl); err != nil {
		c.opts.metrics.observeWrite("dropped")
		return fmt.Errorf("%w: set %q: %w", ErrCacheUnavailable, key, err)
	}

	c.opts.metrics.observeWrite("stored")
	return nil
}

// Set is the best-effort form of Store: failures are logged and dropped.
// An optional ttl overrides the default.
func (c *Coordinator[T]) Set(ctx context.Context, key string, value T, ttl ...time.Duration) {
	if c.State() != StateConnected {
		c.opts.metrics.observeWrite("bypass")
		return
	}

	var d time.Duration
	if len(ttl) > 0 {
		d = ttl[0]
	}

	if err := c.Store(ctx, key, value, d); err != nil {
		c.opts.logger.Warn().Err(err).Str("key", key).Msg("cache write dropped")
	}
}

// ReadThrough derives the key for namespace and filter and delegates to GetOrFetch.
func (c *Coordinator[T]) ReadThrough(ctx context.Context, namespace, filter string, fetch FetchFn[T]) (T, error) {
	return c.GetOrFetch(ctx, c.opts.keys.Build(namespace, filter), fetch)
}

// GetOrFetch returns the cached value for key, or calls fetch, caches its
// result and returns it. If fetch fails its error is returned unchanged and
// nothing is written.
func (c *Coordinator[T]) GetOrFetch(ctx context.Context, key string, fetch FetchFn[T]) (T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	if c.group == nil {
		return c.fill(ctx, key, fetch)
	}

	// The shared fetch outlives any single caller's cancellation. Each caller
	// still stops waiting when its own context is done.
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(context.WithoutCancel(ctx), key, fetch)
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}

func (c *Coordinator[T]) fill(ctx context.Context, key string, fetch FetchFn[T]) (T, error) {
	value, err := fetch(ctx)
	c.opts.metrics.observeFetch(err)
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(ctx, key, value)
	return value, nil
}

func (c *Coordinator[T]) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.opTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.opTimeout)
	}
	return ctx, func() {}
}

func (c *Coordinator[T]) setState(s State) {
	c.state.Store(int32(s))
	c.opts.metrics.observeState(s)
}
