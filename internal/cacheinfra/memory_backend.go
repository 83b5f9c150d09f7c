package cacheinfra

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/viccon/sturdyc"
)

// ErrBackendClosed is returned by a backend used after Close.
var ErrBackendClosed = errors.New("cacheinfra: backend closed")

// memoryEntry carries its own deadline because sturdyc applies a single TTL
// to the whole client while writes here choose theirs per entry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is an in-process backend over a sturdyc client. It serves
// single-instance deployments and tests that do not want a Redis server.
type MemoryBackend struct {
	client *sturdyc.Client[memoryEntry]
	now    func() time.Time
	closed atomic.Bool
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock replaces time.Now when deciding whether an entry has expired.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewMemoryBackend validates cfg and initializes a sturdyc client with it.
//
// Capacity, NumShards, MaxTTL and EvictionPercentage are passed to
// sturdyc.New(); the remaining options are applied via ToSturdycOptions().
func NewMemoryBackend(cfg MemoryConfig, opts ...MemoryOption) (*MemoryBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[memoryEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.MaxTTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	b := &MemoryBackend{client: client, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := b.check(ctx); err != nil {
		return nil, false, err
	}

	entry, ok := b.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !b.now().Before(entry.expiresAt) {
		b.client.Delete(key)
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	b.client.Set(key, memoryEntry{value: stored, expiresAt: b.now().Add(ttl)})
	return nil
}

func (b *MemoryBackend) Ping(ctx context.Context) error {
	return b.check(ctx)
}

// Close marks the backend closed. sturdyc owns no external resources, so
// entries are simply left for the garbage collector.
func (b *MemoryBackend) Close() error {
	b.closed.Store(true)
	return nil
}

// Len reports the number of stored keys, expired or not.
func (b *MemoryBackend) Len() int {
	return len(b.client.ScanKeys())
}

func (b *MemoryBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrBackendClosed
	}
	return ctx.Err()
}
