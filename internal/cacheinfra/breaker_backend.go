package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// backend is the contract shared by every store in this package. It matches
// cache.Backend without importing it.
type backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

type getResult struct {
	value []byte
	found bool
}

// BreakerBackend fails fast while the wrapped backend keeps failing, so a
// flapping Redis costs one short error per request instead of a socket
// timeout. An open breaker surfaces as an ordinary backend error.
type BreakerBackend struct {
	next    backend
	breaker *gobreaker.CircuitBreaker[getResult]
}

// NewBreakerBackend wraps next with a circuit breaker configured by cfg.
func NewBreakerBackend(next backend, cfg BreakerConfig) (*BreakerBackend, error) {
	if next == nil {
		return nil, &ConfigError{Field: "Breaker.Backend", Message: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up is not a backend failure.
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	}

	return &BreakerBackend{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[getResult](settings),
	}, nil
}

func (b *BreakerBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := b.breaker.Execute(func() (getResult, error) {
		value, found, err := b.next.Get(ctx, key)
		return getResult{value: value, found: found}, err
	})
	if err != nil {
		return nil, false, err
	}
	return res.value, res.found, nil
}

func (b *BreakerBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.breaker.Execute(func() (getResult, error) {
		return getResult{}, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

// Ping bypasses the breaker so that an explicit reconnect always reaches the
// backend.
func (b *BreakerBackend) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

func (b *BreakerBackend) Close() error {
	return b.next.Close()
}

// State reports the breaker state name (closed, half-open, open).
func (b *BreakerBackend) State() string {
	return b.breaker.State().String()
}
