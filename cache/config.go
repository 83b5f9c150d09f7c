package cache

import (
	"fmt"
	"time"

	"github.com/goliatone/go-track-cache/internal/cacheinfra"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend          string
	TTL              time.Duration
	OperationTimeout time.Duration
	Codec            string
	SingleFlight     bool
	Redis            RedisConfig
	Memory           MemoryConfig
	// Breaker wraps the backend in a circuit breaker when set.
	Breaker *BreakerConfig
}

// RedisConfig mirrors the Redis connection options.
type RedisConfig struct {
	Host         string
	Port         int
	DB           int
	Password     string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// MemoryConfig mirrors the in-process sturdyc backend options.
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	MaxTTL             time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// BreakerConfig mirrors the circuit breaker options.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendRedis,
		TTL:              DefaultTTL,
		OperationTimeout: time.Second,
		Codec:            CodecJSON,
		Redis:            convertRedisFromInternal(cacheinfra.DefaultRedisConfig()),
		Memory:           convertMemoryFromInternal(cacheinfra.DefaultMemoryConfig()),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &cacheinfra.ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.OperationTimeout < 0 {
		return &cacheinfra.ConfigError{Field: "OperationTimeout", Message: "must be non-negative"}
	}
	if c.Codec != "" && c.Codec != CodecJSON && c.Codec != CodecMsgpack {
		return &cacheinfra.ConfigError{Field: "Codec", Message: "must be json or msgpack"}
	}

	switch c.Backend {
	case BackendRedis:
		if err := c.Redis.toInternal().Validate(); err != nil {
			return err
		}
	case BackendMemory:
		if err := c.Memory.toInternal().Validate(); err != nil {
			return err
		}
	default:
		return &cacheinfra.ConfigError{Field: "Backend", Message: "must be redis or memory"}
	}

	if c.Breaker != nil {
		return c.Breaker.toInternal().Validate()
	}
	return nil
}

// Options returns the coordinator options implied by the configuration.
func (c Config) Options() []Option {
	opts := []Option{
		WithTTL(c.TTL),
		WithOperationTimeout(c.OperationTimeout),
	}
	if c.SingleFlight {
		opts = append(opts, WithSingleFlight())
	}
	return opts
}

// NewBackend constructs the configured backend. Constructing a backend does
// not contact it; reachability is checked by Coordinator.Connect.
func NewBackend(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case BackendRedis:
		backend, err = cacheinfra.NewRedisBackend(cfg.Redis.toInternal())
	case BackendMemory:
		backend, err = cacheinfra.NewMemoryBackend(cfg.Memory.toInternal())
	default:
		err = fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Breaker != nil {
		wrapped, err := cacheinfra.NewBreakerBackend(backend, cfg.Breaker.toInternal())
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		return wrapped, nil
	}
	return backend, nil
}

func (c RedisConfig) toInternal() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Host:         c.Host,
		Port:         c.Port,
		DB:           c.DB,
		Password:     c.Password,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	}
}

func convertRedisFromInternal(cfg cacheinfra.RedisConfig) RedisConfig {
	return RedisConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		DB:           cfg.DB,
		Password:     cfg.Password,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
}

func (c MemoryConfig) toInternal() cacheinfra.MemoryConfig {
	return cacheinfra.MemoryConfig{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		MaxTTL:             c.MaxTTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertMemoryFromInternal(cfg cacheinfra.MemoryConfig) MemoryConfig {
	return MemoryConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		MaxTTL:             cfg.MaxTTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}

func (c BreakerConfig) toInternal() cacheinfra.BreakerConfig {
	return cacheinfra.BreakerConfig{
		Name:             "cache-backend",
		MaxRequests:      c.MaxRequests,
		Interval:         c.Interval,
		Timeout:          c.Timeout,
		FailureThreshold: c.FailureThreshold,
	}
}

// DefaultBreakerConfig returns the default circuit breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	cfg := cacheinfra.DefaultBreakerConfig()
	return BreakerConfig{
		MaxRequests:      cfg.MaxRequests,
		Interval:         cfg.Interval,
		Timeout:          cfg.Timeout,
		FailureThreshold: cfg.FailureThreshold,
	}
}
