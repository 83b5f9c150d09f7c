package cacheinfra

import (
	"net"
	"strconv"
	"time"

	"github.com/viccon/sturdyc"
)

// RedisConfig holds the connection settings for the Redis backend.
type RedisConfig struct {
	Host string
	Port int

	// DB is the logical database index selected on every pooled connection.
	DB int

	// Password is optional; empty disables AUTH.
	Password string

	// DialTimeout, ReadTimeout and WriteTimeout bound socket operations.
	// Zero values use the go-redis defaults.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PoolSize caps pooled connections. Zero uses the go-redis default
	// (10 per GOMAXPROCS).
	PoolSize int
}

// DefaultRedisConfig returns a RedisConfig pointing at a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:        "localhost",
		Port:        6379,
		DB:          0,
		DialTimeout: 2 * time.Second,
	}
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks if the configuration values are valid.
func (c RedisConfig) Validate() error {
	if c.Host == "" {
		return &ConfigError{Field: "Redis.Host", Message: "must not be empty"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: "Redis.Port", Message: "must be between 1 and 65535"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "Redis.DB", Message: "must be non-negative"}
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return &ConfigError{Field: "Redis timeouts", Message: "must be non-negative"}
	}
	if c.PoolSize < 0 {
		return &ConfigError{Field: "Redis.PoolSize", Message: "must be non-negative"}
	}
	return nil
}

// MemoryConfig holds the configuration for the in-process sturdyc backend.
type MemoryConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int

	// MaxTTL is the sturdyc client TTL. Entries are evicted after MaxTTL
	// even when written with a longer per-entry TTL.
	MaxTTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultMemoryConfig returns a MemoryConfig with sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		MaxTTL:             time.Hour,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, MaxTTL and EvictionPercentage are passed directly
// to sturdyc.New().
func (c MemoryConfig) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Memory.Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "Memory.NumShards", Message: "must be greater than 0"}
	}
	if c.MaxTTL <= 0 {
		return &ConfigError{Field: "Memory.MaxTTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "Memory.EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "Memory.EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

// BreakerConfig configures the circuit breaker placed in front of a backend.
type BreakerConfig struct {
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	// Zero never clears counts while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "cache-backend",
		MaxRequests:      1,
		Interval:         0,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Validate checks if the configuration values are valid.
func (c BreakerConfig) Validate() error {
	if c.FailureThreshold == 0 {
		return &ConfigError{Field: "Breaker.FailureThreshold", Message: "must be greater than 0"}
	}
	if c.Timeout < 0 || c.Interval < 0 {
		return &ConfigError{Field: "Breaker durations", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
