package config

import (
	"time"

	"github.com/goliatone/go-track-cache/cache"
)

// Config is the process configuration, resolved once at startup.
type Config struct {
	Redis    RedisConfig    `koanf:"redis"`
	Cache    CacheConfig    `koanf:"cache"`
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Auth     AuthConfig     `koanf:"auth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	DB          int           `koanf:"db"`
	Password    string        `koanf:"password"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	PoolSize    int           `koanf:"pool_size"`
}

// CacheConfig holds the read-through cache settings.
type CacheConfig struct {
	Backend        string        `koanf:"backend"`
	TTLSeconds     int           `koanf:"ttl_seconds"`
	Codec          string        `koanf:"codec"`
	Namespace      string        `koanf:"namespace"`
	SingleFlight   bool          `koanf:"single_flight"`
	OpTimeout      time.Duration `koanf:"op_timeout"`
	BreakerEnabled bool          `koanf:"breaker_enabled"`
	MemoryCapacity int           `koanf:"memory_capacity"`
}

// DatabaseConfig points at the catalog database.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// LoginRateLimit caps /token attempts per client IP per minute. Zero disables it.
	LoginRateLimit int `koanf:"login_rate_limit"`
}

// AuthConfig holds token signing and the single configured account.
type AuthConfig struct {
	SecretKey       string `koanf:"secret_key"`
	TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
	Username        string `koanf:"username"`
	PasswordHash    string `koanf:"password_hash"`
}

// LoggingConfig selects level and output format (json or console).
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration, before any file or environment
// overrides.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			DB:          0,
			DialTimeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			Backend:        cache.BackendRedis,
			TTLSeconds:     60,
			Codec:          cache.CodecJSON,
			Namespace:      "tracks",
			OpTimeout:      time.Second,
			MemoryCapacity: 10000,
		},
		Database: DatabaseConfig{
			URL: "sqlite:chinook.db",
		},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"http://localhost:4200"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			LoginRateLimit:  10,
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// TTL returns the default cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TokenTTL returns the access token lifetime.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// CacheSettings converts the configuration into cache package settings.
func (c *Config) CacheSettings() cache.Config {
	out := cache.DefaultConfig()
	out.Backend = c.Cache.Backend
	out.TTL = c.Cache.TTL()
	out.OperationTimeout = c.Cache.OpTimeout
	out.Codec = c.Cache.Codec
	out.SingleFlight = c.Cache.SingleFlight

	out.Redis.Host = c.Redis.Host
	out.Redis.Port = c.Redis.Port
	out.Redis.DB = c.Redis.DB
	out.Redis.Password = c.Redis.Password
	out.Redis.DialTimeout = c.Redis.DialTimeout
	out.Redis.PoolSize = c.Redis.PoolSize

	if c.Cache.MemoryCapacity > 0 {
		out.Memory.Capacity = c.Cache.MemoryCapacity
	}
	if out.Memory.MaxTTL < out.TTL {
		out.Memory.MaxTTL = out.TTL
	}

	if c.Cache.BreakerEnabled {
		breaker := cache.DefaultBreakerConfig()
		out.Breaker = &breaker
	}
	return out
}
