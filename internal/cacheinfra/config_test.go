package cacheinfra

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultMemoryConfig(t *testing.T) {
	cfg := DefaultMemoryConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}

	if cfg.MaxTTL != time.Hour {
		t.Errorf("expected MaxTTL to be 1 hour, got %v", cfg.MaxTTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()

	if cfg.Addr() != "localhost:6379" {
		t.Errorf("expected Addr localhost:6379, got %q", cfg.Addr())
	}
	if cfg.DB != 0 {
		t.Errorf("expected DB 0, got %d", cfg.DB)
	}
	if cfg.Password != "" {
		t.Errorf("expected no password, got %q", cfg.Password)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default redis config to be valid, got %v", err)
	}
}

func TestMemoryConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       MemoryConfig
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			cfg:       DefaultMemoryConfig(),
			wantError: false,
		},
		{
			name: "invalid capacity - zero",
			cfg: MemoryConfig{
				Capacity:           0,
				NumShards:          256,
				MaxTTL:             time.Minute,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "must be greater than 0",
		},
		{
			name: "invalid num shards - zero",
			cfg: MemoryConfig{
				Capacity:           1000,
				NumShards:          0,
				MaxTTL:             time.Minute,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "must be greater than 0",
		},
		{
			name: "invalid max TTL - zero",
			cfg: MemoryConfig{
				Capacity:           1000,
				NumShards:          256,
				EvictionPercentage: 10,
			},
			wantError: true,
			errorMsg:  "must be greater than 0",
		},
		{
			name: "invalid eviction percentage - too high",
			cfg: MemoryConfig{
				Capacity:           1000,
				NumShards:          256,
				MaxTTL:             time.Minute,
				EvictionPercentage: 101,
			},
			wantError: true,
			errorMsg:  "must be between 1 and 100",
		},
		{
			name: "invalid eviction interval - negative",
			cfg: MemoryConfig{
				Capacity:           1000,
				NumShards:          256,
				MaxTTL:             time.Minute,
				EvictionPercentage: 10,
				EvictionInterval:   -time.Second,
			},
			wantError: true,
			errorMsg:  "must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantError {
				if err != nil {
					t.Errorf("expected no validation error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error message to contain %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestRedisConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RedisConfig)
		field  string
	}{
		{name: "empty host", mutate: func(c *RedisConfig) { c.Host = "" }, field: "Redis.Host"},
		{name: "port zero", mutate: func(c *RedisConfig) { c.Port = 0 }, field: "Redis.Port"},
		{name: "port too high", mutate: func(c *RedisConfig) { c.Port = 70000 }, field: "Redis.Port"},
		{name: "negative db", mutate: func(c *RedisConfig) { c.DB = -1 }, field: "Redis.DB"},
		{name: "negative read timeout", mutate: func(c *RedisConfig) { c.ReadTimeout = -1 }, field: "Redis timeouts"},
		{name: "negative pool", mutate: func(c *RedisConfig) { c.PoolSize = -1 }, field: "Redis.PoolSize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRedisConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestBreakerConfig_Validate(t *testing.T) {
	if err := DefaultBreakerConfig().Validate(); err != nil {
		t.Fatalf("expected default breaker config to be valid, got %v", err)
	}

	cfg := DefaultBreakerConfig()
	cfg.FailureThreshold = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero failure threshold")
	}
}

func TestMemoryConfig_ToSturdycOptions(t *testing.T) {
	cfg := DefaultMemoryConfig()
	if got := len(cfg.ToSturdycOptions()); got != 0 {
		t.Errorf("expected no sturdyc options for default config, got %d", got)
	}

	cfg.EvictionInterval = time.Second
	if got := len(cfg.ToSturdycOptions()); got != 1 {
		t.Errorf("expected 1 sturdyc option with eviction interval, got %d", got)
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{
		Field:   "TestField",
		Message: "test message",
	}

	expected := "config error in field TestField: test message"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}
