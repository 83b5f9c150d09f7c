package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names an optional YAML file layered between defaults and
// the environment.
const ConfigPathEnvVar = "TRACKCACHE_CONFIG"

// Load resolves configuration from three layers, later ones winning:
//
//  1. Defaults: Built-in values matching a local development setup
//  2. Config File: Optional YAML file named by TRACKCACHE_CONFIG
//  3. Environment Variables: The names listed in envMappings
func Load() (*Config, error) {
	return load(os.Getenv(ConfigPathEnvVar))
}

// LoadFile is Load with an explicit config file. An empty path falls back
// to TRACKCACHE_CONFIG.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envMappings maps environment variable names (lowercased) to config paths.
// Variables not listed are ignored.
var envMappings = map[string]string{
	"redis_host":         "redis.host",
	"redis_port":         "redis.port",
	"redis_db":           "redis.db",
	"redis_password":     "redis.password",
	"redis_dial_timeout": "redis.dial_timeout",
	"redis_pool_size":    "redis.pool_size",

	"cache_ttl_seconds":     "cache.ttl_seconds",
	"cache_backend":         "cache.backend",
	"cache_codec":           "cache.codec",
	"cache_namespace":       "cache.namespace",
	"cache_single_flight":   "cache.single_flight",
	"cache_op_timeout":      "cache.op_timeout",
	"cache_breaker_enabled": "cache.breaker_enabled",
	"cache_memory_capacity": "cache.memory_capacity",

	"database_url": "database.url",

	"http_addr":             "http.addr",
	"cors_origins":          "http.cors_origins",
	"http_read_timeout":     "http.read_timeout",
	"http_write_timeout":    "http.write_timeout",
	"http_shutdown_timeout": "http.shutdown_timeout",
	"login_rate_limit":      "http.login_rate_limit",

	"secret_key":                  "auth.secret_key",
	"access_token_expire_minutes": "auth.token_ttl_minutes",
	"auth_username":               "auth.username",
	"auth_password_hash":          "auth.password_hash",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{
	"http.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
