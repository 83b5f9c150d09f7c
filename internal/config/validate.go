package config

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-track-cache/cache"
)

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Redis),
		validation.Field(&c.Cache),
		validation.Field(&c.Database),
		validation.Field(&c.HTTP),
		validation.Field(&c.Auth),
		validation.Field(&c.Logging),
	)
}

func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.DialTimeout, validation.Min(0)),
		validation.Field(&c.PoolSize, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(cache.BackendRedis, cache.BackendMemory)),
		validation.Field(&c.TTLSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.Codec, validation.In(cache.CodecJSON, cache.CodecMsgpack)),
		validation.Field(&c.Namespace, validation.Required, validation.By(namespaceRule)),
		validation.Field(&c.OpTimeout, validation.Min(0)),
		validation.Field(&c.MemoryCapacity, validation.Min(0)),
	)
}

func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.URL, validation.Required, validation.By(databaseURLRule)),
	)
}

func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.ReadTimeout, validation.Min(0)),
		validation.Field(&c.WriteTimeout, validation.Min(0)),
		validation.Field(&c.ShutdownTimeout, validation.Min(0)),
		validation.Field(&c.LoginRateLimit, validation.Min(0)),
	)
}

// Validate does not require a secret key. Without one an ephemeral key is
// generated at startup and tokens do not survive a restart.
func (c AuthConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TokenTTLMinutes, validation.Required, validation.Min(1)),
		validation.Field(&c.PasswordHash, validation.When(c.Username != "", validation.Required)),
	)
}

func (c LoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("trace", "debug", "info", "warn", "error", "disabled")),
		validation.Field(&c.Format, validation.In("json", "console")),
	)
}

func namespaceRule(value any) error {
	ns, _ := value.(string)
	return cache.DefaultKeyBuilder().Validate(ns)
}

func databaseURLRule(value any) error {
	url, _ := value.(string)
	for _, prefix := range []string{"postgres://", "postgresql://", "sqlite:", "file:"} {
		if strings.HasPrefix(url, prefix) {
			return nil
		}
	}
	return errors.New("must start with postgres://, postgresql://, sqlite: or file:")
}
