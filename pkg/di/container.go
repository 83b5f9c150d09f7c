package di

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-track-cache/cache"
	"github.com/goliatone/go-track-cache/catalog"
	"github.com/goliatone/go-track-cache/internal/auth"
	"github.com/goliatone/go-track-cache/internal/config"
	"github.com/goliatone/go-track-cache/internal/httpapi"
	"github.com/goliatone/go-track-cache/storecache"
)

// Container wires the track service: cache backend, coordinator, record
// store, authentication and the HTTP handler. Collaborators are built once
// and shared for the life of the process.
type Container struct {
	config   *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry

	db          *bun.DB
	coordinator *cache.Coordinator[[]catalog.Track]
	store       *storecache.CachedStore
	tokens      *auth.JWTProvider
	directory   auth.Directory
	handler     http.Handler

	closeOnce sync.Once
	closeErr  error
}

type containerOptions struct {
	store    catalog.RecordStore
	backend  cache.Backend
	registry *prometheus.Registry
}

// Option customizes a Container.
type Option func(*containerOptions)

// WithRecordStore replaces the database-backed store. No database is opened.
func WithRecordStore(store catalog.RecordStore) Option {
	return func(o *containerOptions) {
		o.store = store
	}
}

// WithBackend replaces the configured cache backend.
func WithBackend(backend cache.Backend) Option {
	return func(o *containerOptions) {
		o.backend = backend
	}
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *containerOptions) {
		o.registry = reg
	}
}

// NewContainer builds every collaborator described by cfg. It opens the
// database but does not contact the cache; call Start for that.
func NewContainer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("di: config is required")
	}

	o := containerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	registry := o.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Container{
		config:   cfg,
		logger:   logger,
		registry: registry,
	}

	settings := cfg.CacheSettings()
	backend := o.backend
	if backend == nil {
		var err error
		backend, err = cache.NewBackend(settings)
		if err != nil {
			return nil, fmt.Errorf("cache backend: %w", err)
		}
	}

	codec, err := cache.NewCodec[[]catalog.Track](settings.Codec)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	coordinatorOpts := append(settings.Options(),
		cache.WithLogger(logger.With().Str("component", "cache").Logger()),
		cache.WithMetrics(cache.NewMetrics(registry)),
	)
	c.coordinator = cache.NewCoordinator(backend, codec, coordinatorOpts...)

	base := o.store
	if base == nil {
		db, err := catalog.OpenDB(ctx, cfg.Database.URL)
		if err != nil {
			_ = c.coordinator.Close()
			return nil, err
		}
		c.db = db
		base = catalog.NewBunStore(db)
	}

	c.store, err = storecache.New(base, c.coordinator, cfg.Cache.Namespace)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	if err := c.buildAuth(); err != nil {
		_ = c.Close()
		return nil, err
	}

	routerOpts := httpapi.Options{
		Store:          c.store,
		Identity:       c.tokens,
		Tokens:         c.tokens,
		Directory:      c.directory,
		Logger:         logger,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		Cache:          c.coordinator,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		LoginRateLimit: cfg.HTTP.LoginRateLimit,
	}
	if c.db != nil {
		routerOpts.Database = c.db
	}
	c.handler = httpapi.NewRouter(routerOpts)

	return c, nil
}

func (c *Container) buildAuth() error {
	secret := c.config.Auth.SecretKey
	if secret == "" {
		generated, err := randomSecret()
		if err != nil {
			return err
		}
		secret = generated
		c.logger.Warn().Msg("no secret key configured, using an ephemeral signing key")
	}

	tokens, err := auth.NewJWTProvider(secret, c.config.Auth.TokenTTL())
	if err != nil {
		return err
	}

	accounts := map[string]string{}
	if c.config.Auth.Username != "" {
		accounts[c.config.Auth.Username] = c.config.Auth.PasswordHash
	} else {
		c.logger.Warn().Msg("no account configured, token requests will be rejected")
	}
	directory, err := auth.NewStaticDirectory(accounts)
	if err != nil {
		return fmt.Errorf("auth directory: %w", err)
	}

	c.tokens = tokens
	c.directory = directory
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Start connects the cache. A cache that cannot be reached leaves the
// service running uncached; the error is logged and Start returns nil.
func (c *Container) Start(ctx context.Context) error {
	if err := c.coordinator.Connect(ctx); err != nil {
		if errors.Is(err, cache.ErrClosed) {
			return err
		}
		c.logger.Warn().Err(err).Msg("starting without cache")
	}
	return nil
}

// Close releases the cache backend and the database. It is idempotent.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.coordinator != nil {
			if err := c.coordinator.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.db != nil {
			if err := c.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// Handler returns the HTTP API.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Coordinator returns the track cache coordinator.
func (c *Container) Coordinator() *cache.Coordinator[[]catalog.Track] {
	return c.coordinator
}

// Store returns the cached record store.
func (c *Container) Store() *storecache.CachedStore {
	return c.store
}

// Tokens returns the token issuer.
func (c *Container) Tokens() *auth.JWTProvider {
	return c.tokens
}

// DB returns the catalog database, or nil when a record store was injected.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Registry returns the metrics registry.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config {
	return c.config
}
