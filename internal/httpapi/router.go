package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-track-cache/cache"
	"github.com/goliatone/go-track-cache/catalog"
	"github.com/goliatone/go-track-cache/internal/auth"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

// StateReporter exposes the cache coordinator state for health checks.
type StateReporter interface {
	State() cache.State
}

// Pinger checks the record store database.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options wires the router's collaborators. Store, Identity, Tokens and
// Directory are required.
type Options struct {
	Store     catalog.RecordStore
	Identity  auth.IdentityProvider
	Tokens    TokenIssuer
	Directory auth.Directory

	Logger      zerolog.Logger
	CORSOrigins []string

	// Cache and Database feed /healthz when set.
	Cache    StateReporter
	Database Pinger

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// LoginRateLimit caps /token requests per client IP per minute. Zero disables it.
	LoginRateLimit int
}

// NewRouter builds the HTTP API.
func NewRouter(opts Options) http.Handler {
	h := &handler{
		store:     opts.Store,
		tokens:    opts.Tokens,
		directory: opts.Directory,
		cache:     opts.Cache,
		database:  opts.Database,
		logger:    opts.Logger,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.LoginRateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.LoginRateLimit, time.Minute))
		}
		r.Post("/token", h.token)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireBearer(opts.Identity, opts.Logger))
		r.Get("/api/tracks/", h.tracks)
		r.Get("/api/tracks", h.tracks)
	})

	return r
}
