package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-track-cache/cache"
	"github.com/goliatone/go-track-cache/catalog"
	"github.com/goliatone/go-track-cache/internal/auth"
)

type handler struct {
	store     catalog.RecordStore
	tokens    TokenIssuer
	directory auth.Directory
	cache     StateReporter
	database  Pinger
	logger    zerolog.Logger
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Cache    string `json:"cache,omitempty"`
	Database string `json:"database,omitempty"`
}

// token exchanges form-encoded credentials for a bearer token.
func (h *handler) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid form body")
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	if err := h.directory.Verify(r.Context(), username, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error().Err(err).Msg("credential check failed")
		}
		writeDetail(w, http.StatusBadRequest, "Incorrect username or password")
		return
	}

	token, _, err := h.tokens.Issue(username)
	if err != nil {
		h.logger.Error().Err(err).Msg("token issue failed")
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// tracks returns every track, or those whose name contains ?name= ignoring case.
func (h *handler) tracks(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("name")

	tracks, err := h.store.Fetch(r.Context(), filter)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("filter", filter).Msg("fetch tracks failed")
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if tracks == nil {
		tracks = []catalog.Track{}
	}

	writeJSON(w, http.StatusOK, tracks)
}

// health reports ok while the database answers. A degraded cache is
// reported but does not fail the check.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK

	if h.cache != nil {
		resp.Cache = h.cache.State().String()
	}
	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.database.PingContext(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}

var _ StateReporter = (*cache.Coordinator[[]catalog.Track])(nil)
