package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type fakeEntry struct {
	value     []byte
	expiresAt time.Time
}

type fakeBackend struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
	now     time.Time

	pingErr error
	getErr  error
	setErr  error

	gets    int
	sets    int
	closes  int
	lastTTL time.Duration
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		entries: make(map[string]fakeEntry),
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.entries[key]
	if !ok || !f.now.Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (f *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.lastTTL = ttl
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = fakeEntry{value: append([]byte(nil), value...), expiresAt: f.now.Add(ttl)}
	return nil
}

func (f *fakeBackend) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeBackend) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeBackend) raw(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return string(e.value), ok
}

func (f *fakeBackend) put(key, value string) {
	f.mu.Lock()
	f.entries[key] = fakeEntry{value: []byte(value), expiresAt: f.now.Add(time.Hour)}
	f.mu.Unlock()
}

type countingFetch struct {
	calls  atomic.Int32
	result []testTrack
	err    error
}

func (c *countingFetch) fetch(ctx context.Context) ([]testTrack, error) {
	c.calls.Add(1)
	return c.result, c.err
}

var loveSong = testTrack{Name: "Love Song", Album: "X", Artist: "Y", Duration: "200", Genre: "Rock"}

func newConnected(t *testing.T, backend *fakeBackend, opts ...Option) *Coordinator[[]testTrack] {
	t.Helper()

	c := NewCoordinator[[]testTrack](backend, nil, opts...)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", c.State())
	}
	return c
}

func TestCoordinator_ReadThroughCaseInsensitiveScenario(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)
	ctx := context.Background()
	source := &countingFetch{result: []testTrack{loveSong}}

	first, err := c.ReadThrough(ctx, "tracks", "Love", source.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 || first[0] != loveSong {
		t.Fatalf("expected the fetched record, got %#v", first)
	}

	raw, ok := backend.raw("tracks:name=love")
	if !ok {
		t.Fatal("expected tracks:name=love to be populated")
	}
	expected := `[{"name": "Love Song", "album": "X", "artist": "Y", "duration": "200", "genre": "Rock"}]`
	if raw != expected {
		t.Errorf("expected stored entry %s, got %s", expected, raw)
	}
	if backend.lastTTL != DefaultTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultTTL, backend.lastTTL)
	}

	second, err := c.ReadThrough(ctx, "tracks", "LOVE", source.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 || second[0] != loveSong {
		t.Errorf("expected cached record, got %#v", second)
	}
	if calls := source.calls.Load(); calls != 1 {
		t.Errorf("expected fetch to run once, ran %d times", calls)
	}
}

func TestCoordinator_EmptyAndAbsentFilterShareEntry(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)
	source := &countingFetch{result: []testTrack{loveSong}}

	if _, err := c.ReadThrough(context.Background(), "tracks", "", source.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := backend.raw("tracks:all"); !ok {
		t.Fatal("expected tracks:all to be populated")
	}
	if _, err := c.GetOrFetch(context.Background(), BuildKey("tracks", ""), source.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := source.calls.Load(); calls != 1 {
		t.Errorf("expected a single fetch, got %d", calls)
	}
}

func TestCoordinator_EmptyResultIsCached(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)
	source := &countingFetch{result: nil}

	for i := 0; i < 2; i++ {
		got, err := c.ReadThrough(context.Background(), "tracks", "nothing", source.fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty result, got %#v", got)
		}
	}

	if raw, _ := backend.raw("tracks:name=nothing"); raw != "[]" {
		t.Errorf("expected [] to be stored, got %q", raw)
	}
	if calls := source.calls.Load(); calls != 1 {
		t.Errorf("expected empty result to be served from cache, fetched %d times", calls)
	}
}

func TestCoordinator_ExpiredEntryIsRefetched(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend, WithTTL(10*time.Second))
	source := &countingFetch{result: []testTrack{loveSong}}
	ctx := context.Background()

	if _, err := c.ReadThrough(ctx, "tracks", "love", source.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	backend.advance(9 * time.Second)
	if _, err := c.ReadThrough(ctx, "tracks", "love", source.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := source.calls.Load(); calls != 1 {
		t.Fatalf("expected live entry to be served, fetched %d times", calls)
	}

	backend.advance(time.Second)
	if _, err := c.ReadThrough(ctx, "tracks", "love", source.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := source.calls.Load(); calls != 2 {
		t.Errorf("expected expired entry to be refetched, fetched %d times", calls)
	}
}

func TestCoordinator_UnreachableAtConnectBypassesCache(t *testing.T) {
	backend := newFakeBackend()
	backend.pingErr = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

	c := NewCoordinator[[]testTrack](backend, nil)
	err := c.Connect(context.Background())
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}
	if c.State() != StateDegraded {
		t.Fatalf("expected degraded state, got %s", c.State())
	}

	source := &countingFetch{result: []testTrack{loveSong}}
	for i := 0; i < 3; i++ {
		got, err := c.ReadThrough(context.Background(), "tracks", "love", source.fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0] != loveSong {
			t.Fatalf("expected fetched record, got %#v", got)
		}
	}

	if calls := source.calls.Load(); calls != 3 {
		t.Errorf("expected every call to reach the source, got %d", calls)
	}
	if backend.gets != 0 || backend.sets != 0 {
		t.Errorf("expected degraded coordinator not to touch the backend, gets=%d sets=%d", backend.gets, backend.sets)
	}
}

func TestCoordinator_NilBackendIsDegraded(t *testing.T) {
	c := NewCoordinator[[]testTrack](nil, nil)

	if err := c.Connect(context.Background()); !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}

	source := &countingFetch{result: []testTrack{loveSong}}
	if _, err := c.ReadThrough(context.Background(), "tracks", "", source.fetch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestCoordinator_Reconnect(t *testing.T) {
	backend := newFakeBackend()
	backend.pingErr = errors.New("connection refused")

	c := NewCoordinator[[]testTrack](backend, nil)
	_ = c.Connect(context.Background())
	if c.State() != StateDegraded {
		t.Fatalf("expected degraded state, got %s", c.State())
	}

	backend.mu.Lock()
	backend.pingErr = nil
	backend.mu.Unlock()

	if err := c.Reconnect(context.Background()); err != nil {
		t.Fatalf("unexpected reconnect error: %v", err)
	}
	if c.State() != StateConnected {
		t.Errorf("expected connected state after reconnect, got %s", c.State())
	}
}

func TestCoordinator_BackendFailuresAreAbsorbed(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)

	backend.mu.Lock()
	backend.getErr = errors.New("i/o timeout")
	backend.setErr = errors.New("i/o timeout")
	backend.mu.Unlock()

	source := &countingFetch{result: []testTrack{loveSong}}
	got, err := c.ReadThrough(context.Background(), "tracks", "love", source.fetch)
	if err != nil {
		t.Fatalf("expected cache failures to be absorbed, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected fetched record, got %#v", got)
	}

	res := c.Lookup(context.Background(), "tracks:name=love")
	if res.Outcome != OutcomeUnavailable || !errors.Is(res.Err, ErrCacheUnavailable) {
		t.Errorf("expected unavailable outcome, got %s (%v)", res.Outcome, res.Err)
	}
	if c.State() != StateConnected {
		t.Errorf("runtime failures must not change state, got %s", c.State())
	}
}

func TestCoordinator_FetchErrorPropagatesWithoutWrite(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)

	sourceErr := errors.New("relation \"Track\" does not exist")
	source := &countingFetch{err: sourceErr}

	_, err := c.ReadThrough(context.Background(), "tracks", "love", source.fetch)
	if err != sourceErr {
		t.Fatalf("expected the source error unchanged, got %v", err)
	}
	if backend.sets != 0 {
		t.Errorf("expected no write after a failed fetch, got %d", backend.sets)
	}
}

func TestCoordinator_MalformedEntryIsTreatedAsMiss(t *testing.T) {
	var logs bytes.Buffer
	backend := newFakeBackend()
	c := newConnected(t, backend, WithLogger(zerolog.New(&logs)))

	backend.put("tracks:name=love", `[{"name": "Love Song"`)

	res := c.Lookup(context.Background(), "tracks:name=love")
	if res.Outcome != OutcomeFormatError || !errors.Is(res.Err, ErrCacheFormat) {
		t.Fatalf("expected format error outcome, got %s (%v)", res.Outcome, res.Err)
	}

	source := &countingFetch{result: []testTrack{loveSong}}
	got, err := c.ReadThrough(context.Background(), "tracks", "Love", source.fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != loveSong {
		t.Errorf("expected refetched record, got %#v", got)
	}
	if raw, _ := backend.raw("tracks:name=love"); !strings.HasPrefix(raw, `[{"name": "Love Song", "album"`) {
		t.Errorf("expected malformed entry to be overwritten, got %s", raw)
	}
	if !strings.Contains(logs.String(), "cache read failed") {
		t.Errorf("expected the format error to be logged, got %s", logs.String())
	}
}

func TestCoordinator_StoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		c := NewCoordinator[[]testTrack](newFakeBackend(), nil)
		if err := c.Store(ctx, "k", nil, 0); !errors.Is(err, ErrCacheUnavailable) {
			t.Errorf("expected ErrCacheUnavailable, got %v", err)
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		backend := newFakeBackend()
		c := newConnected(t, backend)
		backend.setErr = errors.New("READONLY")
		if err := c.Store(ctx, "k", nil, 0); !errors.Is(err, ErrCacheUnavailable) {
			t.Errorf("expected ErrCacheUnavailable, got %v", err)
		}
	})

	t.Run("encode failure", func(t *testing.T) {
		c := NewCoordinator[[]testTrack](newFakeBackend(), failingCodec{})
		if err := c.Connect(ctx); err != nil {
			t.Fatalf("unexpected connect error: %v", err)
		}
		if err := c.Store(ctx, "k", nil, 0); !errors.Is(err, ErrCacheFormat) {
			t.Errorf("expected ErrCacheFormat, got %v", err)
		}
	})

	t.Run("ttl override", func(t *testing.T) {
		backend := newFakeBackend()
		c := newConnected(t, backend)
		c.Set(ctx, "k", []testTrack{loveSong}, 5*time.Second)
		if backend.lastTTL != 5*time.Second {
			t.Errorf("expected ttl override, got %v", backend.lastTTL)
		}
	})
}

type failingCodec struct{}

func (failingCodec) Encode([]testTrack) ([]byte, error) { return nil, errors.New("unsupported value") }
func (failingCodec) Decode([]byte) ([]testTrack, error) { return nil, errors.New("unsupported value") }
func (failingCodec) Name() string                       { return "failing" }

func TestCoordinator_WriteSurvivesCanceledRequest(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	source := func(ctx context.Context) ([]testTrack, error) {
		cancel()
		return []testTrack{loveSong}, nil
	}

	if _, err := c.ReadThrough(ctx, "tracks", "love", source); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := backend.raw("tracks:name=love"); !ok {
		t.Error("expected the write to complete after the request context was canceled")
	}
}

func TestCoordinator_CloseIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend)

	for i := 0; i < 2; i++ {
		if err := c.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
	}
	if backend.closes != 1 {
		t.Errorf("expected backend to be closed once, got %d", backend.closes)
	}
	if c.State() != StateClosed {
		t.Errorf("expected closed state, got %s", c.State())
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from connect, got %v", err)
	}

	source := &countingFetch{result: []testTrack{loveSong}}
	if _, err := c.ReadThrough(context.Background(), "tracks", "", source.fetch); err != nil {
		t.Errorf("expected closed coordinator to bypass the cache, got %v", err)
	}
}

func TestCoordinator_SingleFlightCollapsesConcurrentMisses(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend, WithSingleFlight())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]testTrack, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []testTrack{loveSong}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.ReadThrough(context.Background(), "tracks", "love", fetch)
			if err == nil && len(got) != 1 {
				err = errors.New("unexpected result")
			}
			errs <- err
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single fetch, got %d", got)
	}
}

func TestCoordinator_SingleFlightSurvivesLeaderCancel(t *testing.T) {
	backend := newFakeBackend()
	c := newConnected(t, backend, WithSingleFlight())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]testTrack, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []testTrack{loveSong}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.ReadThrough(leaderCtx, "tracks", "love", fetch)
		leaderErr <- err
	}()
	<-started

	type result struct {
		tracks []testTrack
		err    error
	}
	follower := make(chan result, 1)
	go func() {
		got, err := c.ReadThrough(context.Background(), "tracks", "love", fetch)
		follower <- result{got, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected leader to see context.Canceled, got %v", err)
	}

	close(release)
	res := <-follower
	if res.err != nil {
		t.Fatalf("expected follower to succeed, got %v", res.err)
	}
	if len(res.tracks) != 1 || res.tracks[0] != loveSong {
		t.Errorf("unexpected follower result %#v", res.tracks)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single fetch, got %d", got)
	}
	if _, ok := c.Get(context.Background(), "tracks:name=love"); !ok {
		t.Error("expected the shared result to be cached")
	}
}

func TestCoordinator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	backend := newFakeBackend()
	c := newConnected(t, backend, WithMetrics(metrics))
	source := &countingFetch{result: []testTrack{loveSong}}

	_, _ = c.ReadThrough(context.Background(), "tracks", "love", source.fetch)
	_, _ = c.ReadThrough(context.Background(), "tracks", "love", source.fetch)

	if got := testutil.ToFloat64(metrics.lookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.lookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.writes.WithLabelValues("stored")); got != 1 {
		t.Errorf("expected 1 stored write, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.fetches.WithLabelValues("ok")); got != 1 {
		t.Errorf("expected 1 fetch, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.state); got != float64(StateConnected) {
		t.Errorf("expected state gauge %d, got %v", StateConnected, got)
	}
}
