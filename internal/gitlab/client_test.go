package gitlab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	advance bool
}

func newFakeClock(advance bool) *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), advance: advance}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	if f.advance {
		f.now = f.now.Add(d)
	}
	return ctx.Err()
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Token:             "secret",
		PerPage:           2,
		ConnectTimeout:    time.Second,
		ReadTimeout:       time.Second,
		MaxAttempts:       5,
		BackoffBase:       time.Millisecond,
		BackoffMax:        10 * time.Millisecond,
		RateLimitFallback: 2 * time.Second,
	}
}

func newTestClient(t *testing.T, cfg Config, clock *fakeClock) *Client {
	t.Helper()
	c, err := New(cfg, WithClock(clock.Now, clock.Sleep))
	require.NoError(t, err)
	return c
}

func TestNewRequiresToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Token = "  "
	c, err := New(cfg)
	require.Nil(t, c)
	require.ErrorIs(t, err, ErrMissingToken)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "token", cfgErr.Field)
	assert.Zero(t, calls.Load())
}

func TestGetSendsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "/projects/1/vulnerabilities", r.URL.Path)
		assert.Equal(t, "detected", r.URL.Query().Get("state"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), newFakeClock(true))
	body, err := c.Get(t.Context(), "projects/1/vulnerabilities", map[string][]string{"state": {"detected"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestGetRetriesTransientStatuses(t *testing.T) {
	statuses := []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusOK}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(statuses[n-1])
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	clock := newFakeClock(true)
	c := newTestClient(t, testConfig(srv.URL), clock)
	body, err := c.Get(t.Context(), "x", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, clock.Sleeps(), 2)
}

func TestGetGivesUpAfterBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), newFakeClock(true))
	body, err := c.Get(t.Context(), "x", nil)
	require.Nil(t, body)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FailureStatus, fe.Kind)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, 5, fe.Attempts)
	assert.Equal(t, int32(5), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), newFakeClock(true))
	_, err := c.Get(t.Context(), "x", nil)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FailureStatus, fe.Kind)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	clock := newFakeClock(true)
	c := newTestClient(t, testConfig(srv.URL), clock)
	_, err := c.Get(t.Context(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, clock.Sleeps())
}

func TestGetRetryAfterFallback(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "Wed, 21 Oct 2015 07:28:00 GMT")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	clock := newFakeClock(true)
	c := newTestClient(t, testConfig(srv.URL), clock)
	_, err := c.Get(t.Context(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
}

func TestGetRateLimitGrantsOneExtraAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxAttempts = 3
	c := newTestClient(t, cfg, newFakeClock(true))
	_, err := c.Get(t.Context(), "x", nil)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	assert.Equal(t, 4, fe.Attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRateLimitCooldownIsShared(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "4")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// The clock stands still, so the cooldown set by the first caller is
	// still pending when the second caller arrives.
	clock := newFakeClock(false)
	c := newTestClient(t, testConfig(srv.URL), clock)

	_, err := c.Get(t.Context(), "a", nil)
	require.NoError(t, err)
	_, err = c.Get(t.Context(), "b", nil)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestGetRetriesTruncatedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Length", "100")
			w.Write([]byte(`[{"id":`))
			return
		}
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), newFakeClock(true))
	body, err := c.Get(t.Context(), "x", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetMalformedJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL), newFakeClock(true))
	_, err := c.Get(t.Context(), "x", nil)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FailureDecode, fe.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetStalledServerIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[`))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.ReadTimeout = 100 * time.Millisecond
	cfg.MaxAttempts = 2
	c := newTestClient(t, cfg, newFakeClock(true))

	start := time.Now()
	_, err := c.Get(t.Context(), "x", nil)
	require.Less(t, time.Since(start), 3*time.Second)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FailureNetwork, fe.Kind)
	assert.Equal(t, 2, fe.Attempts)
}

func TestGetCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	c := newTestClient(t, testConfig(srv.URL), newFakeClock(true))
	_, err := c.Get(ctx, "x", nil)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FailureCanceled, fe.Kind)
	assert.True(t, errors.Is(err, context.Canceled))
}
