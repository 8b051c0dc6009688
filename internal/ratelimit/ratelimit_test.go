// ABOUTME: Tests for the sliding-window limiter, admission middleware and body limit.
// ABOUTME: Uses a manual clock so window expiry is deterministic.

package ratelimit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLimiter_Window(t *testing.T) {
	clock := newClock()
	l := NewLimiter(3, time.Minute, clock.Now)

	for i := range 3 {
		d := l.Allow("1.2.3.4")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
		clock.Advance(time.Second)
	}

	d := l.Allow("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 57*time.Second, d.RetryAfter)
	assert.Equal(t, 57, d.RetryAfterSeconds())

	clock.Advance(57 * time.Second)
	d = l.Allow("1.2.3.4")
	assert.True(t, d.Allowed, "oldest timestamp has left the window")
}

func TestLimiter_RetryAfterRoundsUpWithFloor(t *testing.T) {
	clock := newClock()
	l := NewLimiter(1, time.Minute, clock.Now)

	require.True(t, l.Allow("c").Allowed)
	clock.Advance(59*time.Second + 700*time.Millisecond)

	d := l.Allow("c")
	require.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	clock.Advance(-30 * time.Second)
	d = l.Allow("c")
	require.False(t, d.Allowed)
	assert.Equal(t, 31*time.Second, d.RetryAfter)
}

func TestLimiter_RejectionsAreNotRecorded(t *testing.T) {
	clock := newClock()
	l := NewLimiter(2, time.Minute, clock.Now)

	l.Allow("c")
	l.Allow("c")
	for range 10 {
		assert.False(t, l.Allow("c").Allowed)
	}

	clock.Advance(time.Minute)
	assert.True(t, l.Allow("c").Allowed)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute, newClock().Now)

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
	assert.Equal(t, 2, l.Clients())
}

func TestLimiter_ZeroLimitAdmitsAll(t *testing.T) {
	l := NewLimiter(0, time.Minute, nil)
	for range 100 {
		assert.True(t, l.Allow("c").Allowed)
	}
	assert.Equal(t, 0, l.Clients())
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewLimiter(50, time.Minute, newClock().Now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared").Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, admitted)
}

type countingObserver struct {
	mu      sync.Mutex
	buckets []string
}

func (o *countingObserver) Rejected(bucket string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buckets = append(o.buckets, bucket)
}

func newTestGuard(clock *manualClock, chat, general int) (http.Handler, *countingObserver) {
	obs := &countingObserver{}
	g := NewGuard(GuardConfig{
		Chat:        NewLimiter(chat, time.Minute, clock.Now),
		General:     NewLimiter(general, time.Minute, clock.Now),
		ExemptPaths: []string{"/metrics"},
		Observer:    obs,
		Logger:      quietLogger(),
		Now:         clock.Now,
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return g.Middleware(ok), obs
}

func do(h http.Handler, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard_ChatLimitIsSeparate(t *testing.T) {
	clock := newClock()
	h, obs := newTestGuard(clock, 2, 5)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/chat", "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/v1/chat", "10.0.0.1:1234").Code)

	rec := do(h, http.MethodPost, "/api/v1/chat", "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["error"])
	assert.Equal(t, float64(429), body["status_code"])
	assert.Equal(t, RejectMessage, body["message"])
	assert.Equal(t, float64(60), body["retry_after_seconds"])
	assert.Equal(t, "2026-03-04T12:00:00Z", body["timestamp"])

	// General bucket is untouched by chat traffic.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/chat/history", "10.0.0.1:1234").Code)
	assert.Equal(t, []string{BucketChat}, obs.buckets)
}

func TestGuard_ExemptPaths(t *testing.T) {
	h, _ := newTestGuard(newClock(), 1, 1)

	for range 5 {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/health", "10.0.0.1:1").Code)
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/ws", "10.0.0.1:1").Code)
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/metrics", "10.0.0.1:1").Code)
	}
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/plugins", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/v1/plugins", "10.0.0.1:1").Code)
}

func TestGuard_WindowExpiry(t *testing.T) {
	clock := newClock()
	h, _ := newTestGuard(clock, 1, 1)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/plugins", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/v1/plugins", "10.0.0.1:1").Code)

	clock.Advance(time.Minute)
	rec := do(h, http.MethodGet, "/api/v1/plugins", "10.0.0.1:1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestClientID_IgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4444"
	assert.Equal(t, "192.168.1.5", ClientID(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "192.168.1.5", ClientID(req))
	assert.Equal(t, "192.168.1.5", TrustedProxies{}.ClientID(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", ClientID(req))
}

func TestTrustedProxies_ClientID(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.1 ", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, tp.Len())

	tests := []struct {
		name      string
		remote    string
		forwarded []string
		want      string
	}{
		{"untrusted peer keeps its own address", "203.0.113.7:1", []string{"198.51.100.1"}, "203.0.113.7"},
		{"trusted peer without header", "10.0.0.5:1", nil, "10.0.0.5"},
		{"trusted peer reports client", "10.0.0.5:1", []string{"198.51.100.1"}, "198.51.100.1"},
		{"rightmost untrusted hop wins", "10.0.0.5:1", []string{"1.1.1.1, 198.51.100.1, 10.2.3.4"}, "198.51.100.1"},
		{"headers are concatenated", "192.168.1.1:1", []string{"1.1.1.1", "10.9.9.9"}, "1.1.1.1"},
		{"all hops trusted", "10.0.0.5:1", []string{"10.0.0.7"}, "10.0.0.7"},
		{"garbled hop stops the walk", "10.0.0.5:1", []string{"1.1.1.1, bogus"}, "10.0.0.5"},
		{"mapped ipv4 peer", "[::ffff:10.0.0.5]:1", []string{"198.51.100.1"}, "198.51.100.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, tp.ClientID(req))
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestGuard_SpoofedForwardedForSharesOneBudget(t *testing.T) {
	clock := newClock()
	h, obs := newTestGuard(clock, 3, 100)

	admitted := 0
	for i := range 50 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			admitted++
		}
	}
	assert.Equal(t, 3, admitted)
	assert.Len(t, obs.buckets, 47)
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	h := BodyLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		if limit, ok := IsTooLarge(readErr); ok {
			WriteTooLarge(w, limit)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(16), body["limit_bytes"])
	assert.Equal(t, float64(413), body["status_code"])

	// Unknown length is caught while reading.
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(strings.Repeat("y", 64))))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	_, tooLarge := IsTooLarge(readErr)
	assert.True(t, tooLarge)
}
