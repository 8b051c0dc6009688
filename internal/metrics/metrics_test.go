// ABOUTME: Tests for the Prometheus collectors and the scrape handler.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserversIncrementCounters(t *testing.T) {
	m := New()

	m.HandlerMatched("CalendarPlugin")
	m.HandlerMatched("CalendarPlugin")
	m.NoMatch()
	m.HandlerFailed("NewsPlugin", "handle")
	m.FallbackOutcome("")
	m.FallbackOutcome("timeout")
	m.Rejected("chat")
	m.SpeechOutcome("tts", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatch.WithLabelValues("CalendarPlugin", OutcomeMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatch.WithLabelValues("", OutcomeNoMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerFailures.WithLabelValues("NewsPlugin", "handle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallback.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallback.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.speech.WithLabelValues("tts", OutcomeOK)))
}

func TestSessionsGauge(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	clients := 3
	m.TrackClients(func() int { return clients })
	m.ObserveRequest(http.MethodGet, "GET /api/v1/plugins", http.StatusOK, 15*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "jarvis_rate_limit_clients 3")
	assert.Contains(t, text, `jarvis_http_request_duration_seconds_count{method="GET",route="GET /api/v1/plugins",status="200"} 1`)
	assert.Contains(t, text, `route="unmatched"`)
	assert.Contains(t, text, "go_goroutines")
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.Rejected("general")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rejections.WithLabelValues("general")))
}
