// ABOUTME: HTTP admission middleware applying a strict chat limit and a looser general limit.
// ABOUTME: Health, realtime-upgrade and metrics paths are exempt; rejections are structured 429s.

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Buckets reported to an Observer.
const (
	BucketChat    = "chat"
	BucketGeneral = "general"
)

// RejectMessage is the message carried by every 429 response.
const RejectMessage = "Rate limit exceeded. Please slow down, Sir."

// Observer is told about every rejection, typically for metrics.
type Observer interface {
	Rejected(bucket string)
}

type nopObserver struct{}

func (nopObserver) Rejected(string) {}

// GuardConfig contains configuration options for the Guard.
type GuardConfig struct {
	Chat    *Limiter
	General *Limiter
	// ExemptPaths are exact paths that bypass both limits, such as the
	// metrics endpoint. Paths ending in /health or /ws are always exempt.
	ExemptPaths []string
	// Proxies may report the original client via X-Forwarded-For.
	Proxies  TrustedProxies
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Guard admits or rejects HTTP requests per client.
type Guard struct {
	chat     *Limiter
	general  *Limiter
	exempt   map[string]bool
	proxies  TrustedProxies
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewGuard creates a Guard. Nil limiters admit everything in their bucket.
func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{
		chat:     cfg.Chat,
		general:  cfg.General,
		exempt:   make(map[string]bool, len(cfg.ExemptPaths)),
		proxies:  cfg.Proxies,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	for _, p := range cfg.ExemptPaths {
		g.exempt[p] = true
	}
	if g.observer == nil {
		g.observer = nopObserver{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "ratelimit")
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Exempt reports whether r bypasses rate limiting.
func (g *Guard) Exempt(r *http.Request) bool {
	path := r.URL.Path
	return strings.HasSuffix(path, "/health") || strings.HasSuffix(path, "/ws") || g.exempt[path]
}

// IsChat reports whether r counts against the chat limit.
func IsChat(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/chat")
}

// Clients returns the number of client identifiers tracked across both buckets.
func (g *Guard) Clients() int {
	n := 0
	if g.chat != nil {
		n += g.chat.Clients()
	}
	if g.general != nil {
		n += g.general.Clients()
	}
	return n
}

// Middleware wraps next with admission control.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Exempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		bucket, limiter := BucketGeneral, g.general
		if IsChat(r) {
			bucket, limiter = BucketChat, g.chat
		}
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		client := g.proxies.ClientID(r)
		d := limiter.Allow(client)
		if !d.Allowed {
			g.observer.Rejected(bucket)
			g.logger.Warn("rate limit exceeded",
				"client", client,
				"bucket", bucket,
				"path", r.URL.Path,
				"retry_after_seconds", d.RetryAfterSeconds(),
			)
			g.reject(w, d)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		next.ServeHTTP(w, r)
	})
}

type rejection struct {
	Error             bool   `json:"error"`
	StatusCode        int    `json:"status_code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	Timestamp         string `json:"timestamp"`
}

func (g *Guard) reject(w http.ResponseWriter, d Decision) {
	secs := d.RetryAfterSeconds()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rejection{
		Error:             true,
		StatusCode:        http.StatusTooManyRequests,
		Message:           RejectMessage,
		RetryAfterSeconds: secs,
		Timestamp:         g.now().UTC().Format(time.RFC3339),
	})
}
