// ABOUTME: Websocket hub tracking realtime sessions and pushing periodic telemetry to all of them.
// ABOUTME: The first session starts the telemetry loop and the last one stops it, under one mutex.

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/2389/jarvis-gateway/internal/assistant"
	"github.com/2389/jarvis-gateway/internal/sysinfo"
)

// Frame types.
const (
	TypeConnected      = "connected"
	TypeChat           = "chat"
	TypeChatProcessing = "chat_processing"
	TypeChatResponse   = "chat_response"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeSystemMetrics  = "system_metrics"
	TypeError          = "error"
)

// Client-facing messages.
const (
	WelcomeMessage     = "WebSocket connection established. J.A.R.V.I.S. real-time link active."
	InvalidJSONMessage = "Invalid JSON payload."
	EmptyMessage       = "Empty message."
)

const (
	defaultInterval     = 3 * time.Second
	defaultWriteTimeout = 5 * time.Second
	maxFrameBytes       = 64 << 10
)

// ErrClosed is the 503 body Serve writes after Close.
var ErrClosed = errors.New("realtime hub closed")

// Frame is one server-to-client message.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type inbound struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response   string    `json:"response"`
	SessionID  string    `json:"session_id"`
	PluginUsed *string   `json:"plugin_used"`
	Timestamp  time.Time `json:"timestamp"`
}

type telemetry struct {
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	DiskUsage   float64   `json:"disk_usage"`
	Timestamp   time.Time `json:"timestamp"`
}

// Responder answers one chat turn. assistant.Service satisfies it.
type Responder interface {
	Respond(ctx context.Context, req assistant.Request) assistant.Envelope
}

// Recorder is called after every answered chat frame, typically to persist
// the exchange. Errors are logged and never reach the client.
type Recorder func(ctx context.Context, req assistant.Request, env assistant.Envelope) error

// Observer is told when sessions open and close.
type Observer interface {
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}

// HubConfig contains configuration options for the Hub.
type HubConfig struct {
	Responder Responder
	Probe     sysinfo.Probe
	// Interval between telemetry pushes. Zero means 3s.
	Interval time.Duration
	// OriginPatterns are passed to websocket.Accept; same-origin requests
	// are always allowed.
	OriginPatterns []string
	Recorder       Recorder
	Observer       Observer
	Logger         *slog.Logger
	Now            func() time.Time
	WriteTimeout   time.Duration
}

// Hub owns every open realtime session.
type Hub struct {
	responder    Responder
	probe        sysinfo.Probe
	interval     time.Duration
	origins      []string
	recorder     Recorder
	observer     Observer
	logger       *slog.Logger
	now          func() time.Time
	writeTimeout time.Duration

	mu         sync.Mutex
	sessions   map[*session]struct{}
	loopCancel context.CancelFunc
	closed     bool

	// wg tracks the telemetry loop and every Serve call.
	wg sync.WaitGroup
}

type session struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc
	mu     sync.Mutex // serialises writes
}

// NewHub creates a Hub.
func NewHub(cfg HubConfig) *Hub {
	h := &Hub{
		responder:    cfg.Responder,
		probe:        cfg.Probe,
		interval:     cfg.Interval,
		origins:      cfg.OriginPatterns,
		recorder:     cfg.Recorder,
		observer:     cfg.Observer,
		logger:       cfg.Logger,
		now:          cfg.Now,
		writeTimeout: cfg.WriteTimeout,
		sessions:     make(map[*session]struct{}),
	}
	if h.interval <= 0 {
		h.interval = defaultInterval
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.observer == nil {
		h.observer = nopObserver{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "realtime")
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Sessions returns the number of open sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// LoopRunning reports whether the telemetry loop is active.
func (h *Hub) LoopRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loopCancel != nil
}

// Serve upgrades the request and runs the session until the client leaves,
// the request context ends or the hub closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	s := &session{id: uuid.New().String(), conn: conn, cancel: cancel}
	defer func() {
		cancel()
		h.remove(s)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	// Welcome goes out before the session joins the broadcast set so it is
	// always the first frame a client sees.
	if err := h.send(ctx, s, Frame{Type: TypeConnected, Data: map[string]any{
		"message":   WelcomeMessage,
		"timestamp": h.now(),
	}}); err != nil {
		return
	}
	if !h.add(s) {
		return
	}

	h.readLoop(ctx, s)
}

func (h *Hub) readLoop(ctx context.Context, s *session) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.logger.Debug("websocket read ended", "session", s.id, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			if h.sendError(ctx, s, InvalidJSONMessage) != nil {
				return
			}
			continue
		}

		var sendErr error
		switch msg.Type {
		case TypeChat:
			sendErr = h.handleChat(ctx, s, msg)
		case TypePing:
			sendErr = h.send(ctx, s, Frame{Type: TypePong, Data: map[string]any{"timestamp": h.now()}})
		default:
			sendErr = h.sendError(ctx, s, "Unknown message type: "+msg.Type)
		}
		if sendErr != nil {
			return
		}
	}
}

// handleChat acknowledges, answers and records one chat frame. The answer
// goes to the originating session only.
func (h *Hub) handleChat(ctx context.Context, s *session, msg inbound) error {
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return h.sendError(ctx, s, EmptyMessage)
	}

	if err := h.send(ctx, s, Frame{Type: TypeChatProcessing, Data: map[string]any{"message": text}}); err != nil {
		return err
	}

	req := assistant.Request{Message: text, SessionID: msg.SessionID}
	env := h.responder.Respond(ctx, req)

	if err := h.send(ctx, s, Frame{Type: TypeChatResponse, Data: chatResponse{
		Response:   env.Response,
		SessionID:  env.SessionID,
		PluginUsed: env.PluginUsed,
		Timestamp:  h.now(),
	}}); err != nil {
		return err
	}

	if h.recorder != nil {
		req.SessionID = env.SessionID
		if err := h.recorder(ctx, req, env); err != nil {
			h.logger.Warn("failed to record realtime exchange", "session_id", env.SessionID, "error", err)
		}
	}
	return nil
}

func (h *Hub) sendError(ctx context.Context, s *session, message string) error {
	return h.send(ctx, s, Frame{Type: TypeError, Data: map[string]any{"message": message}})
}

func (h *Hub) send(ctx context.Context, s *session, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	return wsjson.Write(ctx, s.conn, f)
}

// add registers s and starts the telemetry loop for the first session.
// It reports false when the hub has closed.
func (h *Hub) add(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	h.observer.SessionOpened()

	if len(h.sessions) == 1 && h.loopCancel == nil && h.probe != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.loopCancel = cancel
		h.wg.Add(1)
		go h.telemetryLoop(ctx)
		h.logger.Debug("telemetry loop started")
	}

	h.logger.Info("realtime session connected", "session", s.id, "total", len(h.sessions))
	return true
}

// remove forgets s and stops the telemetry loop once no session remains.
func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	h.observer.SessionClosed()

	if len(h.sessions) == 0 && h.loopCancel != nil {
		h.loopCancel()
		h.loopCancel = nil
		h.logger.Debug("telemetry loop stopped")
	}

	h.logger.Info("realtime session disconnected", "session", s.id, "total", len(h.sessions))
}

// drop removes a session whose send failed and tears its connection down.
func (h *Hub) drop(s *session) {
	h.remove(s)
	s.cancel()
	_ = s.conn.CloseNow()
}

func (h *Hub) telemetryLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		snap := h.probe.Snapshot(ctx)
		if ctx.Err() != nil {
			return
		}
		h.Broadcast(ctx, Frame{Type: TypeSystemMetrics, Data: telemetry{
			CPUUsage:    snap.CPUUsage,
			MemoryUsage: snap.MemoryUsage,
			DiskUsage:   snap.DiskUsage,
			Timestamp:   h.now(),
		}})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Broadcast sends f to every open session. Targets are copied under the lock
// and written outside it; a session whose write fails is dropped. Nothing is
// sent once ctx is done.
func (h *Hub) Broadcast(ctx context.Context, f Frame) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if ctx.Err() != nil {
			return
		}
		if err := h.send(ctx, s, f); err != nil {
			if ctx.Err() != nil {
				return
			}
			h.logger.Debug("dropping unreachable session", "session", s.id, "error", err)
			h.drop(s)
		}
	}
}

// Close stops the telemetry loop, disconnects every session and waits for
// their goroutines to finish. Later Serve calls answer 503.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.loopCancel != nil {
		h.loopCancel()
		h.loopCancel = nil
	}
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		_ = s.conn.Close(websocket.StatusGoingAway, "server shutting down")
		s.cancel()
	}
	h.wg.Wait()
	h.logger.Info("realtime hub closed", "sessions", len(targets))
}
