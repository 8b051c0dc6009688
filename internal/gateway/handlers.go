// ABOUTME: Route table plus the chat, history, health and realtime endpoints.
// ABOUTME: Chat turns are persisted after the reply is built; storage failures are only logged.

package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/jarvis-gateway/internal/assistant"
	"github.com/2389/jarvis-gateway/internal/realtime"
	"github.com/2389/jarvis-gateway/internal/store"
	"github.com/2389/jarvis-gateway/internal/sysinfo"
)

// APIPrefix is the common prefix of every versioned route.
const APIPrefix = "/api/v1"

// Channels recorded in conversation metadata.
const (
	ChannelHTTP      = "http"
	ChannelWebSocket = "websocket"
)

// persistTimeout bounds a single conversation save.
const persistTimeout = 5 * time.Second

func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", g.handleRoot)
	mux.HandleFunc("GET "+APIPrefix+"/health", g.handleHealth)

	mux.HandleFunc("POST "+APIPrefix+"/chat", g.handleChat)
	mux.HandleFunc("GET "+APIPrefix+"/chat/history", g.handleHistory)
	mux.HandleFunc("GET "+APIPrefix+"/chat/history/{session}", g.handleSessionHistory)
	mux.HandleFunc("DELETE "+APIPrefix+"/chat/history/{session}", g.handleDeleteSession)

	mux.HandleFunc("GET "+APIPrefix+"/plugins", g.handleListPlugins)
	mux.HandleFunc("GET "+APIPrefix+"/plugins/{name}", g.handleGetPlugin)
	mux.HandleFunc("POST "+APIPrefix+"/plugins/{name}/toggle", g.handleTogglePlugin)

	mux.HandleFunc("GET "+APIPrefix+"/skills/skills", g.handleListSkills)
	mux.HandleFunc("GET "+APIPrefix+"/skills/skills/available", g.handleAvailableSkills)
	mux.HandleFunc("GET "+APIPrefix+"/skills/skills/{name}", g.handleGetSkill)
	mux.HandleFunc("POST "+APIPrefix+"/skills/skills/{name}/toggle", g.handleToggleSkill)

	mux.HandleFunc("GET "+APIPrefix+"/system/health", g.handleSystemHealth)

	mux.HandleFunc("POST "+APIPrefix+"/speech/speech-to-text", g.handleSpeechToText)
	mux.HandleFunc("POST "+APIPrefix+"/speech/text-to-speech", g.handleTextToSpeech)
	mux.HandleFunc("POST "+APIPrefix+"/speech/upload-audio", g.handleUploadAudio)
	mux.HandleFunc("GET "+APIPrefix+"/speech/voices", g.handleVoices)

	mux.HandleFunc("GET "+APIPrefix+"/ws", g.hub.Serve)

	if g.config.Metrics.Enabled {
		mux.Handle("GET "+g.config.Metrics.Path, g.metrics.Handler())
	}
	return mux
}

type banner struct {
	Message   string `json:"message"`
	Status    string `json:"status"`
	Version   string `json:"version"`
	Health    string `json:"health"`
	WebSocket string `json:"websocket"`
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, banner{
		Message:   "J.A.R.V.I.S. AI Assistant API",
		Status:    "operational",
		Version:   Version,
		Health:    APIPrefix + "/system/health",
		WebSocket: APIPrefix + "/ws",
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id"`
	UseVoice  bool    `json:"use_voice"`
}

// handleChat answers one chat turn. An empty message is answered by the
// generative fallback; a missing one is a validation error.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	if req.Message == nil {
		g.sendRequestError(w, r, invalid("body -> message", "field required"))
		return
	}

	turn := assistant.Request{Message: *req.Message, SessionID: req.SessionID}
	env := g.assistant.Respond(r.Context(), turn)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), persistTimeout)
	defer cancel()
	if err := g.recorder(ChannelHTTP)(ctx, turn, env); err != nil {
		g.logger.Warn("failed to persist conversation",
			"session_id", env.SessionID,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
	}

	writeJSON(w, http.StatusOK, env)
}

// recorder returns the persistence callback for one channel.
func (g *Gateway) recorder(channel string) realtime.Recorder {
	return func(ctx context.Context, req assistant.Request, env assistant.Envelope) error {
		return g.store.SaveConversation(ctx, &store.Conversation{
			SessionID:         env.SessionID,
			UserMessage:       req.Message,
			AssistantResponse: env.Response,
			PluginUsed:        env.PluginUsed,
			Metadata:          map[string]any{"channel": channel},
			CreatedAt:         env.Timestamp,
		})
	}
}

type historyPage struct {
	Conversations []*store.Conversation `json:"conversations"`
	Total         int64                 `json:"total"`
	Skip          int                   `json:"skip"`
	Limit         int                   `json:"limit"`
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", store.DefaultListLimit)
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	if skip < 0 {
		g.sendRequestError(w, r, invalid("query -> skip", "must be greater than or equal to 0"))
		return
	}
	if limit < 1 || limit > store.MaxListLimit {
		g.sendRequestError(w, r, invalid("query -> limit", "must be between 1 and "+strconv.Itoa(store.MaxListLimit)))
		return
	}

	convs, err := g.store.ListConversations(r.Context(), skip, limit)
	if err != nil {
		g.sendInternalError(w, r, err)
		return
	}
	total, err := g.store.CountConversations(r.Context())
	if err != nil {
		g.sendInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyPage{Conversations: convs, Total: total, Skip: skip, Limit: limit})
}

type sessionHistory struct {
	SessionID     string                `json:"session_id"`
	Conversations []*store.Conversation `json:"conversations"`
}

func (g *Gateway) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("session")
	convs, err := g.store.ConversationsBySession(r.Context(), sid)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			g.sendRequestError(w, r, invalid("path -> session", err.Error()))
			return
		}
		g.sendInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionHistory{SessionID: sid, Conversations: convs})
}

func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	n, err := g.store.DeleteSession(r.Context(), r.PathValue("session"))
	if err != nil {
		g.sendInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

type systemHealth struct {
	Status string `json:"status"`
	sysinfo.Snapshot
}

// handleSystemHealth never fails: probe problems are reported in the
// snapshot's error field.
func (g *Gateway) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, systemHealth{Status: "healthy", Snapshot: g.probe.Snapshot(r.Context())})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("query -> "+name, "value is not a valid integer")
	}
	return n, nil
}
