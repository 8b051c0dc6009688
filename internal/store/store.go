// ABOUTME: Conversation model and the ConversationStore interface
// ABOUTME: Persists one row per completed exchange, keyed by session

package store

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultListLimit is used when ListConversations is given a limit of zero or less.
const DefaultListLimit = 50

// MaxListLimit caps a single page.
const MaxListLimit = 500

// Conversation is one user message with the reply it received.
type Conversation struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	UserMessage       string         `json:"user_message"`
	AssistantResponse string         `json:"assistant_response"`
	PluginUsed        *string        `json:"plugin_used"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ConversationStore persists conversation history.
type ConversationStore interface {
	// SaveConversation stores c. An empty ID or zero CreatedAt is filled in.
	SaveConversation(ctx context.Context, c *Conversation) error

	// ListConversations returns a page across all sessions, newest first.
	ListConversations(ctx context.Context, skip, limit int) ([]*Conversation, error)

	// ConversationsBySession returns a session's history, oldest first.
	ConversationsBySession(ctx context.Context, sessionID string) ([]*Conversation, error)

	// DeleteSession removes a session's history and returns how many rows went.
	DeleteSession(ctx context.Context, sessionID string) (int64, error)

	CountConversations(ctx context.Context) (int64, error)

	Close() error
}

// normalizePage clamps paging arguments.
func normalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return skip, limit
}

func validate(c *Conversation) error {
	if c == nil {
		return ErrInvalidInput
	}
	if c.SessionID == "" {
		return errors.Join(ErrInvalidInput, errors.New("session_id is required"))
	}
	return nil
}
