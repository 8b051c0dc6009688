// ABOUTME: Mock ConversationStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory ConversationStore for testing.
type MockStore struct {
	mu   sync.RWMutex
	rows []*Conversation // insertion order

	// SaveErr, when set, is returned by SaveConversation.
	SaveErr error
	closed  bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

var errClosed = errors.New("store closed")

// SaveConversation stores a copy of c.
func (m *MockStore) SaveConversation(ctx context.Context, c *Conversation) error {
	if err := validate(c); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	// Make a copy to avoid external modification
	cp := copyConversation(c)
	m.rows = append(m.rows, cp)
	return nil
}

// ListConversations returns a page, newest first.
func (m *MockStore) ListConversations(ctx context.Context, skip, limit int) ([]*Conversation, error) {
	skip, limit = normalizePage(skip, limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Conversation, len(m.rows))
	for i, c := range m.rows {
		all[len(m.rows)-1-i] = c
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	out := []*Conversation{}
	for i := skip; i < len(all) && len(out) < limit; i++ {
		out = append(out, copyConversation(all[i]))
	}
	return out, nil
}

// ConversationsBySession returns one session's history, oldest first.
func (m *MockStore) ConversationsBySession(ctx context.Context, sessionID string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*Conversation{}
	for _, c := range m.rows {
		if c.SessionID == sessionID {
			out = append(out, copyConversation(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteSession removes a session's rows.
func (m *MockStore) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.rows[:0]
	var n int64
	for _, c := range m.rows {
		if c.SessionID == sessionID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.rows = kept
	return n, nil
}

// CountConversations returns the number of stored rows.
func (m *MockStore) CountConversations(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.rows)), nil
}

// Close marks the store closed; later saves fail.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copyConversation(c *Conversation) *Conversation {
	cp := *c
	if c.PluginUsed != nil {
		p := *c.PluginUsed
		cp.PluginUsed = &p
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
