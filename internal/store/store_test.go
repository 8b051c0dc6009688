// ABOUTME: Contract tests run against both SQLiteStore and MockStore
// ABOUTME: Covers ordering, paging, session deletion and nullable fields

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func stores(t *testing.T) map[string]ConversationStore {
	return map[string]ConversationStore{
		"sqlite": newTestStore(t),
		"mock":   NewMockStore(),
	}
}

func strPtr(s string) *string { return &s }

func seed(t *testing.T, s ConversationStore, session string, n int, start time.Time) {
	t.Helper()
	for i := range n {
		c := &Conversation{
			SessionID:         session,
			UserMessage:       "message " + string(rune('a'+i)),
			AssistantResponse: "reply",
			CreatedAt:         start.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveConversation(context.Background(), c); err != nil {
			t.Fatalf("SaveConversation failed: %v", err)
		}
	}
}

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &Conversation{
				SessionID:         "s1",
				UserMessage:       "what time is it",
				AssistantResponse: "It is 03:07 PM, Sir.",
				PluginUsed:        strPtr("CalendarPlugin"),
				Metadata:          map[string]any{"source": "http"},
			}
			if err := s.SaveConversation(ctx, c); err != nil {
				t.Fatalf("SaveConversation failed: %v", err)
			}
			if c.ID == "" {
				t.Fatal("expected an ID to be assigned")
			}
			if c.CreatedAt.IsZero() {
				t.Fatal("expected CreatedAt to be assigned")
			}

			got, err := s.ConversationsBySession(ctx, "s1")
			if err != nil {
				t.Fatalf("ConversationsBySession failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 row, got %d", len(got))
			}
			if got[0].ID != c.ID || got[0].UserMessage != c.UserMessage {
				t.Errorf("unexpected row: %+v", got[0])
			}
			if got[0].PluginUsed == nil || *got[0].PluginUsed != "CalendarPlugin" {
				t.Errorf("plugin_used = %v, want CalendarPlugin", got[0].PluginUsed)
			}
			if got[0].Metadata["source"] != "http" {
				t.Errorf("metadata = %v", got[0].Metadata)
			}
		})
	}
}

func TestNilPluginRoundTrips(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.SaveConversation(ctx, &Conversation{SessionID: "s", UserMessage: "hi", AssistantResponse: "Hello, Sir."}); err != nil {
				t.Fatalf("SaveConversation failed: %v", err)
			}
			got, err := s.ConversationsBySession(ctx, "s")
			if err != nil {
				t.Fatalf("ConversationsBySession failed: %v", err)
			}
			if got[0].PluginUsed != nil {
				t.Errorf("expected nil plugin_used, got %q", *got[0].PluginUsed)
			}
			if got[0].Metadata != nil {
				t.Errorf("expected nil metadata, got %v", got[0].Metadata)
			}
		})
	}
}

func TestSaveRejectsMissingSession(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.SaveConversation(context.Background(), &Conversation{UserMessage: "x"})
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if err := s.SaveConversation(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput for nil, got %v", err)
			}
		})
	}
}

func TestListNewestFirstWithPaging(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, "a", 3, base)
			seed(t, s, "b", 2, base.Add(10*time.Minute))

			all, err := s.ListConversations(ctx, 0, 0)
			if err != nil {
				t.Fatalf("ListConversations failed: %v", err)
			}
			if len(all) != 5 {
				t.Fatalf("expected 5 rows, got %d", len(all))
			}
			for i := 1; i < len(all); i++ {
				if all[i].CreatedAt.After(all[i-1].CreatedAt) {
					t.Fatalf("rows not newest first at %d", i)
				}
			}
			if all[0].SessionID != "b" {
				t.Errorf("newest row session = %s, want b", all[0].SessionID)
			}

			page, err := s.ListConversations(ctx, 1, 2)
			if err != nil {
				t.Fatalf("ListConversations page failed: %v", err)
			}
			if len(page) != 2 || page[0].ID != all[1].ID || page[1].ID != all[2].ID {
				t.Errorf("unexpected page: %+v", page)
			}

			empty, err := s.ListConversations(ctx, 100, 10)
			if err != nil {
				t.Fatalf("ListConversations past end failed: %v", err)
			}
			if len(empty) != 0 {
				t.Errorf("expected empty page, got %d rows", len(empty))
			}
		})
	}
}

func TestSameTimestampKeepsInsertionOrder(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, msg := range []string{"first", "second", "third"} {
				c := &Conversation{SessionID: "s", UserMessage: msg, AssistantResponse: "ok", CreatedAt: base}
				if err := s.SaveConversation(ctx, c); err != nil {
					t.Fatalf("SaveConversation failed: %v", err)
				}
			}

			asc, _ := s.ConversationsBySession(ctx, "s")
			if asc[0].UserMessage != "first" || asc[2].UserMessage != "third" {
				t.Errorf("session order = %s,%s,%s", asc[0].UserMessage, asc[1].UserMessage, asc[2].UserMessage)
			}
			desc, _ := s.ListConversations(ctx, 0, 10)
			if desc[0].UserMessage != "third" || desc[2].UserMessage != "first" {
				t.Errorf("list order = %s,%s,%s", desc[0].UserMessage, desc[1].UserMessage, desc[2].UserMessage)
			}
		})
	}
}

func TestSessionOldestFirstAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s, "keep", 2, base)
			seed(t, s, "drop", 3, base)

			got, err := s.ConversationsBySession(ctx, "drop")
			if err != nil {
				t.Fatalf("ConversationsBySession failed: %v", err)
			}
			if len(got) != 3 || got[0].UserMessage != "message a" || got[2].UserMessage != "message c" {
				t.Fatalf("unexpected session history: %+v", got)
			}

			n, err := s.DeleteSession(ctx, "drop")
			if err != nil {
				t.Fatalf("DeleteSession failed: %v", err)
			}
			if n != 3 {
				t.Errorf("deleted %d rows, want 3", n)
			}

			n, err = s.DeleteSession(ctx, "drop")
			if err != nil || n != 0 {
				t.Errorf("second delete = %d, %v; want 0, nil", n, err)
			}

			count, err := s.CountConversations(ctx)
			if err != nil {
				t.Fatalf("CountConversations failed: %v", err)
			}
			if count != 2 {
				t.Errorf("count = %d, want 2", count)
			}

			missing, err := s.ConversationsBySession(ctx, "nobody")
			if err != nil {
				t.Fatalf("ConversationsBySession for missing session failed: %v", err)
			}
			if missing == nil || len(missing) != 0 {
				t.Errorf("expected empty non-nil slice, got %#v", missing)
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jarvis.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	seed(t, s, "s", 2, base)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.CountConversations(context.Background())
	if err != nil {
		t.Fatalf("CountConversations failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count after reopen = %d, want 2", count)
	}
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:) failed: %v", err)
	}
	defer s.Close()

	seed(t, s, "s", 4, base)
	count, err := s.CountConversations(context.Background())
	if err != nil {
		t.Fatalf("CountConversations failed: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

func TestMockStore_SaveErrAndClose(t *testing.T) {
	m := NewMockStore()
	m.SaveErr = errors.New("disk full")

	err := m.SaveConversation(context.Background(), &Conversation{SessionID: "s"})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected injected error, got %v", err)
	}

	m.SaveErr = nil
	m.Close()
	if err := m.SaveConversation(context.Background(), &Conversation{SessionID: "s"}); err == nil {
		t.Fatal("expected save after Close to fail")
	}
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	m := NewMockStore()
	c := &Conversation{SessionID: "s", UserMessage: "original", Metadata: map[string]any{"k": "v"}}
	if err := m.SaveConversation(context.Background(), c); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	c.UserMessage = "mutated"
	c.Metadata["k"] = "changed"

	got, _ := m.ConversationsBySession(context.Background(), "s")
	if got[0].UserMessage != "original" || got[0].Metadata["k"] != "v" {
		t.Errorf("stored row was mutated: %+v", got[0])
	}
}
