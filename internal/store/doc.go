// Package store persists conversation history for the gateway.
//
// # Architecture
//
// ConversationStore is the only interface. Each completed exchange becomes
// one Conversation row holding the session id, the user's message, the reply,
// the handler that produced it (nil for generative replies) and optional
// metadata. Persistence is a collaborator: callers log save failures and
// still answer the user.
//
// Two implementations exist:
//
//   - SQLiteStore: modernc.org/sqlite, pure Go
//   - MockStore: in memory, for tests
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC text so that ORDER BY created_at
// follows time order. Ties fall back to insertion order.
//
// Database file locations:
//
//   - Development: ~/.local/share/jarvis/gateway.db
//   - Testing: :memory: (in-memory database, single connection)
//
// # Ordering
//
// ListConversations pages across all sessions newest first.
// ConversationsBySession returns a single session oldest first, which is the
// order a transcript is read in.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(t.TempDir()+"/x.db")
// for integration tests with real SQLite.
package store
