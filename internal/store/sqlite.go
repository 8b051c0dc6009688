// ABOUTME: SQLite implementation of ConversationStore using modernc.org/sqlite
// ABOUTME: Creates the schema on open and runs in WAL mode

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements ConversationStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	memory := path == ":memory:"
	if !memory {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every pooled connection to :memory: would otherwise see its own database.
	if memory {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			assistant_response TEXT NOT NULL,
			plugin_used TEXT,
			metadata TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_session
			ON conversations(session_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_conversations_created
			ON conversations(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveConversation inserts c, assigning an ID and timestamp when missing.
func (s *SQLiteStore) SaveConversation(ctx context.Context, c *Conversation) error {
	if err := validate(c); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	var metadata sql.NullString
	if len(c.Metadata) > 0 {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	var plugin sql.NullString
	if c.PluginUsed != nil {
		plugin = sql.NullString{String: *c.PluginUsed, Valid: true}
	}

	query := `
		INSERT INTO conversations (id, session_id, user_message, assistant_response, plugin_used, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.SessionID,
		c.UserMessage,
		c.AssistantResponse,
		plugin,
		metadata,
		c.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("saved conversation", "id", c.ID, "session_id", c.SessionID)
	return nil
}

// ListConversations returns a page of history across sessions, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, skip, limit int) ([]*Conversation, error) {
	skip, limit = normalizePage(skip, limit)
	query := `
		SELECT id, session_id, user_message, assistant_response, plugin_used, metadata, created_at
		FROM conversations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	return scanConversations(rows)
}

// ConversationsBySession returns one session's history, oldest first.
func (s *SQLiteStore) ConversationsBySession(ctx context.Context, sessionID string) ([]*Conversation, error) {
	query := `
		SELECT id, session_id, user_message, assistant_response, plugin_used, metadata, created_at
		FROM conversations
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session conversations: %w", err)
	}
	return scanConversations(rows)
}

// DeleteSession removes every row for sessionID.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	s.logger.Info("deleted session history", "session_id", sessionID, "rows", n)
	return n, nil
}

// CountConversations returns the total number of stored exchanges.
func (s *SQLiteStore) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return n, nil
}

func scanConversations(rows *sql.Rows) ([]*Conversation, error) {
	defer rows.Close()

	out := []*Conversation{}
	for rows.Next() {
		var c Conversation
		var plugin, metadata sql.NullString
		var createdAt string

		if err := rows.Scan(
			&c.ID,
			&c.SessionID,
			&c.UserMessage,
			&c.AssistantResponse,
			&plugin,
			&metadata,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}

		if plugin.Valid {
			p := plugin.String
			c.PluginUsed = &p
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
		}

		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		c.CreatedAt = t

		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}
