package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp    TEXT NOT NULL,
	role         TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	session_id   TEXT NOT NULL DEFAULT 'default',
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);`

// previewLimit is the maximum number of runes kept when truncating message
// content for stats previews.
const previewLimit = 100

// defaultListLimit bounds List when the caller passes a non-positive limit.
const defaultListLimit = 100

// MessageStore is an append-only SQLite-backed log of conversation turns.
// Appends are idempotent per (role, content, timestamp) triple: the content
// hash carries a UNIQUE constraint and duplicate inserts are swallowed.
type MessageStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewMessageStore opens (or creates) the message database at path.
// Use ":memory:" for an in-memory store.
func NewMessageStore(path string) (*MessageStore, error) {
	db, err := openDB(path, messagesSchema)
	if err != nil {
		return nil, fmt.Errorf("message store: %w", err)
	}
	return &MessageStore{db: db}, nil
}

// HashMessage returns the deterministic sha256 hex digest identifying one
// (role, content, timestamp) triple. It is the store's idempotence token.
func HashMessage(role, content string, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(role))
	h.Write([]byte("|"))
	h.Write([]byte(content))
	h.Write([]byte("|"))
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Append stores a conversation turn timestamped now. sessionID may be empty,
// in which case DefaultSession is used. It returns the new row id and
// inserted=true, or (0, false, nil) when the identical triple was already
// stored. Duplicates are the success path, not an error.
func (s *MessageStore) Append(ctx context.Context, role, content, sessionID string) (int64, bool, error) {
	return s.AppendAt(ctx, role, content, sessionID, time.Now().UTC())
}

// AppendAt is Append with an explicit timestamp. The migrator uses it to
// assign deterministic synthetic timestamps to legacy history.
func (s *MessageStore) AppendAt(ctx context.Context, role, content, sessionID string, ts time.Time) (int64, bool, error) {
	if !ValidRole(role) {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if sessionID == "" {
		sessionID = DefaultSession
	}
	ts = ts.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (timestamp, role, content, content_hash, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING`,
		ts.Format(time.RFC3339Nano), role, content,
		HashMessage(role, content, ts), sessionID,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, false, fmt.Errorf("append message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append message: rows affected: %w", err)
	}
	if n == 0 {
		// Same (role, content, timestamp) triple already stored.
		return 0, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("append message: last insert id: %w", err)
	}
	return id, true, nil
}

// List returns up to limit messages oldest first (ascending id). sessionID
// empty means all sessions; limit <= 0 falls back to a default cap.
func (s *MessageStore) List(ctx context.Context, limit int, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, timestamp, role, content, content_hash, session_id, created_at
		FROM messages`
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Count returns the total number of stored messages.
func (s *MessageStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}

// CountSession returns the number of messages in one session.
func (s *MessageStore) CountSession(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID,
	).Scan(&count)
	return count, err
}

// Stats aggregates total, per-role and per-session counts plus the most
// recent message with its content truncated for preview.
func (s *MessageStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		ByRole:    make(map[string]int),
		BySession: make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&stats.Total); err != nil {
		return Stats{}, fmt.Errorf("stats: total: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT role, COUNT(*) FROM messages GROUP BY role")
	if err != nil {
		return Stats{}, fmt.Errorf("stats: roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return Stats{}, fmt.Errorf("stats: roles: %w", err)
		}
		stats.ByRole[role] = n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats: roles: %w", err)
	}

	sessRows, err := s.db.QueryContext(ctx, "SELECT session_id, COUNT(*) FROM messages GROUP BY session_id")
	if err != nil {
		return Stats{}, fmt.Errorf("stats: sessions: %w", err)
	}
	defer sessRows.Close()
	for sessRows.Next() {
		var session string
		var n int
		if err := sessRows.Scan(&session, &n); err != nil {
			return Stats{}, fmt.Errorf("stats: sessions: %w", err)
		}
		stats.BySession[session] = n
	}
	if err := sessRows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats: sessions: %w", err)
	}

	last := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, role, content, content_hash, session_id, created_at
		FROM messages ORDER BY id DESC LIMIT 1`)
	msg, err := scanMessage(last)
	switch {
	case err == sql.ErrNoRows:
		// Empty store; no last message.
	case err != nil:
		return Stats{}, fmt.Errorf("stats: last message: %w", err)
	default:
		msg.Content = truncateRunes(msg.Content, previewLimit)
		stats.Last = &msg
	}

	return stats, nil
}

// Close shuts down the underlying database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (Message, error) {
	var msg Message
	var ts, createdAt string
	if err := row.Scan(&msg.ID, &ts, &msg.Role, &msg.Content, &msg.Hash, &msg.SessionID, &createdAt); err != nil {
		return Message{}, err
	}
	msg.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return msg, nil
}

// truncateRunes shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
