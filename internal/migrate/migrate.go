// Package migrate performs the one-time transformation of the legacy
// single-blob conversation history into individual message rows.
//
// The legacy format is a JSON array of {role, content} objects stored under
// one key in the host's generic store table. Each element is re-appended
// through the message store's idempotent insert, so running the migration
// repeatedly is safe.
package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chatlog/chatlog/internal/observability"
	"github.com/chatlog/chatlog/internal/storage"
)

// LegacyHistoryKey is the store-table key holding the pre-migration blob.
const LegacyHistoryKey = "llm_conversation_history"

// syntheticEpoch is the base for position-derived timestamps assigned to
// legacy messages. It must never change: the timestamp feeds the content
// hash, and re-runs only dedupe if they reproduce identical hashes.
var syntheticEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

const legacySchema = `
CREATE TABLE IF NOT EXISTS store (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// legacyMessage is one element of the legacy blob.
type legacyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Report is the result of Verify.
type Report struct {
	OK          bool `json:"ok"`
	LegacyCount int  `json:"legacy_count"`
	StoreCount  int  `json:"store_count"`
}

// Migrator moves legacy blob history into a MessageStore.
type Migrator struct {
	db       *sql.DB
	messages *storage.MessageStore
	log      *observability.Logger
}

// New opens the legacy database at legacyPath and returns a migrator
// targeting messages.
func New(legacyPath string, messages *storage.MessageStore, log *observability.Logger) (*Migrator, error) {
	db, err := sql.Open("sqlite", legacyPath)
	if err != nil {
		return nil, fmt.Errorf("migrate: open legacy db %q: %w", legacyPath, err)
	}
	if _, err := db.Exec(legacySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: create legacy schema: %w", err)
	}
	return &Migrator{db: db, messages: messages, log: log}, nil
}

// Migrate reads the legacy blob, appends each element to the message store
// with a deterministic synthetic timestamp preserving original order, and
// writes a timestamped backup copy of the blob under a new key. The
// original blob is left in place. Returns the number of rows actually
// inserted; re-runs return 0 because every append dedupes.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	raw, ok, err := m.readBlob(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		m.log.Info("no legacy history found, nothing to migrate")
		return 0, nil
	}

	history, err := parseBlob(raw)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for i, msg := range history {
		ts := syntheticEpoch.Add(time.Duration(i) * time.Second)
		_, inserted, err := m.messages.AppendAt(ctx, msg.Role, msg.Content, storage.DefaultSession, ts)
		if err != nil {
			return migrated, fmt.Errorf("migrate: append message %d: %w", i, err)
		}
		if inserted {
			migrated++
		}
	}

	backupKey := fmt.Sprintf("%s_backup_%s", LegacyHistoryKey, time.Now().UTC().Format("20060102_150405"))
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO store (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		backupKey, raw,
	); err != nil {
		return migrated, fmt.Errorf("migrate: write backup %q: %w", backupKey, err)
	}

	m.log.Info("legacy history migrated",
		observability.Int("total", len(history)),
		observability.Int("migrated", migrated),
		observability.String("backup_key", backupKey),
	)
	return migrated, nil
}

// Verify compares the message-store row count against the count implied by
// the legacy blob. OK means the store holds at least as many rows.
func (m *Migrator) Verify(ctx context.Context) (Report, error) {
	var legacyCount int
	raw, ok, err := m.readBlob(ctx)
	if err != nil {
		return Report{}, err
	}
	if ok {
		history, err := parseBlob(raw)
		if err != nil {
			return Report{}, err
		}
		legacyCount = len(history)
	}

	storeCount, err := m.messages.Count(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("migrate: count messages: %w", err)
	}

	return Report{
		OK:          storeCount >= legacyCount,
		LegacyCount: legacyCount,
		StoreCount:  storeCount,
	}, nil
}

// Close shuts down the legacy database handle.
func (m *Migrator) Close() error {
	return m.db.Close()
}

func (m *Migrator) readBlob(ctx context.Context) (string, bool, error) {
	var raw string
	err := m.db.QueryRowContext(ctx,
		"SELECT value FROM store WHERE key = ?", LegacyHistoryKey,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("migrate: read legacy blob: %w", err)
	}
	return raw, true, nil
}

func parseBlob(raw string) ([]legacyMessage, error) {
	var history []legacyMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("migrate: parse legacy blob: %w", err)
	}
	return history, nil
}
