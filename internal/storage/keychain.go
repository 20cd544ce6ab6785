package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

const keychainSchema = `
CREATE TABLE IF NOT EXISTS keychain (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Item is one keychain entry. Values are opaque strings; by convention
// callers often store serialized JSON but the store does not care.
type Item struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Keychain is a persistent string-to-string map backed by its own SQLite
// file, separate from the message log. Writes are last-write-wins with no
// history kept.
type Keychain struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewKeychain opens (or creates) the keychain database at path.
func NewKeychain(path string) (*Keychain, error) {
	db, err := openDB(path, keychainSchema)
	if err != nil {
		return nil, fmt.Errorf("keychain: %w", err)
	}
	return &Keychain{db: db}, nil
}

// Set stores a value under key (upsert, last write wins).
func (k *Keychain) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, err := k.db.ExecContext(ctx, `
		INSERT INTO keychain (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("keychain set %q: %w", key, err)
	}
	return nil
}

// Lookup returns the value stored under key, or ErrNotFound.
func (k *Keychain) Lookup(ctx context.Context, key string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var value string
	err := k.db.QueryRowContext(ctx, "SELECT value FROM keychain WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("keychain lookup %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("keychain lookup %q: %w", key, err)
	}
	return value, nil
}

// Get returns the value stored under key, or def when the key is absent or
// the lookup fails. It never returns an error.
func (k *Keychain) Get(ctx context.Context, key, def string) string {
	value, err := k.Lookup(ctx, key)
	if err != nil {
		return def
	}
	return value
}

// Delete removes key. Deleting an absent key returns ErrNotFound.
func (k *Keychain) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	res, err := k.db.ExecContext(ctx, "DELETE FROM keychain WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("keychain delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("keychain delete %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("keychain delete %q: %w", key, ErrNotFound)
	}
	return nil
}

// Has reports whether key exists.
func (k *Keychain) Has(ctx context.Context, key string) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var one int
	err := k.db.QueryRowContext(ctx, "SELECT 1 FROM keychain WHERE key = ?", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keychain has %q: %w", key, err)
	}
	return true, nil
}

// Keys returns a snapshot of all keys, ordered.
func (k *Keychain) Keys(ctx context.Context) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	rows, err := k.db.QueryContext(ctx, "SELECT key FROM keychain ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("keychain keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("keychain keys: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Values returns a snapshot of all values, ordered by key.
func (k *Keychain) Values(ctx context.Context) ([]string, error) {
	items, err := k.Items(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return values, nil
}

// Items returns a snapshot of all entries, ordered by key.
func (k *Keychain) Items(ctx context.Context) ([]Item, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	rows, err := k.db.QueryContext(ctx, "SELECT key, value FROM keychain ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("keychain items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Key, &item.Value); err != nil {
			return nil, fmt.Errorf("keychain items: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update applies every pair in entries inside a single transaction.
func (k *Keychain) Update(ctx context.Context, entries map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("keychain update: %w", err)
	}
	defer tx.Rollback()

	for key, value := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO keychain (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("keychain update %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Clear removes every entry with a single bulk delete and returns how many
// were removed.
func (k *Keychain) Clear(ctx context.Context) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	res, err := k.db.ExecContext(ctx, "DELETE FROM keychain")
	if err != nil {
		return 0, fmt.Errorf("keychain clear: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (k *Keychain) Count(ctx context.Context) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var count int
	err := k.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM keychain").Scan(&count)
	return count, err
}

// Close shuts down the underlying database.
func (k *Keychain) Close() error {
	return k.db.Close()
}
