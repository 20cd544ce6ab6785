// Package storage provides the durable stores backing the conversation log.
//
// MessageStore is an append-only record of conversation turns with
// hash-based idempotent inserts. Keychain is a persistent string-to-string
// map for longer-lived structured memory. Both are backed by local SQLite
// files (modernc.org/sqlite) so they survive process restarts without any
// external service.
package storage

import (
	"errors"
	"time"
)

// Roles permitted on a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultSession is the session identifier used when the caller does not
// supply one.
const DefaultSession = "default"

// ErrNotFound is returned when a keychain key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// ErrInvalidRole is returned by Append for roles outside user/assistant/system.
var ErrInvalidRole = errors.New("storage: invalid role")

// Message is one immutable conversation turn. Once written it is never
// updated or deleted through this package.
type Message struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Hash      string    `json:"hash"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates counts over the message store.
type Stats struct {
	Total     int            `json:"total"`
	ByRole    map[string]int `json:"by_role"`
	BySession map[string]int `json:"by_session"`
	Last      *Message       `json:"last,omitempty"` // content truncated to a preview
}

// ValidRole reports whether role is one of the permitted values.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
