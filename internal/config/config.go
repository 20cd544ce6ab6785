// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultAPIAddr   = "127.0.0.1:8600"
	DefaultListLimit = 100
)

// Config aggregates every runtime setting.
type Config struct {
	DataDir        string // directory holding the database files
	APIAddr        string // HTTP listen address for serve mode
	DefaultSession string // session used when a caller supplies none
	ListLimit      int    // default bound for message listings
	LogLevel       string // debug, info, warn, error
}

// Load reads configuration from the environment. The data directory
// defaults to ~/.chatlog.
func Load() (Config, error) {
	dataDir := strings.TrimSpace(os.Getenv("CHATLOG_DATA"))
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("config: determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chatlog")
	}

	addr, err := loadAddr()
	if err != nil {
		return Config{}, err
	}

	limit := DefaultListLimit
	if override, err := parseOptionalIntEnv("CHATLOG_LIST_LIMIT"); err != nil {
		return Config{}, err
	} else if override != nil {
		if *override < 1 {
			return Config{}, fmt.Errorf("config: CHATLOG_LIST_LIMIT must be positive, got %d", *override)
		}
		limit = *override
	}

	session := strings.TrimSpace(os.Getenv("CHATLOG_SESSION"))
	if session == "" {
		session = "default"
	}

	return Config{
		DataDir:        dataDir,
		APIAddr:        addr,
		DefaultSession: session,
		ListLimit:      limit,
		LogLevel:       getEnvOrDefault("CHATLOG_LOG_LEVEL", "info"),
	}, nil
}

// loadAddr parses the listen address. Accepts bare ports ("8600"),
// ":8600" or full "host:port" forms.
func loadAddr() (string, error) {
	addr := strings.TrimSpace(os.Getenv("CHATLOG_API_ADDR"))
	if addr == "" {
		return DefaultAPIAddr, nil
	}
	if strings.Contains(addr, " ") {
		return "", fmt.Errorf("config: invalid CHATLOG_API_ADDR value: %q", addr)
	}
	if !strings.Contains(addr, ":") {
		return ":" + addr, nil
	}
	return addr, nil
}

// MessagesDBPath is the conversation log database file.
func (c Config) MessagesDBPath() string {
	return filepath.Join(c.DataDir, "messages.db")
}

// KeychainDBPath is the keychain database file.
func (c Config) KeychainDBPath() string {
	return filepath.Join(c.DataDir, "keychain.db")
}

// LegacyDBPath is the host's old database file holding the generic store
// table with the pre-migration history blob.
func (c Config) LegacyDBPath() string {
	return filepath.Join(c.DataDir, "store.db")
}

// EnsureDataDir creates the data directory if it does not exist.
func (c Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("config: create data dir: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("config: invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
