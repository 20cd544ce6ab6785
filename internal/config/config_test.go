package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHATLOG_DATA", t.TempDir())
	t.Setenv("CHATLOG_API_ADDR", "")
	t.Setenv("CHATLOG_SESSION", "")
	t.Setenv("CHATLOG_LIST_LIMIT", "")
	t.Setenv("CHATLOG_LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIAddr != DefaultAPIAddr {
		t.Errorf("APIAddr = %q, want %q", cfg.APIAddr, DefaultAPIAddr)
	}
	if cfg.DefaultSession != "default" {
		t.Errorf("DefaultSession = %q", cfg.DefaultSession)
	}
	if cfg.ListLimit != DefaultListLimit {
		t.Errorf("ListLimit = %d", cfg.ListLimit)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHATLOG_DATA", "/tmp/chatlog-test")
	t.Setenv("CHATLOG_API_ADDR", "0.0.0.0:9999")
	t.Setenv("CHATLOG_SESSION", "work")
	t.Setenv("CHATLOG_LIST_LIMIT", "25")
	t.Setenv("CHATLOG_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/tmp/chatlog-test" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.APIAddr != "0.0.0.0:9999" {
		t.Errorf("APIAddr = %q", cfg.APIAddr)
	}
	if cfg.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q", cfg.DefaultSession)
	}
	if cfg.ListLimit != 25 {
		t.Errorf("ListLimit = %d", cfg.ListLimit)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_BarePort(t *testing.T) {
	t.Setenv("CHATLOG_DATA", t.TempDir())
	t.Setenv("CHATLOG_API_ADDR", "8700")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIAddr != ":8700" {
		t.Errorf("APIAddr = %q, want :8700", cfg.APIAddr)
	}
}

func TestLoad_InvalidAddr(t *testing.T) {
	t.Setenv("CHATLOG_DATA", t.TempDir())
	t.Setenv("CHATLOG_API_ADDR", "not an addr")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for address with spaces")
	}
}

func TestLoad_InvalidListLimit(t *testing.T) {
	t.Setenv("CHATLOG_DATA", t.TempDir())
	t.Setenv("CHATLOG_API_ADDR", "")

	for _, bad := range []string{"abc", "0", "-5"} {
		t.Setenv("CHATLOG_LIST_LIMIT", bad)
		if _, err := Load(); err == nil {
			t.Errorf("CHATLOG_LIST_LIMIT=%q: expected error", bad)
		}
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := Config{DataDir: "/data"}

	if got := cfg.MessagesDBPath(); got != filepath.Join("/data", "messages.db") {
		t.Errorf("MessagesDBPath = %q", got)
	}
	if got := cfg.KeychainDBPath(); got != filepath.Join("/data", "keychain.db") {
		t.Errorf("KeychainDBPath = %q", got)
	}
	if got := cfg.LegacyDBPath(); got != filepath.Join("/data", "store.db") {
		t.Errorf("LegacyDBPath = %q", got)
	}
}

func TestConfig_EnsureDataDir(t *testing.T) {
	cfg := Config{DataDir: t.TempDir() + "/nested/dir"}

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatal(err)
	}
}
