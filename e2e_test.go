package chatlog_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/chatlog/chatlog/internal/api"
	"github.com/chatlog/chatlog/internal/migrate"
	"github.com/chatlog/chatlog/internal/observability"
	"github.com/chatlog/chatlog/internal/storage"
)

// =============================================================================
// End-to-End Integration Tests
//
// These tests drive the whole durability layer through real SQLite files:
// legacy blob seeding, migration, the HTTP surface and restart survival.
// =============================================================================

// seedLegacyDB writes a legacy history blob into the generic store table of
// a fresh legacy database, the way the old host persisted it.
func seedLegacyDB(t *testing.T, path, blob string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS store (key TEXT PRIMARY KEY, value TEXT NOT NULL)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO store (key, value) VALUES (?, ?)", migrate.LegacyHistoryKey, blob); err != nil {
		t.Fatal(err)
	}
}

func TestE2E_MigrateThenServe(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "store.db")
	messagesPath := filepath.Join(dir, "messages.db")
	keychainPath := filepath.Join(dir, "keychain.db")

	seedLegacyDB(t, legacyPath,
		`[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"},{"role":"user","content":"how are you"}]`)

	messages, err := storage.NewMessageStore(messagesPath)
	if err != nil {
		t.Fatal(err)
	}
	keychain, err := storage.NewKeychain(keychainPath)
	if err != nil {
		t.Fatal(err)
	}
	log := observability.NewNopLogger()

	// Migrate the legacy blob, twice: the second run must be a no-op.
	m, err := migrate.New(legacyPath, messages, log)
	if err != nil {
		t.Fatal(err)
	}
	migrated, err := m.Migrate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if migrated != 3 {
		t.Fatalf("migrated = %d, want 3", migrated)
	}
	migrated, err = m.Migrate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if migrated != 0 {
		t.Fatalf("second migrate = %d, want 0", migrated)
	}

	report, err := m.Verify(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK || report.LegacyCount != 3 || report.StoreCount != 3 {
		t.Fatalf("report = %+v", report)
	}
	m.Close()

	// Drive the HTTP surface over the migrated stores.
	srv := api.New("127.0.0.1:0", 100, "", messages, keychain, log, observability.NewMetricsCollector())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/messages", "application/json",
		bytes.NewReader([]byte(`{"role":"assistant","content":"fine, thanks"}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("append status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats storage.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.ByRole["user"] != 2 || stats.ByRole["assistant"] != 2 {
		t.Errorf("ByRole = %v", stats.ByRole)
	}

	// Keychain round trip through the API.
	put, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/keychain/mood",
		bytes.NewReader([]byte(`{"value":"good"}`)))
	resp, err = http.DefaultClient.Do(put)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("keychain put status = %d", resp.StatusCode)
	}

	messages.Close()
	keychain.Close()

	// Everything must survive a restart.
	messages2, err := storage.NewMessageStore(messagesPath)
	if err != nil {
		t.Fatal(err)
	}
	defer messages2.Close()
	count, err := messages2.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("Count after reopen = %d, want 4", count)
	}

	msgs, err := messages2.List(context.Background(), 10, storage.DefaultSession)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}
	if msgs[0].Content != "hi" || msgs[1].Content != "hello" {
		t.Errorf("migration order lost: %q, %q", msgs[0].Content, msgs[1].Content)
	}

	keychain2, err := storage.NewKeychain(keychainPath)
	if err != nil {
		t.Fatal(err)
	}
	defer keychain2.Close()
	if got := keychain2.Get(context.Background(), "mood", ""); got != "good" {
		t.Errorf("mood after reopen = %q, want good", got)
	}
}
