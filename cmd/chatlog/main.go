// Package main is the entry point for the chatlog tool.
//
// Usage:
//
//	chatlog serve              — run the local HTTP API
//	chatlog migrate            — move legacy blob history into the message store
//	chatlog verify             — compare legacy and store row counts
//	chatlog stats              — print message store statistics
//	chatlog keychain <cmd>     — keychain operations (get/set/delete/keys/clear)
//	chatlog version            — print version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/chatlog/chatlog/internal/api"
	"github.com/chatlog/chatlog/internal/config"
	"github.com/chatlog/chatlog/internal/migrate"
	"github.com/chatlog/chatlog/internal/observability"
	"github.com/chatlog/chatlog/internal/storage"
)

const (
	version = "0.1.0"
	appName = "chatlog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Optional .env; system environment still wins when absent.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	case "verify":
		runVerify()
	case "stats":
		runStats()
	case "keychain":
		runKeychain(os.Args[2:])
	case "version":
		fmt.Printf("%s v%s\n", appName, version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s v%s — local-first conversation log and keychain

Usage:
  %s <command>

Commands:
  serve      Run the local HTTP API
  migrate    Move legacy blob history into the message store
  verify     Compare legacy and store row counts
  stats      Print message store statistics
  keychain   Keychain operations: get, set, delete, keys, clear
  version    Print version

Environment variables:
  CHATLOG_DATA        Data directory (default: ~/.chatlog)
  CHATLOG_API_ADDR    API listen address (default: 127.0.0.1:8600)
  CHATLOG_SESSION     Default session id (default: default)
  CHATLOG_LIST_LIMIT  Default message list bound (default: 100)
  CHATLOG_LOG_LEVEL   debug, info, warn or error (default: info)

`, appName, version, appName)
}

// app bundles the constructed subsystems for one command invocation.
type app struct {
	cfg      config.Config
	log      *observability.Logger
	metrics  *observability.MetricsCollector
	messages *storage.MessageStore
	keychain *storage.Keychain
}

// bootstrap loads configuration and opens both stores.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	log := observability.NewLogger(appName, cfg.LogLevel)

	messages, err := storage.NewMessageStore(cfg.MessagesDBPath())
	if err != nil {
		return nil, err
	}

	keychain, err := storage.NewKeychain(cfg.KeychainDBPath())
	if err != nil {
		messages.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		metrics:  observability.NewMetricsCollector(),
		messages: messages,
		keychain: keychain,
	}, nil
}

func (a *app) close() {
	a.messages.Close()
	a.keychain.Close()
	a.log.Sync()
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
	os.Exit(1)
}

func runServe() {
	a, err := bootstrap()
	if err != nil {
		die(err)
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(a.cfg.APIAddr, a.cfg.ListLimit, a.cfg.DefaultSession, a.messages, a.keychain, a.log.Named("api"), a.metrics)
	if err := srv.Run(ctx); err != nil {
		die(err)
	}
}

func runMigrate() {
	a, err := bootstrap()
	if err != nil {
		die(err)
	}
	defer a.close()

	m, err := migrate.New(a.cfg.LegacyDBPath(), a.messages, a.log.Named("migrate"))
	if err != nil {
		die(err)
	}
	defer m.Close()

	migrated, err := m.Migrate(context.Background())
	if err != nil {
		die(err)
	}
	a.metrics.IncrementBy(observability.CounterMigrated, int64(migrated))
	fmt.Printf("migrated %d message(s)\n", migrated)
}

func runVerify() {
	a, err := bootstrap()
	if err != nil {
		die(err)
	}
	defer a.close()

	m, err := migrate.New(a.cfg.LegacyDBPath(), a.messages, a.log.Named("migrate"))
	if err != nil {
		die(err)
	}
	defer m.Close()

	report, err := m.Verify(context.Background())
	if err != nil {
		die(err)
	}
	fmt.Print(formatReport(report))
	if !report.OK {
		os.Exit(1)
	}
}

func runStats() {
	a, err := bootstrap()
	if err != nil {
		die(err)
	}
	defer a.close()

	stats, err := a.messages.Stats(context.Background())
	if err != nil {
		die(err)
	}
	fmt.Print(formatStats(stats))
}
