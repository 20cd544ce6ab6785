package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chatlog/chatlog/internal/storage"
)

func keychainUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  %s keychain get <key>
  %s keychain set <key> <value>
  %s keychain delete <key>
  %s keychain keys
  %s keychain clear

`, appName, appName, appName, appName, appName)
}

func runKeychain(args []string) {
	if len(args) == 0 {
		keychainUsage()
		os.Exit(1)
	}

	a, err := bootstrap()
	if err != nil {
		die(err)
	}
	defer a.close()

	ctx := context.Background()

	switch args[0] {
	case "get":
		if len(args) != 2 {
			keychainUsage()
			os.Exit(1)
		}
		value, err := a.keychain.Lookup(ctx, args[1])
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "%s: key %q not found\n", appName, args[1])
			os.Exit(1)
		}
		if err != nil {
			die(err)
		}
		fmt.Println(value)

	case "set":
		if len(args) != 3 {
			keychainUsage()
			os.Exit(1)
		}
		if err := a.keychain.Set(ctx, args[1], args[2]); err != nil {
			die(err)
		}

	case "delete":
		if len(args) != 2 {
			keychainUsage()
			os.Exit(1)
		}
		err := a.keychain.Delete(ctx, args[1])
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "%s: key %q not found\n", appName, args[1])
			os.Exit(1)
		}
		if err != nil {
			die(err)
		}

	case "keys":
		keys, err := a.keychain.Keys(ctx)
		if err != nil {
			die(err)
		}
		for _, key := range keys {
			fmt.Println(key)
		}

	case "clear":
		removed, err := a.keychain.Clear(ctx)
		if err != nil {
			die(err)
		}
		fmt.Printf("removed %d key(s)\n", removed)

	default:
		fmt.Fprintf(os.Stderr, "unknown keychain command: %s\n\n", args[0])
		keychainUsage()
		os.Exit(1)
	}
}
