package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chatlog/chatlog/internal/migrate"
	"github.com/chatlog/chatlog/internal/storage"
)

// formatStats renders store statistics for terminal output.
func formatStats(stats storage.Stats) string {
	var b strings.Builder

	fmt.Fprintf(&b, "total messages: %d\n", stats.Total)

	fmt.Fprintln(&b, "by role:")
	for _, role := range sortedKeys(stats.ByRole) {
		fmt.Fprintf(&b, "  %-10s %d\n", role, stats.ByRole[role])
	}

	fmt.Fprintln(&b, "by session:")
	for _, session := range sortedKeys(stats.BySession) {
		fmt.Fprintf(&b, "  %-10s %d\n", session, stats.BySession[session])
	}

	if stats.Last != nil {
		fmt.Fprintf(&b, "last message: [%s] %s: %s\n",
			stats.Last.Timestamp.Format(time.RFC3339),
			stats.Last.Role,
			stats.Last.Content,
		)
	}
	return b.String()
}

// formatReport renders a migration verification report.
func formatReport(report migrate.Report) string {
	status := "OK"
	if !report.OK {
		status = "MISMATCH"
	}
	return fmt.Sprintf("verification: %s\nlegacy count: %d\nstore count:  %d\n",
		status, report.LegacyCount, report.StoreCount)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
