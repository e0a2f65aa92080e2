package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pevans/newsgrab/archive"
	"github.com/pevans/newsgrab/history"
)

// printEntriesTable prints archived entries in human-readable form
func printEntriesTable(w io.Writer, result *archive.ListResult) {
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No stories downloaded.")
	}

	for _, entry := range result.Entries {
		fmt.Fprintf(w, "%s\n", truncate(entry.Title, 70))
		fmt.Fprintf(w, "   Fetched: %s | Status: %d | Size: %d bytes\n",
			entry.FetchedAt.Local().Format("2006-01-02 15:04"),
			entry.StatusCode,
			entry.Size,
		)
		fmt.Fprintf(w, "   URL: %s\n", entry.Link)
		fmt.Fprintf(w, "   Key: %s\n", entry.Key)
		fmt.Fprintln(w)
	}

	if len(result.Incomplete) > 0 {
		fmt.Fprintf(w, "%d incomplete (will be retried on next fetch):\n", len(result.Incomplete))
		for _, key := range result.Incomplete {
			fmt.Fprintf(w, "   %s\n", key)
		}
	}

	for _, readErr := range result.Errors {
		fmt.Fprintf(w, "Warning: %v\n", &readErr)
	}
}

// printAttemptsTable prints download attempts with a summary line
func printAttemptsTable(w io.Writer, attempts []history.Attempt, counts map[history.Outcome]int) {
	fmt.Fprintf(w, "Downloaded: %d | Skipped: %d | Failed: %d\n\n",
		counts[history.OutcomeDownloaded],
		counts[history.OutcomeSkipped],
		counts[history.OutcomeFailed],
	)

	if len(attempts) == 0 {
		fmt.Fprintln(w, "No attempts recorded.")
		return
	}

	fmt.Fprintf(w, "%-19s %-10s %-6s %s\n", "STARTED", "OUTCOME", "STATUS", "TITLE")
	for _, a := range attempts {
		status := "-"
		if a.StatusCode != 0 {
			status = fmt.Sprintf("%d", a.StatusCode)
		}

		fmt.Fprintf(w, "%-19s %-10s %-6s %s\n",
			a.StartedAt.Local().Format("2006-01-02 15:04:05"),
			a.Outcome,
			status,
			truncate(a.Title, 60),
		)
		if a.Error != nil {
			fmt.Fprintf(w, "%-37s %s\n", "", truncate(*a.Error, 80))
		}
	}
}

// printJSON prints v as indented JSON
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	fmt.Fprintln(w, string(data))
	return nil
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
