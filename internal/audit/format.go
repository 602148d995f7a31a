package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Trail as a human-readable text timeline for
// proctor review.
func FormatTimeline(trail *Trail) string {
	if len(trail.Entries) == 0 {
		return fmt.Sprintf("Session: %s | No violations recorded.\n", orAll(trail.SessionID))
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("Session: %s | %s–%s UTC\n",
		orAll(trail.SessionID),
		formatDateRange(trail.Summary.FirstTimestamp),
		formatTimeOnly(trail.Summary.LastTimestamp)))
	b.WriteString(separator + "\n")

	for _, e := range trail.Entries {
		b.WriteString(fmt.Sprintf("%-10s %-5s %-25s %-40s %s\n",
			formatTimeOnly(e.Timestamp),
			strings.ToUpper(e.Severity),
			truncate(e.Kind, 25),
			truncate(e.Target, 40),
			e.Rule))
	}

	b.WriteString(separator + "\n")
	b.WriteString(fmt.Sprintf("%d violation(s): %d soft, %d hard\n",
		trail.Summary.Total, trail.Summary.SoftCount, trail.Summary.HardCount))

	return b.String()
}

// FormatJSON renders a Trail as indented JSON.
func FormatJSON(trail *Trail) (string, error) {
	data, err := json.MarshalIndent(trail, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trail: %w", err)
	}
	return string(data), nil
}

func orAll(sessionID string) string {
	if sessionID == "" {
		return "(all)"
	}
	return sessionID
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
