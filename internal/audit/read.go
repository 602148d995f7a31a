package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Summary holds violation counts and metadata for one session's trail.
type Summary struct {
	Total          int    `json:"total"`
	SoftCount      int    `json:"soft_count"`
	HardCount      int    `json:"hard_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// Trail holds the filtered entries and summary for one session.
type Trail struct {
	SessionID string  `json:"session_id"`
	Entries   []Entry `json:"entries"`
	Summary   Summary `json:"summary"`
}

// ReadSession reads a JSONL violation log and collects the entries for
// the given session ID. Empty sessionID collects everything.
func ReadSession(path, sessionID string) (*Trail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	defer f.Close()

	trail := &Trail{SessionID: sessionID, Entries: []Entry{}}

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("audit: parse line %d: %w", lineNum, err)
		}
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}
		trail.Entries = append(trail.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan: %w", err)
	}

	trail.Summary = summarize(trail.Entries)
	return trail, nil
}

func summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries)}
	for i, e := range entries {
		switch e.Severity {
		case "hard":
			s.HardCount++
		default:
			s.SoftCount++
		}
		if i == 0 {
			s.FirstTimestamp = e.Timestamp
		}
		s.LastTimestamp = e.Timestamp
	}
	return s
}
