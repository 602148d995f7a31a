package audit

import (
	"github.com/understandly/lockdownd/internal/model"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the hash-chained JSONL violation log. All fields
// are flat scalars to guarantee deterministic json.Marshal field order
// for reproducible hashing.
type Entry struct {
	Timestamp  string `json:"ts"`
	SessionID  string `json:"session_id"`
	RecordID   string `json:"record_id"`
	Kind       string `json:"kind"`
	Target     string `json:"requested_target"`
	Rule       string `json:"policy_rule"`
	Severity   string `json:"severity"`
	Reason     string `json:"reason"`
	PolicyHash string `json:"policy_hash"`
	PrevHash   string `json:"prev_hash"`
}

// FromRecord flattens a ViolationRecord into a log entry.
func FromRecord(sessionID, policyHash string, r model.ViolationRecord) Entry {
	return Entry{
		Timestamp:  r.Timestamp.UTC().Format(TimestampFormat),
		SessionID:  sessionID,
		RecordID:   r.ID,
		Kind:       string(r.Kind),
		Target:     r.Target,
		Rule:       r.Rule,
		Severity:   string(r.Severity),
		Reason:     r.Reason,
		PolicyHash: policyHash,
	}
}
