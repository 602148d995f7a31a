package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/understandly/lockdownd/internal/model"
)

// Store persists violation records to SQLite at session end. The JSONL
// chain is the live single-writer trail; the store is the durable
// external copy handed to reporting.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS violations (
	record_id   TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	ts          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	target      TEXT NOT NULL,
	rule        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	reason      TEXT NOT NULL,
	policy_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_violations_session ON violations(session_id);
`

// OpenStore opens (or creates) the SQLite violation store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// FlushSession writes a session's violation records in one transaction.
// Re-flushing the same records is a no-op (record IDs are primary keys).
func (s *Store) FlushSession(ctx context.Context, sessionID, policyHash string, records []model.ViolationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: begin flush: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO violations
		(record_id, session_id, ts, kind, target, rule, severity, reason, policy_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("audit: prepare flush: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, sessionID, r.Timestamp.UTC().Format(TimestampFormat),
			string(r.Kind), r.Target, r.Rule, string(r.Severity), r.Reason, policyHash)
		if err != nil {
			return fmt.Errorf("audit: insert record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// CountSession returns the number of persisted records for a session.
func (s *Store) CountSession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violations WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("audit: count session: %w", err)
	}
	return n, nil
}

// ImportTrail persists every entry of a JSONL trail. Used by the CLI to
// export a finished log into the durable store.
func (s *Store) ImportTrail(ctx context.Context, trail *Trail) (int, error) {
	records := make([]model.ViolationRecord, 0, len(trail.Entries))
	bySession := map[string][]model.ViolationRecord{}
	hashes := map[string]string{}
	for _, e := range trail.Entries {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("audit: entry %s has malformed timestamp %q: %w", e.RecordID, e.Timestamp, err)
		}
		r := model.ViolationRecord{
			ID:        e.RecordID,
			Timestamp: ts,
			Kind:      model.ViolationKind(e.Kind),
			Target:    e.Target,
			Rule:      e.Rule,
			Severity:  model.Severity(e.Severity),
			Reason:    e.Reason,
		}
		bySession[e.SessionID] = append(bySession[e.SessionID], r)
		hashes[e.SessionID] = e.PolicyHash
		records = append(records, r)
	}
	for sessionID, recs := range bySession {
		if err := s.FlushSession(ctx, sessionID, hashes[sessionID], recs); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
