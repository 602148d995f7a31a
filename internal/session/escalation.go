package session

import (
	"time"

	"github.com/understandly/lockdownd/internal/policy"
)

// escalation is a sliding-window counter over escalatable violations.
// Reaching the threshold inside the window forces termination.
type escalation struct {
	threshold int
	window    time.Duration
	hits      []time.Time
}

func newEscalation(cfg policy.Escalation) *escalation {
	return &escalation{threshold: cfg.Threshold, window: cfg.Window}
}

// record registers a violation at now and reports whether the threshold
// has been reached within the window.
func (e *escalation) record(now time.Time) bool {
	cutoff := now.Add(-e.window)
	kept := e.hits[:0]
	for _, t := range e.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.hits = append(kept, now)
	return len(e.hits) >= e.threshold
}
