package model

import "time"

// ViolationKind names the policy rule class a denied event violated.
type ViolationKind string

const (
	OriginNotAllowed      ViolationKind = "OriginNotAllowed"
	MalformedTarget       ViolationKind = "MalformedTarget"
	SingleWindowViolation ViolationKind = "SingleWindowViolation"
	CapabilityNotGranted  ViolationKind = "CapabilityNotGranted"
	DeepLinkSpoofAttempt  ViolationKind = "DeepLinkSpoofAttempt"
	WindowClosedMidExam   ViolationKind = "WindowClosedMidExam"
	IntegrityViolation    ViolationKind = "PolicyIntegrityViolation"
	SessionTerminated     ViolationKind = "SessionTerminated"
)

// Severity splits violations into those that block a single request and
// keep the session alive (soft) and those that force termination (hard).
type Severity string

const (
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

// SeverityFor returns the base severity for a violation kind. Integrity
// failures and the disappearance of the exam window cannot be recovered
// from; everything else blocks the single request.
func SeverityFor(kind ViolationKind) Severity {
	switch kind {
	case IntegrityViolation, WindowClosedMidExam:
		return SeverityHard
	default:
		return SeveritySoft
	}
}

// Escalatable reports whether repeated violations of this kind within the
// configured window escalate the session to Terminated. Post-termination
// denials do not escalate anything — the session is already dead.
func Escalatable(kind ViolationKind) bool {
	switch kind {
	case SessionTerminated:
		return false
	default:
		return true
	}
}

// ViolationRecord is one entry in the append-only audit trail. Records are
// never mutated or deleted once written and are persisted to external
// storage at session end.
type ViolationRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"ts"`
	Kind      ViolationKind `json:"kind"`
	Target    string        `json:"requested_target"`
	Rule      string        `json:"policy_rule"`
	Severity  Severity      `json:"severity"`
	Reason    string        `json:"reason"`
}
