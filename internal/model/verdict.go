package model

import "fmt"

// Decision is the outcome of a guard evaluation.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// RequestKind classifies an intercepted request.
type RequestKind string

const (
	KindNavigation  RequestKind = "navigation"
	KindSubresource RequestKind = "subresource"
	KindWebsocket   RequestKind = "websocket"
	// KindIPC is the loopback channel to the host application. It never
	// leaves the machine and is allowed unconditionally.
	KindIPC RequestKind = "ipc"
)

// ParseRequestKind maps a string to a RequestKind. Unknown kinds are
// rejected rather than defaulted — fail closed.
func ParseRequestKind(s string) (RequestKind, error) {
	switch RequestKind(s) {
	case KindNavigation, KindSubresource, KindWebsocket, KindIPC:
		return RequestKind(s), nil
	default:
		return "", fmt.Errorf("unknown request kind %q", s)
	}
}

// Verdict is the typed result of a guard evaluation. Guards never abort
// the process; they return a Verdict consumed by the session controller.
type Verdict struct {
	Decision Decision      `json:"decision"`
	Kind     ViolationKind `json:"kind,omitempty"`
	Target   string        `json:"target,omitempty"`
	Rule     string        `json:"rule,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// OK reports whether the verdict permits the event.
func (v Verdict) OK() bool {
	return v.Decision == Allow
}

// Allowed returns an allow verdict for the given target.
func Allowed(target string) Verdict {
	return Verdict{Decision: Allow, Target: target}
}

// Denied returns a deny verdict carrying the violated rule and the
// requested target for audit purposes.
func Denied(kind ViolationKind, target, rule, reason string) Verdict {
	return Verdict{
		Decision: Deny,
		Kind:     kind,
		Target:   target,
		Rule:     rule,
		Reason:   reason,
	}
}
