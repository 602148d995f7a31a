package session

import "github.com/understandly/lockdownd/internal/model"

// Events are serialized through the controller's dispatch loop even when
// their origins (renderer, OS shell, bridge) are concurrent, so no two
// guard evaluations can interleave and produce inconsistent state.

type navigationEvent struct {
	url  string
	kind model.RequestKind
}

type windowRequestEvent struct {
	caps []model.Capability
}

type windowClosedEvent struct {
	handle model.Handle
}

type activationEvent struct {
	uri string
}

type exitRequestEvent struct{}

type integrityEvent struct {
	detail string
	target string
}

// response is what a blocked caller receives once its event has been
// resolved. There is no provisional allow and no cancellation path: the
// decision completes before control returns.
type response struct {
	verdict model.Verdict
	handle  model.Handle
}

type envelope struct {
	ev    any
	reply chan response
}
