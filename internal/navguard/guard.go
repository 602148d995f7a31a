// Package navguard validates navigation and network fetch requests
// against the policy origin allowlist. Decisions are synchronous and
// touch only in-memory policy state — a boundary that could be bypassed
// by a slow confirmation path is not a boundary.
package navguard

import (
	"fmt"
	"net/url"

	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/policy"
)

// Guard evaluates requested URLs against the origin allowlist.
type Guard struct {
	spec *policy.Spec
}

// New creates a Guard bound to an immutable policy spec.
func New(spec *policy.Spec) *Guard {
	return &Guard{spec: spec}
}

// Evaluate returns Allow iff the URL's scheme+host(+path) exactly matches
// one allowlisted pattern, or the request is ipc-local. Denials carry the
// requested target and the rule violated for audit purposes.
func (g *Guard) Evaluate(rawURL string, kind model.RequestKind) model.Verdict {
	// Loopback channel to the host application never leaves the machine.
	if kind == model.KindIPC {
		return model.Allowed(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return model.Denied(model.MalformedTarget, rawURL, "origin.allowlist",
			fmt.Sprintf("unparseable %s target", kind))
	}

	if _, ok := g.spec.MatchOrigin(u); ok {
		return model.Allowed(rawURL)
	}

	return model.Denied(model.OriginNotAllowed, rawURL, "origin.allowlist",
		fmt.Sprintf("%s target does not match any allowed origin", kind))
}
