// Package deeplink authenticates inbound OS activations via the
// registered custom scheme. Any process on the machine can invoke the
// scheme, so the payload is untrusted input: it is parsed into structured
// data and handed off, never executed.
package deeplink

import (
	"net/url"
	"strings"

	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/policy"
)

// Payload is the structured data extracted from a valid activation URI.
type Payload struct {
	Host  string
	Path  string
	Query string
}

// Validator checks activation URIs against the allowed scheme.
type Validator struct {
	spec *policy.Spec
}

// New creates a Validator bound to an immutable policy spec.
func New(spec *policy.Spec) *Validator {
	return &Validator{spec: spec}
}

// Validate parses an activation URI. The scheme must exactly equal the
// allowed scheme and the remainder must parse as a well-formed payload;
// everything else is a spoof attempt.
func (v *Validator) Validate(activationURI string) (Payload, model.Verdict) {
	u, err := url.Parse(activationURI)
	if err != nil {
		return Payload{}, model.Denied(model.DeepLinkSpoofAttempt, activationURI, "deeplink.scheme",
			"malformed activation URI")
	}

	if u.Scheme != v.spec.AllowedScheme() {
		return Payload{}, model.Denied(model.DeepLinkSpoofAttempt, activationURI, "deeplink.scheme",
			"activation scheme does not match the registered scheme")
	}

	if u.User != nil {
		return Payload{}, model.Denied(model.DeepLinkSpoofAttempt, activationURI, "deeplink.payload",
			"activation payload must not carry userinfo")
	}

	p := Payload{
		Host:  strings.TrimPrefix(u.Host, "/"),
		Path:  strings.TrimPrefix(u.Path, "/"),
		Query: u.RawQuery,
	}
	return p, model.Allowed(activationURI)
}

// Target rewrites the payload onto the trusted base origin. The
// activation understandly-lockdown://exam/42?t=abc against base
// https://understandly.com yields https://understandly.com/exam/42?t=abc.
// The controller re-validates the result through the navigation guard
// before forwarding it to the renderer.
func (p Payload) Target(base string) string {
	target := strings.TrimRight(base, "/")
	if p.Host != "" {
		target += "/" + p.Host
	}
	if p.Path != "" {
		target += "/" + p.Path
	}
	if p.Query != "" {
		target += "?" + p.Query
	}
	return target
}
