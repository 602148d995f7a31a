package deeplink

import (
	"testing"

	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/policy"
)

const policyDoc = `
allowed_origins: [https://understandly.com]
allowed_scheme: understandly-lockdown
required_headers:
  Cross-Origin-Opener-Policy: same-origin
  Cross-Origin-Embedder-Policy: require-corp
`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	spec, err := policy.Parse([]byte(policyDoc))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	return New(spec)
}

func TestValidActivationParses(t *testing.T) {
	v := newValidator(t)

	p, verdict := v.Validate("understandly-lockdown://exam/42?token=abc")
	if !verdict.OK() {
		t.Fatalf("valid activation denied: %+v", verdict)
	}
	if p.Host != "exam" || p.Path != "42" || p.Query != "token=abc" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestForeignSchemeIsSpoofAttempt(t *testing.T) {
	v := newValidator(t)

	for _, uri := range []string{
		"evil-scheme://exam/42",
		"https://understandly.com/exam/42",
		"understandly-lockdown2://exam",
	} {
		_, verdict := v.Validate(uri)
		if verdict.OK() {
			t.Errorf("Validate(%q) allowed, want deny", uri)
			continue
		}
		if verdict.Kind != model.DeepLinkSpoofAttempt {
			t.Errorf("Validate(%q) kind = %q", uri, verdict.Kind)
		}
		if verdict.Target != uri {
			t.Errorf("denial must carry the full URI, got %q", verdict.Target)
		}
	}
}

func TestUserinfoPayloadIsRejected(t *testing.T) {
	v := newValidator(t)

	_, verdict := v.Validate("understandly-lockdown://user:pw@exam/42")
	if verdict.OK() {
		t.Fatal("userinfo in activation payload should be denied")
	}
}

func TestTargetRewritesOntoBaseOrigin(t *testing.T) {
	v := newValidator(t)

	cases := []struct {
		uri  string
		want string
	}{
		{"understandly-lockdown://exam/42?t=abc", "https://understandly.com/exam/42?t=abc"},
		{"understandly-lockdown://exam", "https://understandly.com/exam"},
		{"understandly-lockdown://", "https://understandly.com"},
	}
	for _, c := range cases {
		p, verdict := v.Validate(c.uri)
		if !verdict.OK() {
			t.Fatalf("Validate(%q): %+v", c.uri, verdict)
		}
		if got := p.Target("https://understandly.com"); got != c.want {
			t.Errorf("Target(%q) = %q, want %q", c.uri, got, c.want)
		}
	}
}

func TestTargetCannotEscapeBaseOrigin(t *testing.T) {
	v := newValidator(t)

	// The payload is path data on the base origin, never a new authority.
	p, verdict := v.Validate("understandly-lockdown://evil.com/steal")
	if !verdict.OK() {
		t.Fatalf("structurally valid activation denied: %+v", verdict)
	}
	got := p.Target("https://understandly.com")
	if got != "https://understandly.com/evil.com/steal" {
		t.Fatalf("Target = %q", got)
	}
}
