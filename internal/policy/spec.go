package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/understandly/lockdownd/internal/model"
)

// ConfigError marks a malformed or missing policy document. It is fatal:
// a session whose policy fails to load never reaches Active, and never
// starts partially permissive.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "policy config: " + e.Reason
	}
	return fmt.Sprintf("policy config: %s: %s", e.Field, e.Reason)
}

// Escalation bounds repeated violations. Threshold violations of
// escalatable kinds inside Window force the session to Terminated.
type Escalation struct {
	Threshold int
	Window    time.Duration
}

// DefaultEscalation matches the shipped policy template.
var DefaultEscalation = Escalation{Threshold: 3, Window: 30 * time.Second}

// Spec is the immutable, validated security policy. It is constructed
// once at session start and exposes no setter surface; collection
// accessors return copies.
type Spec struct {
	origins    []OriginPattern
	scheme     string
	headers    map[string]string
	granted    map[model.Capability]bool
	directives map[string][]string
	escalation Escalation
	window     model.WindowOptions
	hash       string
}

// rawSpec is the wire shape of the policy document. Unknown keys are
// ignored; missing required keys fail load.
type rawSpec struct {
	AllowedOrigins      []string            `yaml:"allowed_origins"`
	AllowedScheme       string              `yaml:"allowed_scheme"`
	RequiredHeaders     map[string]string   `yaml:"required_headers"`
	GrantedCapabilities []string            `yaml:"granted_capabilities"`
	ContentDirectives   map[string]string   `yaml:"content_directives"`
	Escalation          rawEscalation       `yaml:"escalation"`
	Window              model.WindowOptions `yaml:"window"`
}

type rawEscalation struct {
	Threshold int    `yaml:"threshold"`
	Window    string `yaml:"window"`
}

// Isolation headers that must be pinned on every rendered response.
const (
	HeaderCOOP = "Cross-Origin-Opener-Policy"
	HeaderCOEP = "Cross-Origin-Embedder-Policy"
)

var directiveNameRe = regexp.MustCompile(`^[a-z][a-z-]*$`)

// Load reads and validates a policy document, honoring ctx for the
// startup budget. A timeout is a ConfigError, never an implicit
// permissive default.
func Load(ctx context.Context, path string) (*Spec, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("load %s: %v", path, err)}
	}

	type result struct {
		spec *Spec
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(path)
		if err != nil {
			ch <- result{nil, &ConfigError{Reason: fmt.Sprintf("read %s: %v", path, err)}}
			return
		}
		spec, err := Parse(data)
		ch <- result{spec, err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ConfigError{Reason: fmt.Sprintf("load %s: %v", path, ctx.Err())}
	case r := <-ch:
		return r.spec, r.err
	}
}

// Parse validates a raw policy document and builds an immutable Spec.
// Pure parse+validate: no side effects. Parsing the same bytes twice
// yields structurally equal specs.
func Parse(data []byte) (*Spec, error) {
	var raw rawSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse: %v", err)}
	}

	if len(raw.AllowedOrigins) == 0 {
		return nil, &ConfigError{Field: "allowed_origins", Reason: "must not be empty"}
	}
	origins := make([]OriginPattern, 0, len(raw.AllowedOrigins))
	for _, s := range raw.AllowedOrigins {
		p, err := ParseOriginPattern(s)
		if err != nil {
			return nil, &ConfigError{Field: "allowed_origins", Reason: err.Error()}
		}
		origins = append(origins, p)
	}

	scheme := strings.TrimSpace(raw.AllowedScheme)
	if scheme == "" {
		return nil, &ConfigError{Field: "allowed_scheme", Reason: "missing"}
	}
	if !schemeRe.MatchString(scheme) {
		return nil, &ConfigError{Field: "allowed_scheme", Reason: fmt.Sprintf("%q does not match [a-z][a-z0-9+.-]*", scheme)}
	}

	headers := make(map[string]string, len(raw.RequiredHeaders))
	for k, v := range raw.RequiredHeaders {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return nil, &ConfigError{Field: "required_headers", Reason: "header names and values must be non-empty"}
		}
		headers[k] = v
	}
	for _, required := range []string{HeaderCOOP, HeaderCOEP} {
		if _, ok := headers[required]; !ok {
			return nil, &ConfigError{Field: "required_headers", Reason: required + " is required"}
		}
	}

	granted := make(map[model.Capability]bool, len(raw.GrantedCapabilities))
	for _, s := range raw.GrantedCapabilities {
		if strings.Contains(s, "*") {
			return nil, &ConfigError{Field: "granted_capabilities", Reason: fmt.Sprintf("wildcard grant %q is not allowed", s)}
		}
		c, err := model.ParseCapability(s)
		if err != nil {
			return nil, &ConfigError{Field: "granted_capabilities", Reason: err.Error()}
		}
		granted[c] = true
	}

	directives := make(map[string][]string, len(raw.ContentDirectives))
	for name, sources := range raw.ContentDirectives {
		if !directiveNameRe.MatchString(name) {
			return nil, &ConfigError{Field: "content_directives", Reason: fmt.Sprintf("malformed directive name %q", name)}
		}
		tokens := strings.Fields(sources)
		if len(tokens) == 0 {
			return nil, &ConfigError{Field: "content_directives", Reason: fmt.Sprintf("directive %q has no source expressions", name)}
		}
		for _, tok := range tokens {
			if err := validateSourceExpression(tok); err != nil {
				return nil, &ConfigError{Field: "content_directives", Reason: fmt.Sprintf("directive %q: %v", name, err)}
			}
		}
		directives[name] = tokens
	}

	esc := DefaultEscalation
	if raw.Escalation.Threshold != 0 {
		if raw.Escalation.Threshold < 1 {
			return nil, &ConfigError{Field: "escalation.threshold", Reason: "must be >= 1"}
		}
		esc.Threshold = raw.Escalation.Threshold
	}
	if raw.Escalation.Window != "" {
		d, err := time.ParseDuration(raw.Escalation.Window)
		if err != nil || d <= 0 {
			return nil, &ConfigError{Field: "escalation.window", Reason: fmt.Sprintf("invalid duration %q", raw.Escalation.Window)}
		}
		esc.Window = d
	}

	h := sha256.Sum256(data)

	return &Spec{
		origins:    origins,
		scheme:     scheme,
		headers:    headers,
		granted:    granted,
		directives: directives,
		escalation: esc,
		window:     raw.Window,
		hash:       "sha256:" + hex.EncodeToString(h[:]),
	}, nil
}

// validateSourceExpression checks a single content-security source token.
// Accepted: quoted keywords, scheme: sources, and host sources. Tokens
// that could smuggle delimiters into a serialized header are rejected.
func validateSourceExpression(tok string) error {
	if strings.ContainsAny(tok, ";,\"<>") {
		return fmt.Errorf("malformed source expression %q", tok)
	}
	if strings.HasPrefix(tok, "'") {
		switch tok {
		case "'self'", "'none'", "'unsafe-inline'", "'unsafe-eval'", "'strict-dynamic'":
			return nil
		default:
			if strings.HasPrefix(tok, "'nonce-") || strings.HasPrefix(tok, "'sha256-") ||
				strings.HasPrefix(tok, "'sha384-") || strings.HasPrefix(tok, "'sha512-") {
				if strings.HasSuffix(tok, "'") && len(tok) > 2 {
					return nil
				}
			}
			return fmt.Errorf("unknown keyword source %q", tok)
		}
	}
	return nil
}

// AllowedScheme returns the registered custom activation scheme.
func (s *Spec) AllowedScheme() string { return s.scheme }

// Hash returns "sha256:<hex>" of the raw policy document bytes.
func (s *Spec) Hash() string { return s.hash }

// Escalation returns the violation escalation bounds.
func (s *Spec) Escalation() Escalation { return s.escalation }

// Window returns the pinned window chrome options.
func (s *Spec) Window() model.WindowOptions { return s.window }

// Origins returns a copy of the origin allowlist.
func (s *Spec) Origins() []OriginPattern {
	out := make([]OriginPattern, len(s.origins))
	copy(out, s.origins)
	return out
}

// MatchOrigin returns the first pattern containing u. Matching is a
// deterministic set-membership test; there is no precedence ordering.
func (s *Spec) MatchOrigin(u *url.URL) (OriginPattern, bool) {
	for _, p := range s.origins {
		if p.Match(u) {
			return p, true
		}
	}
	return OriginPattern{}, false
}

// BaseOrigin returns the first http(s) origin in the allowlist, the
// trusted base the exam content loads from and deep-link payloads are
// rewritten onto.
func (s *Spec) BaseOrigin() string {
	for _, p := range s.origins {
		if (p.Scheme == "https" || p.Scheme == "http") && !p.Wildcard {
			return p.String()
		}
	}
	return ""
}

// Granted reports whether a capability is explicitly granted.
func (s *Spec) Granted(c model.Capability) bool { return s.granted[c] }

// GrantedCapabilities returns the sorted grant set.
func (s *Spec) GrantedCapabilities() []model.Capability {
	out := make([]model.Capability, 0, len(s.granted))
	for c := range s.granted {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RequiredHeaders returns a copy of the response header requirements.
func (s *Spec) RequiredHeaders() map[string]string {
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

// ContentDirectives returns a copy of the content-security directives.
func (s *Spec) ContentDirectives() map[string][]string {
	out := make(map[string][]string, len(s.directives))
	for name, tokens := range s.directives {
		cp := make([]string, len(tokens))
		copy(cp, tokens)
		out[name] = cp
	}
	return out
}
