package policy

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var schemeRe = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// OriginPattern matches a trusted content source by scheme + host
// (+ optional path prefix). Host matching is exact or explicit
// "*."-suffix wildcard only — no implicit subdomain matching, so a grant
// for understandly.com never silently covers evil.understandly.com.attacker.net
// or even sub.understandly.com.
type OriginPattern struct {
	Scheme     string
	Host       string // lowercased; without the "*." prefix when wildcard
	PathPrefix string // empty or starts with "/"
	Wildcard   bool   // explicit "*." host suffix match
}

// ParseOriginPattern parses a pattern of the form
// scheme://host[/path-prefix] with an optional explicit *. host wildcard.
func ParseOriginPattern(s string) (OriginPattern, error) {
	if strings.TrimSpace(s) == "" {
		return OriginPattern{}, fmt.Errorf("empty origin pattern")
	}
	if s == "*" {
		return OriginPattern{}, fmt.Errorf("wildcard origin %q is not allowed", s)
	}

	u, err := url.Parse(s)
	if err != nil {
		return OriginPattern{}, fmt.Errorf("invalid origin pattern %q: %w", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return OriginPattern{}, fmt.Errorf("origin pattern %q must include scheme and host", s)
	}
	if !schemeRe.MatchString(u.Scheme) {
		return OriginPattern{}, fmt.Errorf("origin pattern %q has invalid scheme %q", s, u.Scheme)
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return OriginPattern{}, fmt.Errorf("origin pattern %q must not carry userinfo, query, or fragment", s)
	}

	host := strings.ToLower(u.Host)
	wildcard := false
	if strings.HasPrefix(host, "*.") {
		wildcard = true
		host = host[2:]
		if host == "" || strings.Contains(host, "*") {
			return OriginPattern{}, fmt.Errorf("origin pattern %q has malformed wildcard host", s)
		}
	} else if strings.Contains(host, "*") {
		return OriginPattern{}, fmt.Errorf("origin pattern %q: wildcard only allowed as explicit \"*.\" host prefix", s)
	}

	prefix := u.Path
	if prefix != "" {
		prefix = path.Clean(prefix)
		if prefix == "/" || prefix == "." {
			prefix = ""
		}
	}

	return OriginPattern{
		Scheme:     u.Scheme,
		Host:       host,
		PathPrefix: prefix,
		Wildcard:   wildcard,
	}, nil
}

// Match reports whether the parsed URL falls inside this pattern.
// Scheme and host must match exactly (wildcard hosts match one or more
// leading labels); the URL path must sit under the path prefix.
func (p OriginPattern) Match(u *url.URL) bool {
	if u == nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, p.Scheme) {
		return false
	}

	host := strings.ToLower(u.Host)
	if p.Wildcard {
		if !strings.HasSuffix(host, "."+p.Host) {
			return false
		}
	} else if host != p.Host {
		return false
	}

	if p.PathPrefix == "" {
		return true
	}
	// Dot segments would let a request escape the granted prefix, so the
	// path is resolved before the containment check.
	reqPath := u.Path
	if reqPath == "" {
		reqPath = "/"
	}
	reqPath = path.Clean(reqPath)
	if reqPath == p.PathPrefix {
		return true
	}
	return strings.HasPrefix(reqPath, p.PathPrefix+"/")
}

// String renders the pattern back to its canonical scheme://host/prefix form.
func (p OriginPattern) String() string {
	host := p.Host
	if p.Wildcard {
		host = "*." + host
	}
	return p.Scheme + "://" + host + p.PathPrefix
}
