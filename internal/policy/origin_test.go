package policy

import (
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestParseOriginPatternRejectsBareWildcard(t *testing.T) {
	if _, err := ParseOriginPattern("*"); err == nil {
		t.Fatal("expected bare wildcard to be rejected")
	}
}

func TestParseOriginPatternRejectsMissingScheme(t *testing.T) {
	for _, s := range []string{"understandly.com", "//understandly.com", ""} {
		if _, err := ParseOriginPattern(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestParseOriginPatternRejectsEmbeddedWildcard(t *testing.T) {
	for _, s := range []string{"https://under*.com", "https://*", "https://*.*.com"} {
		if _, err := ParseOriginPattern(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestParseOriginPatternRejectsQueryAndUserinfo(t *testing.T) {
	for _, s := range []string{"https://understandly.com?x=1", "https://user@understandly.com", "https://understandly.com#frag"} {
		if _, err := ParseOriginPattern(s); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestExactHostMatch(t *testing.T) {
	p, err := ParseOriginPattern("https://understandly.com")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		url  string
		want bool
	}{
		{"https://understandly.com", true},
		{"https://understandly.com/exam/42", true},
		{"https://UNDERSTANDLY.COM/exam", true},
		{"http://understandly.com", false},       // scheme mismatch
		{"https://evil.com", false},
		{"https://sub.understandly.com", false},  // no implicit subdomains
		{"https://understandly.com.evil.com", false},
	}
	for _, c := range cases {
		if got := p.Match(mustURL(t, c.url)); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestWildcardHostMatchIsExplicitSuffixOnly(t *testing.T) {
	p, err := ParseOriginPattern("https://*.understandly.com")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		url  string
		want bool
	}{
		{"https://exam.understandly.com", true},
		{"https://a.b.understandly.com", true},
		{"https://understandly.com", false},           // bare apex not covered
		{"https://evilunderstandly.com", false},       // label boundary enforced
		{"https://understandly.com.evil.net", false},
	}
	for _, c := range cases {
		if got := p.Match(mustURL(t, c.url)); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestPathPrefixMatch(t *testing.T) {
	p, err := ParseOriginPattern("https://understandly.com/exam")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		url  string
		want bool
	}{
		{"https://understandly.com/exam", true},
		{"https://understandly.com/exam/42", true},
		{"https://understandly.com/examiner", false}, // prefix is path-segment bound
		{"https://understandly.com/", false},
		{"https://understandly.com/other", false},
	}
	for _, c := range cases {
		if got := p.Match(mustURL(t, c.url)); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestPathPrefixDotSegmentsCannotEscape(t *testing.T) {
	p, err := ParseOriginPattern("https://understandly.com/exam")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		url  string
		want bool
	}{
		{"https://understandly.com/exam/../admin/grades", false},
		{"https://understandly.com/exam/../../etc", false},
		{"https://understandly.com/exam/42/../../other", false},
		{"https://understandly.com/exam/../exam/42", true}, // resolves back inside
		{"https://understandly.com/exam/./42", true},
		{"https://understandly.com/exam/42/..", true}, // resolves to /exam
	}
	for _, c := range cases {
		if got := p.Match(mustURL(t, c.url)); got != c.want {
			t.Errorf("Match(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestParseOriginPatternCleansPrefix(t *testing.T) {
	p, err := ParseOriginPattern("https://understandly.com/exam/../exam")
	if err != nil {
		t.Fatal(err)
	}
	if p.PathPrefix != "/exam" {
		t.Fatalf("prefix = %q, want /exam", p.PathPrefix)
	}
}

func TestPatternStringRoundTrip(t *testing.T) {
	for _, s := range []string{"https://understandly.com", "https://*.understandly.com", "wss://understandly.com", "https://understandly.com/exam"} {
		p, err := ParseOriginPattern(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if p.String() != s {
			t.Errorf("String() = %q, want %q", p.String(), s)
		}
	}
}
