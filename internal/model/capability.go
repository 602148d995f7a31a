package model

import "fmt"

// Capability names a privileged operation the engine may perform on the
// session's behalf. Only capabilities present in the policy grant set may
// ever be exercised, checked at the call site, never inferred.
type Capability string

const (
	CapProcessExit    Capability = "process:allow-exit"
	CapClipboardRead  Capability = "clipboard:read"
	CapClipboardWrite Capability = "clipboard:write"
	CapFullscreen     Capability = "window:fullscreen"
	CapAlwaysOnTop    Capability = "window:always-on-top"
	CapSkipTaskbar    Capability = "window:skip-taskbar"
)

// KnownCapabilities is the closed set of grantable capabilities.
var KnownCapabilities = map[Capability]bool{
	CapProcessExit:    true,
	CapClipboardRead:  true,
	CapClipboardWrite: true,
	CapFullscreen:     true,
	CapAlwaysOnTop:    true,
	CapSkipTaskbar:    true,
}

// ParseCapability validates a capability identifier. Wildcards and unknown
// identifiers are rejected — a grant that cannot be named exactly cannot
// be granted at all.
func ParseCapability(s string) (Capability, error) {
	c := Capability(s)
	if !KnownCapabilities[c] {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}
