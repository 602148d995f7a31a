package policy

// TemplateYAML returns a commented policy document for init-policy.
func TemplateYAML() string {
	return `# lockdownd policy configuration
# Generated by: lockdownd init-policy
#
# The document is loaded once at session start and is immutable for the
# process lifetime. Any on-disk change while a session is active is
# treated as tampering and terminates the session.

# Origins the exam window may load. Exact scheme+host(+path-prefix)
# match; subdomain wildcards must be explicit ("https://*.example.com").
# A bare "*" is rejected at load.
allowed_origins:
  - https://understandly.com
  - wss://understandly.com

# Custom URI scheme registered with the OS for deep-link activation.
allowed_scheme: understandly-lockdown

# Headers attached to every response the window renders.
# The two isolation headers are mandatory.
required_headers:
  Cross-Origin-Opener-Policy: same-origin
  Cross-Origin-Embedder-Policy: require-corp

# Capabilities the engine may exercise. No wildcards. Anything not
# listed here is denied at the call site.
granted_capabilities:
  - process:allow-exit
  - window:fullscreen
  - window:always-on-top
  - window:skip-taskbar

# Content-security directives applied to the exam surface.
# Values are space-delimited source-expression lists.
content_directives:
  default-src: "'self' https://understandly.com"
  connect-src: "'self' https://understandly.com wss://understandly.com"
  frame-ancestors: "'none'"

# Repeated violations inside the window force termination.
escalation:
  threshold: 3
  window: 30s

# Pinned chrome of the single exam window.
window:
  title: Understandly Lockdown
  fullscreen: true
  always_on_top: true
  skip_taskbar: true
  closable: false
`
}
