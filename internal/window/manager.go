// Package window enforces the single-window invariant and the fixed,
// minimal capability set granted to it.
package window

import (
	"fmt"
	"sync"

	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/policy"
)

// Manager tracks the one live exam window. The count is an explicit
// invariant owned by the engine, not a host-runtime default.
type Manager struct {
	mu         sync.Mutex
	spec       *policy.Spec
	live       model.Handle // 0 when no window exists
	nextHandle model.Handle
}

// New creates a Manager bound to an immutable policy spec.
func New(spec *policy.Spec) *Manager {
	return &Manager{spec: spec, nextHandle: 1}
}

// Request grants a window iff no window is live and every requested
// capability is explicitly granted by policy. Ungranted capabilities are
// denied, never silently dropped.
func (m *Manager) Request(caps []model.Capability) (model.Handle, model.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live != 0 {
		return 0, model.Denied(model.SingleWindowViolation, "window.open", "window.single",
			"a window is already live; at most one window may exist")
	}

	for _, c := range caps {
		if !m.spec.Granted(c) {
			return 0, model.Denied(model.CapabilityNotGranted, string(c), "capability.grant",
				fmt.Sprintf("capability %q is not granted by policy", c))
		}
	}

	h := m.nextHandle
	m.nextHandle++
	m.live = h
	return h, model.Allowed("window.open")
}

// Close releases the window identified by handle. A close for a handle
// that is not live signals window-count desynchronization from OS
// reality and is reported as an integrity violation.
func (m *Manager) Close(handle model.Handle) model.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live == 0 || handle != m.live {
		return model.Denied(model.IntegrityViolation,
			fmt.Sprintf("window.close handle=%d", handle), "window.count",
			"close for a window that is not live; window count desynchronized")
	}

	m.live = 0
	return model.Allowed("window.close")
}

// Count returns the number of live windows (0 or 1).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live != 0 {
		return 1
	}
	return 0
}

// ResponseHeaders returns the isolation headers to attach to every
// response the window renders, read from the policy requirements.
func (m *Manager) ResponseHeaders() map[string]string {
	return m.spec.RequiredHeaders()
}

// Options returns the pinned chrome for the exam window.
func (m *Manager) Options() model.WindowOptions {
	return m.spec.Window()
}
