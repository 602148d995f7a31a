package shell

import (
	"sync"

	"github.com/understandly/lockdownd/internal/model"
)

// FakeRenderer records every collaborator call for assertions.
type FakeRenderer struct {
	mu              sync.Mutex
	Navigations     []string
	OpenedHandles   []model.Handle
	OpenedOpts      []model.WindowOptions
	ClosedHandles   []model.Handle
	Headers         map[string]string
	Directives      map[string][]string
	BlockNotices    []string
	LockdownNotices []string
}

func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{}
}

func (r *FakeRenderer) Navigate(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Navigations = append(r.Navigations, url)
	return nil
}

func (r *FakeRenderer) OpenWindow(handle model.Handle, opts model.WindowOptions, caps []model.Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OpenedHandles = append(r.OpenedHandles, handle)
	r.OpenedOpts = append(r.OpenedOpts, opts)
	return nil
}

func (r *FakeRenderer) CloseWindow(handle model.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ClosedHandles = append(r.ClosedHandles, handle)
	return nil
}

func (r *FakeRenderer) ApplyHeaders(headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Headers = headers
	return nil
}

func (r *FakeRenderer) ApplyContentDirectives(directives map[string][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Directives = directives
	return nil
}

func (r *FakeRenderer) ShowBlockNotice(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BlockNotices = append(r.BlockNotices, reason)
}

func (r *FakeRenderer) ShowLockdownNotice(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LockdownNotices = append(r.LockdownNotices, reason)
}

// Snapshot returns copies of the recorded call lists.
func (r *FakeRenderer) Snapshot() (navigations []string, blockNotices, lockdownNotices []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Navigations...),
		append([]string(nil), r.BlockNotices...),
		append([]string(nil), r.LockdownNotices...)
}

// FakeHost records scheme registration and process exits.
type FakeHost struct {
	mu         sync.Mutex
	Schemes    []string
	ExitCalls  int
	activation func(uri string)
}

func NewFakeHost() *FakeHost {
	return &FakeHost{}
}

func (h *FakeHost) RegisterScheme(scheme string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Schemes = append(h.Schemes, scheme)
	return nil
}

func (h *FakeHost) ExitProcess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ExitCalls++
}

func (h *FakeHost) OnExternalActivation(fn func(uri string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activation = fn
}

// Activate simulates an OS-delivered deep-link activation.
func (h *FakeHost) Activate(uri string) {
	h.mu.Lock()
	fn := h.activation
	h.mu.Unlock()
	if fn != nil {
		fn(uri)
	}
}

// Exits returns the number of ExitProcess calls.
func (h *FakeHost) Exits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ExitCalls
}
