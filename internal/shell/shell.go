// Package shell declares the contracts the engine holds against its two
// external collaborators: the rendering surface and the operating
// system. Both cross a trust boundary, so they are modeled as narrow
// message-passing interfaces rather than direct calls into OS
// primitives — the enforcement logic stays testable without a real
// display environment.
package shell

import "github.com/understandly/lockdownd/internal/model"

// Renderer is the rendering collaborator. The engine calls these only
// after its own guards return Allow.
type Renderer interface {
	Navigate(url string) error
	OpenWindow(handle model.Handle, opts model.WindowOptions, caps []model.Capability) error
	CloseWindow(handle model.Handle) error
	ApplyHeaders(headers map[string]string) error
	ApplyContentDirectives(directives map[string][]string) error

	// ShowBlockNotice surfaces a soft denial inside the sandboxed
	// window without navigating away from the exam content.
	ShowBlockNotice(reason string)
	// ShowLockdownNotice surfaces the terminal message before exit, so
	// the test-taker knows the session ended on policy violation, not a
	// crash.
	ShowLockdownNotice(reason string)
}

// Host is the OS collaborator.
type Host interface {
	RegisterScheme(scheme string) error
	// ExitProcess is gated by the process:allow-exit capability; the
	// session controller is the only caller and checks the grant at the
	// call site.
	ExitProcess()
	OnExternalActivation(fn func(uri string))
}
