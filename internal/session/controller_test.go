package session

import (
	"context"
	"strings"
	"testing"

	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/policy"
	"github.com/understandly/lockdownd/internal/shell"
)

const policyDoc = `
allowed_origins:
  - https://understandly.com
  - wss://understandly.com
allowed_scheme: understandly-lockdown
required_headers:
  Cross-Origin-Opener-Policy: same-origin
  Cross-Origin-Embedder-Policy: require-corp
granted_capabilities:
  - process:allow-exit
  - window:fullscreen
  - window:always-on-top
escalation:
  threshold: 3
  window: 30s
window:
  title: Understandly Lockdown
  fullscreen: true
  always_on_top: true
  closable: false
`

const noExitPolicyDoc = `
allowed_origins: [https://understandly.com]
allowed_scheme: understandly-lockdown
required_headers:
  Cross-Origin-Opener-Policy: same-origin
  Cross-Origin-Embedder-Policy: require-corp
granted_capabilities:
  - window:fullscreen
`

type fixture struct {
	ctrl     *Controller
	renderer *shell.FakeRenderer
	host     *shell.FakeHost
	cancel   context.CancelFunc
}

func startSession(t *testing.T, doc string) *fixture {
	t.Helper()
	spec, err := policy.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	renderer := shell.NewFakeRenderer()
	host := shell.NewFakeHost()
	ctrl, err := New(Config{Spec: spec, Renderer: renderer, Host: host})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(cancel)
	return &fixture{ctrl: ctrl, renderer: renderer, host: host, cancel: cancel}
}

func TestStartEntersActive(t *testing.T) {
	f := startSession(t, policyDoc)

	if got := f.ctrl.Phase(); got != model.Active {
		t.Fatalf("phase = %v, want Active", got)
	}
	if len(f.host.Schemes) != 1 || f.host.Schemes[0] != "understandly-lockdown" {
		t.Errorf("registered schemes = %v", f.host.Schemes)
	}
	if len(f.renderer.OpenedHandles) != 1 {
		t.Fatalf("opened windows = %d, want 1", len(f.renderer.OpenedHandles))
	}
	if !f.renderer.OpenedOpts[0].Fullscreen || f.renderer.OpenedOpts[0].Closable {
		t.Errorf("window chrome = %+v", f.renderer.OpenedOpts[0])
	}
	if f.renderer.Headers[policy.HeaderCOOP] != "same-origin" {
		t.Errorf("isolation headers not applied: %v", f.renderer.Headers)
	}
	navs, _, _ := f.renderer.Snapshot()
	if len(navs) != 1 || navs[0] != "https://understandly.com" {
		t.Errorf("initial navigation = %v", navs)
	}
	if f.ctrl.SessionID() == "" {
		t.Error("empty session id")
	}
}

func TestAllowedNavigationReachesRenderer(t *testing.T) {
	f := startSession(t, policyDoc)

	v := f.ctrl.RequestNavigation("https://understandly.com/exam/42", model.KindNavigation)
	if !v.OK() {
		t.Fatalf("expected allow, got %+v", v)
	}
	navs, _, _ := f.renderer.Snapshot()
	if navs[len(navs)-1] != "https://understandly.com/exam/42" {
		t.Fatalf("renderer did not receive the navigation: %v", navs)
	}
	if len(f.ctrl.ExportViolations()) != 0 {
		t.Error("allowed navigation must not record a violation")
	}
}

func TestDeniedNavigationBlocksAndStaysActive(t *testing.T) {
	f := startSession(t, policyDoc)

	v := f.ctrl.RequestNavigation("https://evil.com", model.KindNavigation)
	if v.OK() {
		t.Fatal("foreign origin should be denied")
	}
	if v.Kind != model.OriginNotAllowed {
		t.Errorf("kind = %q", v.Kind)
	}

	if got := f.ctrl.Phase(); got != model.Active {
		t.Fatalf("phase after one soft violation = %v, want Active", got)
	}
	recs := f.ctrl.ExportViolations()
	if len(recs) != 1 {
		t.Fatalf("violations = %d, want 1", len(recs))
	}
	if recs[0].Target != "https://evil.com" || recs[0].Severity != model.SeveritySoft {
		t.Errorf("record = %+v", recs[0])
	}

	navs, blocks, _ := f.renderer.Snapshot()
	for _, n := range navs {
		if strings.Contains(n, "evil.com") {
			t.Fatal("blocked navigation leaked to the renderer")
		}
	}
	if len(blocks) != 1 {
		t.Errorf("block notices = %d, want 1", len(blocks))
	}
}

func TestSecondWindowIsDeniedAndRecorded(t *testing.T) {
	f := startSession(t, policyDoc)

	_, v := f.ctrl.RequestWindow(nil)
	if v.OK() {
		t.Fatal("second window should be denied")
	}
	if v.Kind != model.SingleWindowViolation {
		t.Errorf("kind = %q", v.Kind)
	}
	if len(f.renderer.OpenedHandles) != 1 {
		t.Fatal("denied window must not be opened by the renderer")
	}
	if len(f.ctrl.ExportViolations()) != 1 {
		t.Fatal("denied window request must be recorded")
	}
}

func TestValidActivationNavigatesToLocalTarget(t *testing.T) {
	f := startSession(t, policyDoc)

	v := f.ctrl.Activate("understandly-lockdown://exam/42?token=abc")
	if !v.OK() {
		t.Fatalf("valid activation denied: %+v", v)
	}
	navs, _, _ := f.renderer.Snapshot()
	want := "https://understandly.com/exam/42?token=abc"
	if navs[len(navs)-1] != want {
		t.Fatalf("activation navigated to %q, want %q", navs[len(navs)-1], want)
	}
}

func TestSpoofedActivationIsDenied(t *testing.T) {
	f := startSession(t, policyDoc)

	v := f.ctrl.Activate("evil-scheme://exam/42")
	if v.OK() {
		t.Fatal("foreign scheme activation should be denied")
	}
	if v.Kind != model.DeepLinkSpoofAttempt {
		t.Errorf("kind = %q", v.Kind)
	}
	recs := f.ctrl.ExportViolations()
	if len(recs) != 1 || recs[0].Kind != model.DeepLinkSpoofAttempt {
		t.Fatalf("violations = %+v", recs)
	}
	if f.ctrl.Phase() != model.Active {
		t.Error("single spoof attempt should not terminate the session")
	}
}

func TestActivationArrivesThroughHostCallback(t *testing.T) {
	f := startSession(t, policyDoc)

	f.host.Activate("understandly-lockdown://exam/7")
	navs, _, _ := f.renderer.Snapshot()
	if navs[len(navs)-1] != "https://understandly.com/exam/7" {
		t.Fatalf("host-delivered activation not handled: %v", navs)
	}
}

func TestRepeatedViolationsEscalateToTerminated(t *testing.T) {
	f := startSession(t, policyDoc)

	f.ctrl.RequestNavigation("https://evil.com/1", model.KindNavigation)
	f.ctrl.RequestNavigation("https://evil.com/2", model.KindNavigation)
	if f.ctrl.Phase() != model.Active {
		t.Fatal("session should survive two violations inside the window")
	}
	f.ctrl.RequestNavigation("https://evil.com/3", model.KindNavigation)

	if got := f.ctrl.Phase(); got != model.Terminated {
		t.Fatalf("phase after threshold = %v, want Terminated", got)
	}
	_, _, lockdowns := f.renderer.Snapshot()
	if len(lockdowns) != 1 {
		t.Errorf("lockdown notices = %d, want 1", len(lockdowns))
	}
	if f.host.Exits() != 1 {
		t.Fatalf("exit calls = %d, want exactly 1", f.host.Exits())
	}
}

func TestTerminatedPhaseIsAbsorbing(t *testing.T) {
	f := startSession(t, policyDoc)

	f.ctrl.ReportIntegrityViolation("policy.yaml", "policy file changed on disk")
	if f.ctrl.Phase() != model.Terminated {
		t.Fatal("integrity violation should terminate")
	}
	before := len(f.ctrl.ExportViolations())

	v := f.ctrl.RequestNavigation("https://understandly.com/exam/42", model.KindNavigation)
	if v.OK() {
		t.Fatal("terminated session must deny even allowlisted targets")
	}
	if v.Kind != model.SessionTerminated {
		t.Errorf("kind = %q", v.Kind)
	}
	if len(f.ctrl.ExportViolations()) != before+1 {
		t.Error("post-termination events must still be recorded")
	}
	if f.host.Exits() != 1 {
		t.Fatalf("exit calls = %d, want exactly 1", f.host.Exits())
	}
}

func TestHardViolationTerminatesImmediately(t *testing.T) {
	f := startSession(t, policyDoc)

	v := f.ctrl.ReportIntegrityViolation("policy.yaml", "hash mismatch")
	if v.OK() {
		t.Fatal("integrity violation verdict must be deny")
	}
	if f.ctrl.Phase() != model.Terminated {
		t.Fatal("one hard violation must terminate, no escalation count needed")
	}
	recs := f.ctrl.ExportViolations()
	if len(recs) != 1 || recs[0].Severity != model.SeverityHard {
		t.Fatalf("violations = %+v", recs)
	}
}

func TestWindowClosedMidExamIsHard(t *testing.T) {
	f := startSession(t, policyDoc)

	handle := f.renderer.OpenedHandles[0]
	v := f.ctrl.NotifyWindowClosed(handle)
	if v.OK() {
		t.Fatal("mid-exam close must be a violation")
	}
	if v.Kind != model.WindowClosedMidExam {
		t.Errorf("kind = %q", v.Kind)
	}
	if f.ctrl.Phase() != model.Terminated {
		t.Fatal("mid-exam window close must terminate the session")
	}
}

func TestExitWithGrantedCapability(t *testing.T) {
	f := startSession(t, policyDoc)

	v := f.ctrl.RequestExit()
	if !v.OK() {
		t.Fatalf("granted exit denied: %+v", v)
	}
	if f.ctrl.Phase() != model.Terminated {
		t.Fatal("exit must terminate the session")
	}
	if f.host.Exits() != 1 {
		t.Fatalf("exit calls = %d, want 1", f.host.Exits())
	}
	if len(f.ctrl.ExportViolations()) != 0 {
		t.Error("a granted exit is not a violation")
	}
}

func TestExitWithoutGrantIsDenied(t *testing.T) {
	f := startSession(t, noExitPolicyDoc)

	v := f.ctrl.RequestExit()
	if v.OK() {
		t.Fatal("ungranted exit should be denied")
	}
	if v.Kind != model.CapabilityNotGranted {
		t.Errorf("kind = %q", v.Kind)
	}
	if f.ctrl.Phase() != model.Active {
		t.Fatal("denied exit should leave the session active")
	}
	if f.host.Exits() != 0 {
		t.Fatal("process must not exit without the capability")
	}
}

func TestTerminateWithoutExitGrantLeavesProcessAlive(t *testing.T) {
	f := startSession(t, noExitPolicyDoc)

	f.ctrl.ReportIntegrityViolation("policy.yaml", "hash mismatch")
	if f.ctrl.Phase() != model.Terminated {
		t.Fatal("hard violation must terminate")
	}
	if f.host.Exits() != 0 {
		t.Fatal("termination without the exit grant must not call ExitProcess")
	}
}

func TestEventsBeforeStartAreDenied(t *testing.T) {
	spec, err := policy.Parse([]byte(policyDoc))
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := New(Config{Spec: spec, Renderer: shell.NewFakeRenderer(), Host: shell.NewFakeHost()})
	if err != nil {
		t.Fatal(err)
	}

	v := ctrl.RequestNavigation("https://understandly.com", model.KindNavigation)
	if v.OK() {
		t.Fatal("events before Start must be denied")
	}
	if v.Kind != model.SessionTerminated {
		t.Errorf("kind = %q", v.Kind)
	}
}

func TestStartTwiceFails(t *testing.T) {
	f := startSession(t, policyDoc)
	if err := f.ctrl.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}
}

func TestEveryDenialProducesOneRecord(t *testing.T) {
	f := startSession(t, policyDoc)

	denials := []string{
		"https://evil.com/a",
		"not a url",
	}
	for _, target := range denials {
		if v := f.ctrl.RequestNavigation(target, model.KindNavigation); v.OK() {
			t.Fatalf("expected deny for %q", target)
		}
	}
	f.ctrl.RequestNavigation("https://understandly.com/ok", model.KindNavigation)

	recs := f.ctrl.ExportViolations()
	if len(recs) != len(denials) {
		t.Fatalf("records = %d, want %d", len(recs), len(denials))
	}
	for i, rec := range recs {
		if rec.Target != denials[i] {
			t.Errorf("record %d target = %q, want %q", i, rec.Target, denials[i])
		}
		if rec.ID == "" || rec.Timestamp.IsZero() {
			t.Errorf("record %d missing id or timestamp", i)
		}
	}
}
