// Package session owns the lockdown session state machine. The
// controller aggregates verdicts from the navigation guard, the window
// capability manager, and the deep-link validator, appends violation
// records, and executes the terminal actions.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/understandly/lockdownd/internal/audit"
	"github.com/understandly/lockdownd/internal/deeplink"
	"github.com/understandly/lockdownd/internal/metrics"
	"github.com/understandly/lockdownd/internal/model"
	"github.com/understandly/lockdownd/internal/navguard"
	"github.com/understandly/lockdownd/internal/policy"
	"github.com/understandly/lockdownd/internal/shell"
	"github.com/understandly/lockdownd/internal/window"
)

// flushTimeout bounds the end-of-session persistence of the violation
// trail to external storage.
const flushTimeout = 5 * time.Second

// Config wires a Controller. Spec, Renderer, and Host are required;
// AuditLog, Store, and Metrics are optional.
type Config struct {
	Spec     *policy.Spec
	Renderer shell.Renderer
	Host     shell.Host
	AuditLog *audit.Log
	Store    *audit.Store
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Controller is the session lifecycle controller. All external events
// enter through its dispatch loop; callers block until a verdict is
// returned.
type Controller struct {
	spec     *policy.Spec
	nav      *navguard.Guard
	win      *window.Manager
	deep     *deeplink.Validator
	renderer shell.Renderer
	host     shell.Host
	auditLog *audit.Log
	store    *audit.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	sessionID string
	events    chan envelope
	done      chan struct{}
	started   atomic.Bool
	exitOnce  sync.Once
	flushOnce sync.Once
	esc       *escalation
	winHandle model.Handle

	mu         sync.Mutex
	phase      model.Phase
	violations []model.ViolationRecord
}

// New builds a Controller in the Initializing phase.
func New(cfg Config) (*Controller, error) {
	if cfg.Spec == nil {
		return nil, fmt.Errorf("session: policy spec is required")
	}
	if cfg.Renderer == nil || cfg.Host == nil {
		return nil, fmt.Errorf("session: renderer and host collaborators are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Controller{
		spec:      cfg.Spec,
		nav:       navguard.New(cfg.Spec),
		win:       window.New(cfg.Spec),
		deep:      deeplink.New(cfg.Spec),
		renderer:  cfg.Renderer,
		host:      cfg.Host,
		auditLog:  cfg.AuditLog,
		store:     cfg.Store,
		logger:    logger,
		metrics:   cfg.Metrics,
		now:       now,
		sessionID: NewSessionID(),
		events:    make(chan envelope),
		done:      make(chan struct{}),
		esc:       newEscalation(cfg.Spec.Escalation()),
		phase:     model.Initializing,
	}, nil
}

// SessionID returns the identifier of this session.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() model.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ExportViolations returns a read-only snapshot of the violation log.
func (c *Controller) ExportViolations() []model.ViolationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ViolationRecord, len(c.violations))
	copy(out, c.violations)
	return out
}

// Start registers the activation scheme, grants the single exam window,
// applies the isolation headers and content directives, navigates to the
// trusted base origin, and enters Active. Any failure leaves the session
// short of Active — never partially permissive.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session: already started")
	}

	if err := c.host.RegisterScheme(c.spec.AllowedScheme()); err != nil {
		return fmt.Errorf("session: register scheme: %w", err)
	}

	caps := windowCaps(c.spec)
	handle, verdict := c.win.Request(caps)
	if !verdict.OK() {
		return fmt.Errorf("session: initial window denied: %s", verdict.Reason)
	}
	c.winHandle = handle

	if err := c.renderer.ApplyHeaders(c.win.ResponseHeaders()); err != nil {
		return fmt.Errorf("session: apply headers: %w", err)
	}
	if err := c.renderer.ApplyContentDirectives(c.spec.ContentDirectives()); err != nil {
		return fmt.Errorf("session: apply content directives: %w", err)
	}
	if err := c.renderer.OpenWindow(handle, c.win.Options(), caps); err != nil {
		return fmt.Errorf("session: open window: %w", err)
	}
	if base := c.spec.BaseOrigin(); base != "" {
		if err := c.renderer.Navigate(base); err != nil {
			return fmt.Errorf("session: initial navigation: %w", err)
		}
	}

	c.host.OnExternalActivation(func(uri string) {
		c.Activate(uri)
	})

	c.setPhase(model.Active)
	c.logger.Info("session active",
		zap.String("session_id", c.sessionID),
		zap.String("policy_hash", c.spec.Hash()))

	go c.loop(ctx)
	return nil
}

// windowCaps selects the window chrome capabilities the policy grants
// for the initial window request.
func windowCaps(spec *policy.Spec) []model.Capability {
	var caps []model.Capability
	for _, c := range []model.Capability{
		model.CapFullscreen, model.CapAlwaysOnTop, model.CapSkipTaskbar,
	} {
		if spec.Granted(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

func (c *Controller) loop(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.flush()
			return
		case env := <-c.events:
			env.reply <- c.handle(env.ev)
		}
	}
}

// RequestNavigation validates a navigation, subresource, or websocket
// request. Allowed navigations are forwarded to the renderer.
func (c *Controller) RequestNavigation(url string, kind model.RequestKind) model.Verdict {
	return c.dispatch(navigationEvent{url: url, kind: kind}).verdict
}

// RequestWindow validates a window-creation attempt.
func (c *Controller) RequestWindow(caps []model.Capability) (model.Handle, model.Verdict) {
	r := c.dispatch(windowRequestEvent{caps: caps})
	return r.handle, r.verdict
}

// NotifyWindowClosed reports a window closure observed by the shell.
// Closure during an active session is a violation, not a clean exit.
func (c *Controller) NotifyWindowClosed(handle model.Handle) model.Verdict {
	return c.dispatch(windowClosedEvent{handle: handle}).verdict
}

// Activate validates an OS-delivered deep-link activation and, when
// valid, navigates the exam window to the rewritten local target.
func (c *Controller) Activate(uri string) model.Verdict {
	return c.dispatch(activationEvent{uri: uri}).verdict
}

// RequestExit asks the controller to end the session. Honored only when
// the process-exit capability is granted by policy.
func (c *Controller) RequestExit() model.Verdict {
	return c.dispatch(exitRequestEvent{}).verdict
}

// ReportIntegrityViolation injects a hard integrity failure, e.g. the
// policy document changing on disk mid-session.
func (c *Controller) ReportIntegrityViolation(target, detail string) model.Verdict {
	return c.dispatch(integrityEvent{detail: detail, target: target}).verdict
}

func (c *Controller) dispatch(ev any) response {
	if !c.started.Load() {
		return response{verdict: model.Denied(model.SessionTerminated, "", "session.phase",
			"session is not active")}
	}
	env := envelope{ev: ev, reply: make(chan response, 1)}
	select {
	case c.events <- env:
		return <-env.reply
	case <-c.done:
		return response{verdict: model.Denied(model.SessionTerminated, "", "session.phase",
			"session dispatch loop stopped")}
	}
}

func (c *Controller) handle(ev any) response {
	if c.Phase() == model.Terminated {
		v := model.Denied(model.SessionTerminated, targetOf(ev), "session.phase",
			"session is terminated; all events are denied")
		c.record(v)
		return response{verdict: v}
	}

	switch e := ev.(type) {
	case navigationEvent:
		v := c.nav.Evaluate(e.url, e.kind)
		c.metrics.Verdict("navguard", v.Decision)
		if !v.OK() {
			c.violate(v)
			return response{verdict: v}
		}
		if e.kind == model.KindNavigation {
			if err := c.renderer.Navigate(e.url); err != nil {
				c.logger.Error("renderer navigate failed", zap.String("url", e.url), zap.Error(err))
			}
		}
		return response{verdict: v}

	case windowRequestEvent:
		h, v := c.win.Request(e.caps)
		c.metrics.Verdict("window", v.Decision)
		if !v.OK() {
			c.violate(v)
			return response{verdict: v}
		}
		if err := c.renderer.OpenWindow(h, c.win.Options(), e.caps); err != nil {
			c.logger.Error("renderer open window failed", zap.Error(err))
		}
		return response{verdict: v, handle: h}

	case windowClosedEvent:
		v := c.win.Close(e.handle)
		c.metrics.Verdict("window", v.Decision)
		if !v.OK() {
			// Count desynchronized from OS reality.
			c.violate(v)
			return response{verdict: v}
		}
		closed := model.Denied(model.WindowClosedMidExam,
			fmt.Sprintf("window handle=%d", e.handle), "window.lifetime",
			"exam window closed during an active session")
		c.violate(closed)
		return response{verdict: closed}

	case activationEvent:
		payload, v := c.deep.Validate(e.uri)
		c.metrics.Verdict("deeplink", v.Decision)
		if !v.OK() {
			c.violate(v)
			return response{verdict: v}
		}
		target := payload.Target(c.spec.BaseOrigin())
		nv := c.nav.Evaluate(target, model.KindNavigation)
		c.metrics.Verdict("navguard", nv.Decision)
		if !nv.OK() {
			c.violate(nv)
			return response{verdict: nv}
		}
		if err := c.renderer.Navigate(target); err != nil {
			c.logger.Error("renderer navigate failed", zap.String("url", target), zap.Error(err))
		}
		return response{verdict: model.Allowed(target)}

	case exitRequestEvent:
		if !c.spec.Granted(model.CapProcessExit) {
			v := model.Denied(model.CapabilityNotGranted, string(model.CapProcessExit),
				"capability.grant", "process exit capability is not granted by policy")
			c.violate(v)
			return response{verdict: v}
		}
		c.logger.Info("exit requested with granted capability", zap.String("session_id", c.sessionID))
		c.terminate("session ended by exit request")
		return response{verdict: model.Allowed("process.exit")}

	case integrityEvent:
		v := model.Denied(model.IntegrityViolation, e.target, "policy.integrity", e.detail)
		c.violate(v)
		return response{verdict: v}

	default:
		v := model.Denied(model.MalformedTarget, targetOf(ev), "session.event",
			"unknown event type")
		c.record(v)
		return response{verdict: v}
	}
}

// violate turns a deny verdict into exactly one ViolationRecord and runs
// the severity path: soft blocks the single request and re-enters
// Active; hard — directly or by escalation — terminates.
func (c *Controller) violate(v model.Verdict) {
	rec := c.record(v)

	c.setPhase(model.Violated)

	if rec.Severity == model.SeverityHard {
		c.terminate(fmt.Sprintf("hard violation: %s", v.Reason))
		return
	}

	if model.Escalatable(v.Kind) && c.esc.record(rec.Timestamp) {
		c.logger.Warn("violation threshold reached",
			zap.String("session_id", c.sessionID),
			zap.String("kind", string(v.Kind)))
		c.terminate("repeated policy violations within the escalation window")
		return
	}

	c.renderer.ShowBlockNotice(v.Reason)
	c.setPhase(model.Active)
}

// record appends the audit trail entry for one deny verdict.
func (c *Controller) record(v model.Verdict) model.ViolationRecord {
	rec := model.ViolationRecord{
		ID:        uuid.NewString(),
		Timestamp: c.now(),
		Kind:      v.Kind,
		Target:    v.Target,
		Rule:      v.Rule,
		Severity:  model.SeverityFor(v.Kind),
		Reason:    v.Reason,
	}

	c.mu.Lock()
	c.violations = append(c.violations, rec)
	c.mu.Unlock()

	c.metrics.Violation(rec.Kind, rec.Severity)
	c.logger.Warn("violation recorded",
		zap.String("session_id", c.sessionID),
		zap.String("kind", string(rec.Kind)),
		zap.String("target", rec.Target),
		zap.String("rule", rec.Rule),
		zap.String("severity", string(rec.Severity)))

	if c.auditLog != nil {
		if err := c.auditLog.Record(audit.FromRecord(c.sessionID, c.spec.Hash(), rec)); err != nil {
			c.logger.Error("audit record failed", zap.Error(err))
		}
	}
	return rec
}

// terminate moves the session to the absorbing Terminated phase,
// surfaces the lockdown notice, flushes the trail, and — only through
// the explicitly granted exit capability — ends the process, exactly
// once.
func (c *Controller) terminate(reason string) {
	c.setPhase(model.Terminated)
	c.renderer.ShowLockdownNotice(reason)
	c.flush()

	c.exitOnce.Do(func() {
		if c.spec.Granted(model.CapProcessExit) {
			c.logger.Error("terminating process via granted exit capability",
				zap.String("session_id", c.sessionID),
				zap.String("reason", reason))
			c.host.ExitProcess()
		} else {
			c.logger.Error("session terminated; exit capability not granted, leaving process to supervisor",
				zap.String("session_id", c.sessionID),
				zap.String("reason", reason))
		}
	})
}

// flush persists the violation trail to the external store. Safe to call
// on both the terminal path and loop shutdown; only the first call
// writes.
func (c *Controller) flush() {
	c.flushOnce.Do(func() {
		if c.store == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := c.store.FlushSession(ctx, c.sessionID, c.spec.Hash(), c.ExportViolations()); err != nil {
			c.logger.Error("violation store flush failed", zap.Error(err))
		}
	})
}

func (c *Controller) setPhase(p model.Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.metrics.Phase(p)
}

func targetOf(ev any) string {
	switch e := ev.(type) {
	case navigationEvent:
		return e.url
	case activationEvent:
		return e.uri
	case windowClosedEvent:
		return fmt.Sprintf("window handle=%d", e.handle)
	case windowRequestEvent:
		return "window.open"
	case exitRequestEvent:
		return "process.exit"
	case integrityEvent:
		return e.target
	default:
		return ""
	}
}
