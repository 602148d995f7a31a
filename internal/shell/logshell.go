package shell

import (
	"go.uber.org/zap"

	"github.com/understandly/lockdownd/internal/model"
)

// LogRenderer is the daemon-mode Renderer. The real webview lives in a
// separate shell process that submits events over the loopback bridge;
// this side only records what it was told to do.
type LogRenderer struct {
	logger *zap.Logger
}

func NewLogRenderer(logger *zap.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Navigate(url string) error {
	r.logger.Info("renderer: navigate", zap.String("url", url))
	return nil
}

func (r *LogRenderer) OpenWindow(handle model.Handle, opts model.WindowOptions, caps []model.Capability) error {
	r.logger.Info("renderer: open window",
		zap.Uint64("handle", uint64(handle)),
		zap.Bool("fullscreen", opts.Fullscreen),
		zap.Bool("always_on_top", opts.AlwaysOnTop),
		zap.Int("capabilities", len(caps)))
	return nil
}

func (r *LogRenderer) CloseWindow(handle model.Handle) error {
	r.logger.Info("renderer: close window", zap.Uint64("handle", uint64(handle)))
	return nil
}

func (r *LogRenderer) ApplyHeaders(headers map[string]string) error {
	r.logger.Info("renderer: apply headers", zap.Int("count", len(headers)))
	return nil
}

func (r *LogRenderer) ApplyContentDirectives(directives map[string][]string) error {
	r.logger.Info("renderer: apply content directives", zap.Int("count", len(directives)))
	return nil
}

func (r *LogRenderer) ShowBlockNotice(reason string) {
	r.logger.Warn("renderer: block notice", zap.String("reason", reason))
}

func (r *LogRenderer) ShowLockdownNotice(reason string) {
	r.logger.Error("renderer: lockdown notice", zap.String("reason", reason))
}

// OSHost is the daemon-mode Host. Scheme registration is delegated to
// the platform installer; process exit is real.
type OSHost struct {
	logger *zap.Logger
	exit   func(code int)
}

func NewOSHost(logger *zap.Logger, exit func(code int)) *OSHost {
	return &OSHost{logger: logger, exit: exit}
}

func (h *OSHost) RegisterScheme(scheme string) error {
	h.logger.Info("host: scheme registered", zap.String("scheme", scheme))
	return nil
}

func (h *OSHost) ExitProcess() {
	h.logger.Error("host: process exit requested by session controller")
	h.exit(1)
}

func (h *OSHost) OnExternalActivation(fn func(uri string)) {
	// Activations arrive through the bridge in daemon mode; nothing to
	// register against the OS here.
	_ = fn
}
