// Package watchdog guards the loaded policy document against on-disk
// mutation. The policy is immutable for the process lifetime, so any
// change, rename, or removal of the file while a session is active is
// tampering, reported to the session controller as a hard integrity
// violation — never a reload.
package watchdog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// pollDefault is the fallback polling interval when fsnotify is
// unavailable (e.g. network filesystems).
const pollDefault = 5 * time.Second

// ReportFunc receives the tampered target and a detail string.
type ReportFunc func(target, detail string)

// Watch guards the policy file until ctx is cancelled: fsnotify first,
// hash polling when fsnotify cannot run (e.g. no inotify support on the
// filesystem). A session must never run unguarded, so if neither watcher
// can start the failure itself is reported as an integrity violation.
func Watch(ctx context.Context, path string, report ReportFunc, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	err := New(path, report, logger).Run(ctx)
	if err == nil {
		return
	}
	logger.Warn("fsnotify watcher unavailable, falling back to polling",
		zap.String("path", path), zap.Error(err))

	pw, err := NewPollWatcher(path, report, 0)
	if err != nil {
		report(path, "policy watchdog cannot run: "+err.Error())
		return
	}
	_ = pw.Run(ctx)
}

// Watcher watches a single policy file with fsnotify.
type Watcher struct {
	path   string
	report ReportFunc
	logger *zap.Logger
}

// New creates a Watcher for the policy file at path.
func New(path string, report ReportFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: path, report: report, logger: logger}
}

// Run watches the policy file's directory until ctx is cancelled. The
// directory is watched, not the file, so renames and recreations are
// seen too.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Warn("policy file changed on disk",
					zap.String("path", w.path),
					zap.String("op", event.Op.String()))
				w.report(w.path, "policy document modified on disk after load: "+event.Op.String())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("policy watcher error", zap.Error(err))
		}
	}
}

// PollWatcher compares the policy file's content hash on an interval.
// Fallback for filesystems where fsnotify does not deliver events.
type PollWatcher struct {
	path     string
	report   ReportFunc
	interval time.Duration
	baseline string
}

// NewPollWatcher creates a polling watcher seeded with the current
// content hash of the policy file.
func NewPollWatcher(path string, report ReportFunc, interval time.Duration) (*PollWatcher, error) {
	if interval == 0 {
		interval = pollDefault
	}
	baseline, err := hashFile(path)
	if err != nil {
		return nil, err
	}
	return &PollWatcher{
		path:     path,
		report:   report,
		interval: interval,
		baseline: baseline,
	}, nil
}

// Run polls until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *PollWatcher) check() {
	current, err := hashFile(w.path)
	if err != nil {
		w.report(w.path, "policy document unreadable after load: "+err.Error())
		return
	}
	if current != w.baseline {
		w.report(w.path, "policy document content hash changed after load")
		// Report once per change, not once per tick.
		w.baseline = current
	}
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
