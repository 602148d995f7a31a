package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/understandly/lockdownd/internal/audit"
	"github.com/understandly/lockdownd/internal/bridge"
	"github.com/understandly/lockdownd/internal/logging"
	"github.com/understandly/lockdownd/internal/metrics"
	"github.com/understandly/lockdownd/internal/policy"
	"github.com/understandly/lockdownd/internal/session"
	"github.com/understandly/lockdownd/internal/shell"
	"github.com/understandly/lockdownd/internal/watchdog"
)

var (
	runPolicy      string
	runBridgeAddr  string
	runAuditLog    string
	runStore       string
	runLogLevel    string
	runLoadTimeout time.Duration
	runDeepLink    string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Path to policy document (required)")
	runCmd.Flags().StringVar(&runBridgeAddr, "bridge-addr", "127.0.0.1:47831", "Loopback address for the shell bridge")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Path to hash-chained violation log (JSONL)")
	runCmd.Flags().StringVar(&runStore, "store", "", "Path to SQLite violation store")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	runCmd.Flags().DurationVar(&runLoadTimeout, "load-timeout", 5*time.Second, "Policy load budget")
	runCmd.Flags().StringVar(&runDeepLink, "deep-link", "", "Activation URI delivered at launch")
	runCmd.MarkFlagRequired("policy")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the enforcement engine",
	Long: "Loads the policy document, grants the single exam window, and\n" +
		"serves the loopback bridge for the webview shell. Exits when the\n" +
		"session terminates or on SIGINT/SIGTERM.",
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(runLogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), runLoadTimeout)
	spec, err := policy.Load(loadCtx, runPolicy)
	cancelLoad()
	if err != nil {
		return err
	}
	logger.Info("policy loaded",
		zap.String("path", runPolicy),
		zap.String("hash", spec.Hash()),
		zap.Int("origins", len(spec.Origins())))

	var auditLog *audit.Log
	if runAuditLog != "" {
		auditLog, err = audit.Open(runAuditLog)
		if err != nil {
			return err
		}
		defer auditLog.Close()
	}

	var store *audit.Store
	if runStore != "" {
		store, err = audit.OpenStore(runStore)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	m := metrics.New()

	ctrl, err := session.New(session.Config{
		Spec:     spec,
		Renderer: shell.NewLogRenderer(logger),
		Host:     shell.NewOSHost(logger, os.Exit),
		AuditLog: auditLog,
		Store:    store,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("session failed to start: %w", err)
	}

	// The policy is immutable after load; any on-disk change is tampering.
	// Watch falls back to hash polling, and reports the failure itself if
	// neither watcher can run, so the session never serves unguarded.
	go watchdog.Watch(ctx, runPolicy, func(target, detail string) {
		ctrl.ReportIntegrityViolation(target, detail)
	}, logger)

	srv, err := bridge.New(runBridgeAddr, ctrl, m, logger)
	if err != nil {
		return err
	}

	if runDeepLink != "" {
		v := ctrl.Activate(runDeepLink)
		logger.Info("launch activation",
			zap.String("uri", runDeepLink),
			zap.String("decision", string(v.Decision)))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		srv.Shutdown(shutdownCtx)
		cancel()
	}()

	return srv.ListenAndServe()
}
