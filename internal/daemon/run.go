package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/ipc"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/preflight"
	"scribe/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	Development   bool
	SkipPreflight bool
}

// Run starts the daemon and blocks until SIGINT, SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("scribed-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
		FilePath:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	sessionID := uuid.NewString()
	logger = logging.WithSessionID(logger, sessionID)

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update scribed.log link: %v\n", err)
	}
	if n := logging.Prune(logger, cfg.Logging.RetentionDays,
		logging.PruneRule{Dir: cfg.Paths.LogDir, Glob: "scribed-*.log", Keep: []string{logPath}},
		logging.PruneRule{Dir: filepath.Join(cfg.Paths.LogDir, "jobs"), Glob: "*.log"},
	); n > 0 {
		logger.Info("old logs pruned", logging.Int("files", n), logging.String(logging.FieldEventType, "log_retention"))
	}

	if !opts.SkipPreflight {
		results := preflight.RunAll(signalCtx, cfg)
		for _, r := range results {
			if r.Passed {
				logger.Info("preflight check passed",
					logging.String("check", r.Name),
					logging.String("detail", r.Detail),
					logging.String(logging.FieldEventType, "preflight_passed"))
				continue
			}
			logger.Error("preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"))
		}
		if err := preflight.Failures(results); err != nil {
			return err
		}
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	orch, cacheCloser, err := pipeline.NewFromConfig(signalCtx, cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer cacheCloser.Close()

	manager := workflow.NewManager(cfg, store, orch, logger)
	d, err := New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	srv, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Warn("ipc server unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_unavailable"),
			logging.String(logging.FieldImpact, "scribe daemon status/pause/resume will not reach this daemon"))
	} else {
		srv.Serve()
		defer srv.Close()
	}

	<-signalCtx.Done()
	logger.Info("scribe daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "scribed.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
