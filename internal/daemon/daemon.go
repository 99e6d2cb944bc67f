package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/ipc"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/workflow"
)

// Daemon coordinates the workers and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	pauseMu sync.Mutex
	paused  bool
	runCtx  context.Context
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Paused       bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, fails orphaned jobs and launches the
// workers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribed instance is already running")
	}

	orphaned, err := d.store.FailInFlight(ctx, jobs.DaemonStopReason)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("fail orphaned jobs: %w", err)
	}
	if orphaned > 0 {
		d.logger.Warn("failed jobs left in flight by a previous daemon",
			logging.Int64("count", orphaned),
			logging.String(logging.FieldEventType, "orphaned_jobs_failed"),
			logging.String(logging.FieldErrorHint, "resubmit them with scribe resubmit"),
			logging.String(logging.FieldImpact, "those jobs produced no notes"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.pauseMu.Lock()
	d.runCtx = runCtx
	d.paused = false
	d.pauseMu.Unlock()

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.workflow.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Pause stops the workers but keeps the daemon lock. Jobs in flight are
// failed as cancelled.
func (d *Daemon) Pause(context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()
	if d.paused {
		return nil
	}
	d.workflow.Stop()
	d.paused = true
	d.logger.Info("workers paused", logging.String(logging.FieldEventType, "daemon_paused"))
	return nil
}

// Resume restarts workers stopped by Pause.
func (d *Daemon) Resume(context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()
	if !d.paused {
		return nil
	}
	if err := d.workflow.Start(d.runCtx); err != nil {
		return fmt.Errorf("resume workflow: %w", err)
	}
	d.paused = false
	d.logger.Info("workers resumed", logging.String(logging.FieldEventType, "daemon_resumed"))
	return nil
}

func (d *Daemon) isPaused() bool {
	d.pauseMu.Lock()
	defer d.pauseMu.Unlock()
	return d.paused
}

// Snapshot is Status in the form served over IPC.
func (d *Daemon) Snapshot(ctx context.Context) ipc.StatusResponse {
	status := d.Status(ctx)
	resp := ipc.StatusResponse{
		Running:      status.Running,
		Paused:       status.Paused,
		PID:          os.Getpid(),
		Workers:      status.Workflow.Workers,
		ActiveJobs:   status.Workflow.ActiveJobs,
		LastError:    status.Workflow.LastError,
		Queue:        status.Workflow.Queue,
		DatabasePath: status.DatabasePath,
		LockPath:     status.LockFilePath,
	}
	if last := status.Workflow.LastJob; last != nil {
		resp.LastJobID = last.ID
		resp.LastJobState = string(last.State)
	}
	return resp
}

// Status reports daemon and worker state.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Paused:       d.isPaused(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
