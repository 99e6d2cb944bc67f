package workflow_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/workflow"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.Workers = 2
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	return cfg
}

func completingRunner(store *jobs.Store) workflow.Runner {
	return workflow.RunnerFunc(func(ctx context.Context, job *jobs.Job) error {
		job.State = jobs.StateTransforming
		if err := store.Update(ctx, job); err != nil {
			return err
		}
		job.State = jobs.StateGenerating
		if err := store.Update(ctx, job); err != nil {
			return err
		}
		job.SetCompleted("Completed")
		return store.Update(ctx, job)
	})
}

func waitForState(t *testing.T, store *jobs.Store, id int64, want jobs.State) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job.State == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %d stuck in %s, want %s", id, job.State, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
}

func TestManagerProcessesJobs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")
	second := testsupport.NewJob(t, store, "bob", "bbbbbbbbbbb")

	mgr := workflow.NewManager(cfg, store, completingRunner(store), logging.NewNop())
	startManager(t, mgr)

	for _, id := range []int64{first.ID, second.ID} {
		job := waitForState(t, store, id, jobs.StateCompleted)
		if job.ProgressPercent != 100 {
			t.Fatalf("job %d progress = %v, want 100", id, job.ProgressPercent)
		}
		if job.StartedAt == nil {
			t.Fatalf("job %d missing started_at", id)
		}
	}

	status := mgr.Status(context.Background())
	if !status.Running {
		t.Fatal("expected manager to report running")
	}
	if status.Queue.Completed != 2 {
		t.Fatalf("completed = %d, want 2", status.Queue.Completed)
	}
	if status.LastError != "" {
		t.Fatalf("unexpected last error %q", status.LastError)
	}
}

func TestManagerFailsJobLeftInFlight(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")

	runner := workflow.RunnerFunc(func(context.Context, *jobs.Job) error {
		return services.Wrap(services.ErrTransform, "transforming", "merge sentences", "transcript has no usable text", nil)
	})
	mgr := workflow.NewManager(cfg, store, runner, logging.NewNop(), workflow.WithWorkers(1))
	startManager(t, mgr)

	failed := waitForState(t, store, job.ID, jobs.StateFailed)
	if failed.ErrorMessage != "transcript has no usable text" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
	deadline := time.Now().Add(time.Second)
	for mgr.Status(context.Background()).LastError == "" {
		if time.Now().After(deadline) {
			t.Fatal("expected last error to be recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerRecoversRunnerPanic(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")

	runner := workflow.RunnerFunc(func(context.Context, *jobs.Job) error {
		panic("boom")
	})
	mgr := workflow.NewManager(cfg, store, runner, logging.NewNop(), workflow.WithWorkers(1))
	startManager(t, mgr)

	failed := waitForState(t, store, job.ID, jobs.StateFailed)
	if failed.ErrorMessage != "job runner panicked: boom" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
}

func TestManagerWritesJobLog(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")

	mgr := workflow.NewManager(cfg, store, completingRunner(store), logging.NewNop(), workflow.WithWorkers(1))
	startManager(t, mgr)
	waitForState(t, store, job.ID, jobs.StateCompleted)
	mgr.Stop()

	matches, err := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "jobs", "*-job*-aaaaaaaaaaa.log"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one job log, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("job log is empty")
	}
}

func TestStopInterruptsRunningJob(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")

	started := make(chan struct{})
	runner := workflow.RunnerFunc(func(ctx context.Context, _ *jobs.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	mgr := workflow.NewManager(cfg, store, runner, logging.NewNop(), workflow.WithWorkers(1))
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("runner never started")
	}
	mgr.Stop()

	got, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != jobs.StateFailed || got.ErrorMessage != jobs.CancelledReason {
		t.Fatalf("got state %s message %q", got.State, got.ErrorMessage)
	}
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, completingRunner(store), logging.NewNop())
	startManager(t, mgr)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestReclaimStaleJobsFailsClaimedJob(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")
	if _, err := store.ClaimNext(context.Background()); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	monitor := workflow.NewHeartbeatMonitor(store, logging.NewNop(), time.Second, time.Millisecond)
	if err := monitor.ReclaimStaleJobs(context.Background(), logging.NewNop()); err != nil {
		t.Fatalf("ReclaimStaleJobs failed: %v", err)
	}

	got, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != jobs.StateFailed || got.ErrorMessage != jobs.HeartbeatLostReason {
		t.Fatalf("got state %s message %q", got.State, got.ErrorMessage)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) record(kind string, job *jobs.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s:%d", kind, job.ID))
	return nil
}

func (r *recordingNotifier) NotifyJobCompleted(_ context.Context, job *jobs.Job) error {
	return r.record("completed", job)
}

func (r *recordingNotifier) NotifyJobFailed(_ context.Context, job *jobs.Job) error {
	return r.record("failed", job)
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestManagerNotifiesTerminalStates(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ok := testsupport.NewJob(t, store, "alice", "aaaaaaaaaaa")
	bad := testsupport.NewJob(t, store, "bob", "bbbbbbbbbbb")

	complete := completingRunner(store)
	runner := workflow.RunnerFunc(func(ctx context.Context, job *jobs.Job) error {
		if job.ID == bad.ID {
			return services.Wrap(services.ErrGeneration, "generating", "structured notes", "provider refused", nil)
		}
		return complete.Run(ctx, job)
	})
	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, runner, logging.NewNop(),
		workflow.WithWorkers(1), workflow.WithNotifier(notifier))
	startManager(t, mgr)

	waitForState(t, store, ok.ID, jobs.StateCompleted)
	waitForState(t, store, bad.ID, jobs.StateFailed)

	deadline := time.Now().Add(2 * time.Second)
	for len(notifier.snapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected two notifications, got %v", notifier.snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := notifier.snapshot()
	want := []string{fmt.Sprintf("completed:%d", ok.ID), fmt.Sprintf("failed:%d", bad.ID)}
	if got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}
