package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32, chan captured) {
	t.Helper()
	var hits atomic.Int32
	got := make(chan captured, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		got <- captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, got
}

func configFor(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if !notifications.IsNoop(svc) {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyJobFailed(context.Background(), &jobs.Job{ID: 1}); err != nil {
		t.Fatalf("noop notifier returned %v", err)
	}
}

func TestNotifyJobCompleted(t *testing.T) {
	srv, _, got := newNtfyServer(t, http.StatusOK)
	svc := notifications.NewService(configFor(srv.URL))

	job := &jobs.Job{ID: 7, SourceID: "dQw4w9WgXcQ", State: jobs.StateCompleted, TokensUsed: 310}
	if err := svc.NotifyJobCompleted(context.Background(), job); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg := <-got
	if msg.title != "Scribe - Notes Ready" {
		t.Fatalf("unexpected title %q", msg.title)
	}
	if msg.tags != "scribe,job,completed" {
		t.Fatalf("unexpected tags %q", msg.tags)
	}
	if !strings.Contains(msg.body, "dQw4w9WgXcQ (job 7)") || !strings.Contains(msg.body, "310 tokens") {
		t.Fatalf("unexpected body %q", msg.body)
	}
}

func TestNotifyJobFailedIncludesReason(t *testing.T) {
	srv, _, got := newNtfyServer(t, http.StatusOK)
	svc := notifications.NewService(configFor(srv.URL))

	job := &jobs.Job{ID: 3, SourceID: "abcdefghijk", State: jobs.StateFailed, ErrorMessage: "source blocked"}
	if err := svc.NotifyJobFailed(context.Background(), job); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg := <-got
	if msg.priority != "high" {
		t.Fatalf("expected high priority, got %q", msg.priority)
	}
	if msg.body != "Job 3 for abcdefghijk failed: source blocked" {
		t.Fatalf("unexpected body %q", msg.body)
	}
}

func TestDisabledEventsAreSkipped(t *testing.T) {
	srv, hits, _ := newNtfyServer(t, http.StatusOK)
	cfg := configFor(srv.URL)
	cfg.Notifications.OnCompleted = false
	svc := notifications.NewService(cfg)

	if err := svc.NotifyJobCompleted(context.Background(), &jobs.Job{ID: 1}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	srv, hits, _ := newNtfyServer(t, http.StatusForbidden)
	svc := notifications.NewService(configFor(srv.URL))

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
}
