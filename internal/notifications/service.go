package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scribe/internal/config"
	"scribe/internal/jobs"
)

const userAgent = "scribe/0.1"

// Service is the notification surface used by the worker daemon and CLI.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job *jobs.Job) error
	NotifyJobFailed(ctx context.Context, job *jobs.Job) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op when cfg has no topic.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	n := cfg.Notifications
	if strings.TrimSpace(n.NtfyTopic) == "" {
		return noopService{}
	}
	timeout := time.Duration(n.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:    strings.TrimSpace(n.NtfyTopic),
		client:      &http.Client{Timeout: timeout},
		onCompleted: n.OnCompleted,
		onFailed:    n.OnFailed,
		attempts:    3,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	onCompleted bool
	onFailed    bool
	attempts    uint64
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job *jobs.Job) error {
	if !n.onCompleted || job == nil {
		return nil
	}
	message := fmt.Sprintf("Notes ready for %s (job %d)", job.SourceID, job.ID)
	if job.ClonedFrom != nil {
		message += fmt.Sprintf("\nServed from job %d", *job.ClonedFrom)
	} else if job.TokensUsed > 0 {
		message += fmt.Sprintf("\n%d tokens used", job.TokensUsed)
	}
	return n.send(ctx, payload{
		title:   "Scribe - Notes Ready",
		message: message,
		tags:    []string{"scribe", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job *jobs.Job) error {
	if !n.onFailed || job == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Job %d for %s failed", job.ID, job.SourceID)
	if reason := strings.TrimSpace(job.ErrorMessage); reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	return n.send(ctx, payload{
		title:    "Scribe - Job Failed",
		message:  b.String(),
		tags:     []string{"scribe", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Scribe - Test",
		message:  "Notification system test",
		tags:     []string{"scribe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, n.attempts-1), ctx)
	return backoff.Retry(func() error { return n.post(ctx, data) }, policy)
}

func (n *ntfyService) post(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build ntfy request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// IsNoop reports whether svc drops every notification.
func IsNoop(svc Service) bool {
	_, ok := svc.(noopService)
	return ok
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, *jobs.Job) error { return nil }
func (noopService) NotifyJobFailed(context.Context, *jobs.Job) error    { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
