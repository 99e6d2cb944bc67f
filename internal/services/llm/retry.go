package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scribe/internal/artifact"
	"scribe/internal/generation"
)

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.code, e.body)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusRequestTimeout ||
		e.code == http.StatusTooManyRequests ||
		e.code >= http.StatusInternalServerError
}

// emptyReplyError is a 2xx response with nothing usable in it. Models do
// this intermittently, so it is retried.
type emptyReplyError struct {
	op      string
	finish  string
	refusal string
	snippet string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.op, e.finish, e.refusal, e.snippet)
}

type completion struct {
	content string
	model   string
	usage   generation.Usage
}

// complete runs post under an exponential backoff. Non-transient failures
// end the loop at once.
func (c *Client) complete(ctx context.Context, op string, payload chatRequest) (completion, error) {
	var (
		out   completion
		calls int
		hint  time.Duration
	)
	attempt := func() error {
		calls++
		resp, raw, err := c.post(ctx, payload)
		if resp.Usage != nil {
			out.usage.PromptTokens += resp.Usage.PromptTokens
			out.usage.CompletionTokens += resp.Usage.CompletionTokens
			out.usage.TotalTokens += resp.Usage.TotalTokens
		}
		if err == nil {
			text, finish := resp.content()
			if text != "" {
				out.content = text
				out.model = strings.TrimSpace(resp.Model)
				return nil
			}
			if len(resp.Choices) == 0 {
				return backoff.Permanent(fmt.Errorf("%s: empty choices", op))
			}
			return &emptyReplyError{op: op, finish: finish, refusal: resp.refusal(), snippet: artifact.Snippet(string(raw))}
		}
		var status *statusError
		if errors.As(err, &status) {
			if !status.transient() {
				return backoff.Permanent(err)
			}
			hint = status.retryAfter
			return err
		}
		if isTimeout(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.MaxInterval = c.maxDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0
	schedule := backoff.WithContext(
		backoff.WithMaxRetries(&hintedBackOff{BackOff: policy, hint: &hint, ceiling: c.maxDelay}, uint64(c.attempts-1)),
		ctx)

	var timer backoff.Timer
	if c.sleep != nil {
		timer = &sleepTimer{sleep: c.sleep, fired: make(chan time.Time, 1)}
	}
	err := backoff.RetryNotifyWithTimer(attempt, schedule, nil, timer)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if calls > 1 {
		err = fmt.Errorf("%s: failed after %d attempts: %w", op, calls, err)
	}
	return out, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// hintedBackOff prefers a server Retry-After hint over the computed delay
// for the next wait only.
type hintedBackOff struct {
	backoff.BackOff
	hint    *time.Duration
	ceiling time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if *h.hint > 0 {
		next = *h.hint
		*h.hint = 0
	}
	if h.ceiling > 0 && next > h.ceiling {
		next = h.ceiling
	}
	return next
}

// sleepTimer fires after a caller-supplied sleep, so tests can record waits
// without spending them.
type sleepTimer struct {
	sleep func(time.Duration)
	fired chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.sleep(d)
	t.fired <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.fired }

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait >= 0 {
			return wait, true
		}
	}
	return 0, false
}
