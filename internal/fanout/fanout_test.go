package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllKeepsTaskOrder(t *testing.T) {
	tasks := make([]Task[int], 5)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			time.Sleep(time.Duration(5-i) * time.Millisecond)
			return i * 10, nil
		}
	}
	got, err := RunAll(context.Background(), 2, tasks)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20, 30, 40}, got)
}

func TestRunAllRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tasks := make([]Task[struct{}], 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		}
	}
	_, err := RunAll(context.Background(), 3, tasks)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunAllFirstErrorCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	var cancelled atomic.Bool
	tasks := []Task[string]{
		func(ctx context.Context) (string, error) {
			return "", boom
		},
		func(ctx context.Context) (string, error) {
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return "", ctx.Err()
			case <-time.After(2 * time.Second):
				return "late", nil
			}
		},
	}
	got, err := RunAll(context.Background(), 2, tasks)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.True(t, cancelled.Load())
}

func TestRunAllEmpty(t *testing.T) {
	got, err := RunAll[int](context.Background(), 4, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
