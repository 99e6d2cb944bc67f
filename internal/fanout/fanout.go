// Package fanout runs independent tasks concurrently under a parallelism
// limit and joins their results in submission order.
package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task produces one result. It must honour ctx cancellation.
type Task[T any] func(ctx context.Context) (T, error)

// RunAll runs every task with at most limit in flight (limit <= 0 means no
// limit). Results are returned in task order. The first failure cancels the
// context shared by the remaining tasks and is returned; no results are
// returned alongside an error.
func RunAll[T any](ctx context.Context, limit int, tasks []Task[T]) ([]T, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	for i, task := range tasks {
		if task == nil {
			return nil, fmt.Errorf("fanout: task %d is nil", i)
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	results := make([]T, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			value, err := task(gctx)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
