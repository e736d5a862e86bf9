// Package dispatch runs batches of crawl tasks under bounded
// concurrency, preserving the caller's submission order in the
// returned results.
package dispatch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// BoundedDispatcher admits at most Limit concurrently running tasks
// via a counting semaphore. The semaphore is held behind an
// atomic.Pointer so Resize can swap it without racing Run's readers.
type BoundedDispatcher[T any] struct {
	sem   atomic.Pointer[semaphore.Weighted]
	limit atomic.Int64
}

func NewBoundedDispatcher[T any](limit int64) *BoundedDispatcher[T] {
	if limit < 1 {
		limit = 1
	}
	d := &BoundedDispatcher[T]{}
	d.sem.Store(semaphore.NewWeighted(limit))
	d.limit.Store(limit)
	return d
}

func (d *BoundedDispatcher[T]) Run(ctx context.Context, tasks []Task[T]) ([]Result[T], error) {
	results := make([]Result[T], len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			sem := d.sem.Load()
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = Result[T]{Err: err}
				return nil
			}
			defer sem.Release(1)

			value, err := task.Run(gctx)
			results[i] = Result[T]{Value: value, Err: err}
			return nil
		})
	}

	// g.Wait's error is always nil here: task failures are packaged
	// into results, never returned from the goroutine, so they never
	// halt sibling tasks.
	_ = g.Wait()
	return results, nil
}

// Resize changes the number of concurrently admitted tasks. In effect
// only for newly admitted tasks; already-running tasks hold a
// reference to the semaphore they acquired from and are unaffected.
func (d *BoundedDispatcher[T]) Resize(limit int64) {
	if limit < 1 {
		limit = 1
	}
	d.sem.Store(semaphore.NewWeighted(limit))
	d.limit.Store(limit)
}

func (d *BoundedDispatcher[T]) Limit() int64 {
	return d.limit.Load()
}
