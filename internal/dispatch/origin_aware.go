package dispatch

import (
	"context"
	"errors"

	"github.com/archivecrawl/crawler/internal/ratelimit"
)

// ErrRateLimited marks a task result as having been rejected by the
// origin, distinct from a genuine fetch failure. Task closures return
// this (wrapped or not) to signal OriginAwareDispatcher should retry
// rather than give up.
var ErrRateLimited = errors.New("task reported rate limiting")

// OriginAwareDispatcher wraps another Dispatcher, making every task
// await its turn on the origin's rate limiter before admission, and
// resubmitting rate-limited tasks (up to the limiter's retry policy)
// after the limiter's newly grown delay.
type OriginAwareDispatcher[T any] struct {
	inner   Dispatcher[T]
	limiter *ratelimit.Limiter
}

func NewOriginAwareDispatcher[T any](inner Dispatcher[T], limiter *ratelimit.Limiter) *OriginAwareDispatcher[T] {
	return &OriginAwareDispatcher[T]{inner: inner, limiter: limiter}
}

func (d *OriginAwareDispatcher[T]) Run(ctx context.Context, tasks []Task[T]) ([]Result[T], error) {
	wrapped := make([]Task[T], len(tasks))
	for i, task := range tasks {
		task := task
		wrapped[i] = Task[T]{
			Origin: task.Origin,
			Run: func(ctx context.Context) (T, error) {
				return d.runWithRetry(ctx, task)
			},
		}
	}
	return d.inner.Run(ctx, wrapped)
}

func (d *OriginAwareDispatcher[T]) runWithRetry(ctx context.Context, task Task[T]) (T, error) {
	for {
		// AwaitTurn enforces the origin's current delay, which
		// OnRateLimited below has just grown — so looping back here
		// is itself "resubmit after a delay equal to the new
		// current_delay".
		if err := d.limiter.AwaitTurn(ctx, task.Origin); err != nil {
			var zero T
			return zero, err
		}

		value, err := task.Run(ctx)
		if err == nil {
			d.limiter.OnSuccess(task.Origin)
			return value, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return value, err
		}

		failures := d.limiter.OnRateLimited(task.Origin)
		if !d.limiter.ShouldRetry(task.Origin, failures) {
			return value, err
		}
	}
}
