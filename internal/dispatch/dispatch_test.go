package dispatch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/archivecrawl/crawler/internal/dispatch"
	"github.com/archivecrawl/crawler/internal/ratelimit"
)

func TestBoundedDispatcherPreservesOrder(t *testing.T) {
	d := dispatch.NewBoundedDispatcher[int](3)

	tasks := make([]dispatch.Task[int], 20)
	for i := range tasks {
		i := i
		tasks[i] = dispatch.Task[int]{
			Run: func(ctx context.Context) (int, error) {
				time.Sleep(time.Duration(20-i) * time.Millisecond / 4)
				return i, nil
			},
		}
	}

	results, err := d.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range results {
		if r.Value != i {
			t.Errorf("results[%d] = %d, want %d (input order must be preserved)", i, r.Value, i)
		}
	}
}

func TestBoundedDispatcherLimitsConcurrency(t *testing.T) {
	d := dispatch.NewBoundedDispatcher[struct{}](2)

	var current, max atomic.Int64
	tasks := make([]dispatch.Task[struct{}], 10)
	for i := range tasks {
		tasks[i] = dispatch.Task[struct{}]{
			Run: func(ctx context.Context) (struct{}, error) {
				n := current.Add(1)
				for {
					m := max.Load()
					if n <= m || max.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return struct{}{}, nil
			},
		}
	}

	if _, err := d.Run(context.Background(), tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if max.Load() > 2 {
		t.Errorf("observed concurrency %d exceeds limit 2", max.Load())
	}
}

func TestBoundedDispatcherTaskErrorDoesNotHaltSiblings(t *testing.T) {
	d := dispatch.NewBoundedDispatcher[int](4)

	boom := errors.New("boom")
	tasks := []dispatch.Task[int]{
		{Run: func(ctx context.Context) (int, error) { return 1, nil }},
		{Run: func(ctx context.Context) (int, error) { return 0, boom }},
		{Run: func(ctx context.Context) (int, error) { return 3, nil }},
	}

	results, err := d.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Value != 1 || results[0].Err != nil {
		t.Errorf("task 0 unaffected by sibling error, got %+v", results[0])
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("task 1 should carry its own error, got %+v", results[1])
	}
	if results[2].Value != 3 || results[2].Err != nil {
		t.Errorf("task 2 unaffected by sibling error, got %+v", results[2])
	}
}

func TestAdaptiveDispatcherShrinksAndGrows(t *testing.T) {
	var usage atomic.Value
	usage.Store(0.0)

	d := dispatch.NewAdaptiveDispatcher[struct{}](dispatch.AdaptiveParams{
		Base:           4,
		HighWaterMark:  0.8,
		SampleInterval: 5 * time.Millisecond,
		Sampler:        func() float64 { return usage.Load().(float64) },
	})
	defer d.Close()

	usage.Store(0.9)
	waitForLimit(t, d, 3)

	usage.Store(0.1)
	waitForLimit(t, d, 4)
}

func waitForLimit(t *testing.T, d *dispatch.AdaptiveDispatcher[struct{}], want int64) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if d.CurrentLimit() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("limit did not reach %d within deadline, got %d", want, d.CurrentLimit())
}

func TestOriginAwareDispatcherRetriesRateLimitedTasks(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Params{
		BaseDelayMin: time.Millisecond,
		BaseDelayMax: time.Millisecond,
		MaxRetries:   5,
		RandomSeed:   1,
	})
	inner := dispatch.NewBoundedDispatcher[int](2)
	d := dispatch.NewOriginAwareDispatcher[int](inner, limiter)

	var attempts atomic.Int64
	tasks := []dispatch.Task[int]{
		{
			Origin: "a.example",
			Run: func(ctx context.Context) (int, error) {
				n := attempts.Add(1)
				if n < 3 {
					return 0, dispatch.ErrRateLimited
				}
				return 42, nil
			},
		},
	}

	results, err := d.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Err != nil || results[0].Value != 42 {
		t.Errorf("expected eventual success with value 42, got %+v", results[0])
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestOriginAwareDispatcherGivesUpAfterMaxRetries(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Params{
		BaseDelayMin: time.Millisecond,
		BaseDelayMax: time.Millisecond,
		MaxRetries:   2,
		RandomSeed:   1,
	})
	inner := dispatch.NewBoundedDispatcher[int](1)
	d := dispatch.NewOriginAwareDispatcher[int](inner, limiter)

	var attempts atomic.Int64
	tasks := []dispatch.Task[int]{
		{
			Origin: "a.example",
			Run: func(ctx context.Context) (int, error) {
				attempts.Add(1)
				return 0, dispatch.ErrRateLimited
			},
		},
	}

	results, err := d.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(results[0].Err, dispatch.ErrRateLimited) {
		t.Errorf("expected a rate-limited error after giving up, got %+v", results[0])
	}
	if attempts.Load() != 2 {
		t.Errorf("expected exactly 2 attempts (MaxRetries), got %d", attempts.Load())
	}
}
