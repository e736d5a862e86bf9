package dispatch

import "context"

// Task is one unit of work submitted to a Dispatcher. Origin identifies
// the host/origin the task's work belongs to; dispatchers that don't
// care about origin (BoundedDispatcher, AdaptiveDispatcher) ignore it.
type Task[T any] struct {
	Origin string
	Run    func(ctx context.Context) (T, error)
}

// Result is a task's outcome. A non-nil Err never halts sibling tasks;
// it is simply packaged into the result slot at the task's original
// index.
type Result[T any] struct {
	Value T
	Err   error
}

// Dispatcher runs a batch of tasks with bounded concurrency and
// returns their results in the same order the tasks were submitted,
// not the order they completed.
type Dispatcher[T any] interface {
	Run(ctx context.Context, tasks []Task[T]) ([]Result[T], error)
}
