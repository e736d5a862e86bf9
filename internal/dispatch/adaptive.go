package dispatch

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"time"
)

// MemSampler reports the current resident-memory percentage used,
// e.g. heap in use divided by a configured ceiling. Swappable for
// tests; DefaultMemSampler reads runtime.MemStats.
type MemSampler func() float64

// DefaultMemSampler approximates memory pressure as heap-in-use over
// the Go runtime's own soft memory limit (GOMEMLIMIT / debug.SetMemoryLimit),
// falling back to a fixed 1 GiB ceiling when no limit is configured.
func DefaultMemSampler() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ceiling := uint64(1 << 30) // 1 GiB
	// debug.SetMemoryLimit(-1) reads the current limit without changing it.
	if softLimit := debug.SetMemoryLimit(-1); softLimit > 0 && softLimit != math.MaxInt64 {
		ceiling = uint64(softLimit)
	}

	return float64(stats.HeapInuse) / float64(ceiling)
}

// AdaptiveDispatcher wraps a BoundedDispatcher and resizes its
// concurrency limit in response to sampled memory pressure: it shrinks
// (never below 1) above HighWaterMark, and grows back toward Base
// below HalfMark (HighWaterMark / 2).
type AdaptiveDispatcher[T any] struct {
	inner   *BoundedDispatcher[T]
	base    int64
	high    float64
	sample  MemSampler
	period  time.Duration
	stop    chan struct{}
	stopped chan struct{}
}

type AdaptiveParams struct {
	Base           int64
	HighWaterMark  float64 // fraction, e.g. 0.85
	SampleInterval time.Duration
	Sampler        MemSampler // defaults to DefaultMemSampler
}

func NewAdaptiveDispatcher[T any](params AdaptiveParams) *AdaptiveDispatcher[T] {
	if params.Base < 1 {
		params.Base = 1
	}
	if params.HighWaterMark <= 0 {
		params.HighWaterMark = 0.85
	}
	if params.SampleInterval <= 0 {
		params.SampleInterval = time.Second
	}
	if params.Sampler == nil {
		params.Sampler = DefaultMemSampler
	}

	d := &AdaptiveDispatcher[T]{
		inner:   NewBoundedDispatcher[T](params.Base),
		base:    params.Base,
		high:    params.HighWaterMark,
		sample:  params.Sampler,
		period:  params.SampleInterval,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.samplerLoop()
	return d
}

func (d *AdaptiveDispatcher[T]) samplerLoop() {
	defer close(d.stopped)
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	halfMark := d.high / 2
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			usage := d.sample()
			current := d.inner.Limit()
			switch {
			case usage > d.high && current > 1:
				d.inner.Resize(current - 1)
			case usage < halfMark && current < d.base:
				d.inner.Resize(current + 1)
			}
		}
	}
}

// Close stops the background sampler. It does not cancel in-flight
// Run calls.
func (d *AdaptiveDispatcher[T]) Close() {
	close(d.stop)
	<-d.stopped
}

func (d *AdaptiveDispatcher[T]) Run(ctx context.Context, tasks []Task[T]) ([]Result[T], error) {
	return d.inner.Run(ctx, tasks)
}

func (d *AdaptiveDispatcher[T]) CurrentLimit() int64 {
	return d.inner.Limit()
}
