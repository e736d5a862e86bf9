package retry

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/archivecrawl/crawler/pkg/failure"
	"github.com/archivecrawl/crawler/pkg/timeutil"
)

// Retry runs fn up to retryParam.MaxAttempts times, backing off with
// jitter between attempts, and stops early on the first non-retryable
// error or the first success. T is whatever fn produces on success — an
// HTTP response body, a parsed sitemap, a fetched asset.
func Retry[T any](retryParam RetryParam, fn func() (T, failure.ClassifiedError)) Result[T] {
	var zero T

	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			err: &RetryError{
				Message:   "max attempt cannot be 0",
				Cause:     ErrZeroAttempt,
				Retryable: true,
			},
		}
	}

	backoff := backoffSchedule{
		rng:   rand.New(rand.NewSource(retryParam.RandomSeed)),
		param: retryParam,
	}

	var lastErr failure.ClassifiedError

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		value, err := fn()
		if err == nil {
			return NewSuccessResult(value, attempt)
		}

		lastErr = err

		if !errorIsRetryable(err) {
			return Result[T]{value: zero, err: err, attempts: attempt}
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		backoff.wait(attempt)
	}

	return Result[T]{
		value: zero,
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true, // recoverable at scheduler level
		},
		attempts: retryParam.MaxAttempts,
	}
}

// backoffSchedule computes and sleeps out the delay before the next
// attempt, holding the single *rand.Rand a retry run shares across
// attempts so the jitter sequence stays deterministic under a fixed seed.
type backoffSchedule struct {
	rng   *rand.Rand
	param RetryParam
}

func (b backoffSchedule) wait(attempt int) {
	delay := timeutil.ExponentialBackoffDelay(attempt, b.param.Jitter, *b.rng, b.param.BackoffParam)
	time.Sleep(delay)
}

// retryableError is satisfied by any ClassifiedError that can tell Retry
// whether it's worth trying again, such as RetryError itself.
type retryableError interface {
	failure.ClassifiedError
	IsRetryable() bool
}

// errorIsRetryable reports whether Retry should attempt fn again after
// err. Errors that don't opt into the retryableError interface are
// retried by default, since most classified errors in this codebase are
// transient network/server conditions.
func errorIsRetryable(err failure.ClassifiedError) bool {
	if r, ok := err.(retryableError); ok {
		return r.IsRetryable()
	}
	return true
}
