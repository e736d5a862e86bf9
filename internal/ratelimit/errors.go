package ratelimit

import "errors"

// ErrWaitCanceled is returned by AwaitTurn when ctx is canceled while
// the calling goroutine is still waiting out an origin's delay.
var ErrWaitCanceled = errors.New("rate limiter wait canceled")
