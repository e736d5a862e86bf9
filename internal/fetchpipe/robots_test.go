package fetchpipe

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/internal/ratelimit"
	"github.com/archivecrawl/crawler/internal/robots"
	"github.com/archivecrawl/crawler/pkg/failure"
)

type fakeRobot struct {
	decision robots.Decision
	err      failure.ClassifiedError
}

func (f fakeRobot) Decide(u url.URL) (robots.Decision, failure.ClassifiedError) {
	f.decision.Url = u
	return f.decision, f.err
}

func TestFetch_RobotsDisallowedSkipsBeforeAnyNetworkWork(t *testing.T) {
	target, err := normalizeurl.Normalize("https://example.com/private", nil, false)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	p := &Pipeline{
		limiter: ratelimit.New(ratelimit.DefaultParams),
		robot:   fakeRobot{decision: robots.Decision{Allowed: false, Reason: robots.DisallowedByRobots}},
	}

	result := p.Fetch(context.Background(), target, "example.com")

	if result.ErrorKind != KindRobotsDisallowed {
		t.Fatalf("ErrorKind = %q, want %q", result.ErrorKind, KindRobotsDisallowed)
	}
	if result.Success() {
		t.Error("Success() = true, want false for a robots-disallowed URL")
	}
}

func TestFetch_RobotsCrawlDelayFeedsLimiter(t *testing.T) {
	target, err := normalizeurl.Normalize("https://example.com/", nil, false)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultParams)
	p := &Pipeline{
		limiter: limiter,
		robot:   fakeRobot{decision: robots.Decision{Allowed: false, Reason: robots.DisallowedByRobots, CrawlDelay: 5 * time.Second}},
	}

	p.Fetch(context.Background(), target, "example.com")

	// A disallowed fetch still applies the crawl-delay floor so a later
	// fetch through a different path on the same host paces correctly.
	start := time.Now()
	if err := limiter.AwaitTurn(context.Background(), "example.com"); err != nil {
		t.Fatalf("AwaitTurn: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 1*time.Second {
		t.Errorf("first AwaitTurn on a fresh origin should not itself wait 5s, elapsed=%v", elapsed)
	}
}

func TestFetch_RobotsInfrastructureErrorTreatedAsAllowed(t *testing.T) {
	target, err := normalizeurl.Normalize("https://example.com/", nil, false)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	p := &Pipeline{
		limiter: ratelimit.New(ratelimit.DefaultParams),
		robot: fakeRobot{err: &robots.RobotsError{
			Message:   "network error",
			Retryable: true,
			Cause:     robots.ErrCauseHttpFetchFailure,
		}},
		params: Params{HTTPTimeout: time.Second},
	}

	result := p.Fetch(context.Background(), target, "example.com")

	if result.ErrorKind == KindRobotsDisallowed {
		t.Error("a robots infrastructure error must not surface as RobotsDisallowed")
	}
}
