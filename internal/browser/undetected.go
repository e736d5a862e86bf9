package browser

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// challengeTitleMarkers are substrings of <title> that indicate a
// Cloudflare-style interstitial is still showing.
var challengeTitleMarkers = []string{
	"just a moment",
	"checking your browser",
	"attention required",
	"please wait",
}

// UndetectedPage is the stealth fallback tier: a headed (non-headless)
// Chrome profile with automation flags suppressed, the stealth init
// script injected before first paint, and a poll loop that waits out a
// Cloudflare-style challenge before handing control back to the caller.
type UndetectedPage struct {
	userAgent string
	locale    string
	timezone  string

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewUndetectedPage(userAgent, locale, timezone string) *UndetectedPage {
	return &UndetectedPage{userAgent: userAgent, locale: locale, timezone: timezone}
}

func (p *UndetectedPage) Open(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Run headed: a genuinely headless browser carries fingerprints
		// (missing plugins, specific WebGL vendor strings) that challenge
		// providers check for independent of navigator.webdriver.
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if p.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.userAgent))
	}

	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	p.ctx, p.cancel = chromedp.NewContext(p.allocCtx)

	if err := chromedp.Run(p.ctx); err != nil {
		p.Close()
		return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseLaunchFailure}
	}
	if err := injectStealth(p.ctx); err != nil {
		p.Close()
		return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseLaunchFailure}
	}
	return nil
}

// Navigate loads the target, then polls the page title for a
// Cloudflare-style challenge marker and waits (with synthesized mouse
// movement, which challenge providers use as a liveness signal) until it
// clears or the budget in ctx is exhausted.
func (p *UndetectedPage) Navigate(ctx context.Context, targetURL string, waitUntil WaitUntil, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if navCtx.Err() != nil {
			return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationTimeout}
		}
		return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationFailure}
	}

	return p.waitForChallenge(ctx)
}

// waitForChallenge polls document.title every 500ms, nudging the mouse
// between polls, until the title no longer matches a known challenge
// marker or ctx is exhausted.
func (p *UndetectedPage) waitForChallenge(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var title string
		if err := chromedp.Run(p.ctx, chromedp.Title(&title)); err != nil {
			return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseEvalFailure}
		}
		if !isChallengeTitle(title) {
			return nil
		}

		select {
		case <-ctx.Done():
			return &BrowserError{Message: "challenge still present", Retryable: false, Cause: ErrCauseChallengeTimeout}
		case <-ticker.C:
			_ = chromedp.Run(p.ctx, synthesizeMouseMovement())
		}
	}
}

func isChallengeTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range challengeTitleMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// synthesizeMouseMovement produces a small, randomized mouse drift.
// Challenge providers commonly gate clearance on observing nonzero
// pointer activity, which a motionless headless session never emits.
func synthesizeMouseMovement() chromedp.Action {
	x := float64(200 + rand.Intn(400))
	y := float64(200 + rand.Intn(300))
	return chromedp.MouseEvent("mouseMoved", x, y)
}

func (p *UndetectedPage) Eval(ctx context.Context, expr string) (string, error) {
	var result string
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(expr, &result)); err != nil {
		return "", &BrowserError{Message: err.Error(), Retryable: false, Cause: ErrCauseEvalFailure}
	}
	return result, nil
}

func (p *UndetectedPage) Content(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", &BrowserError{Message: err.Error(), Retryable: false, Cause: ErrCauseContentReadFailure}
	}
	return html, nil
}

func (p *UndetectedPage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	return nil
}

var _ Page = (*ChromePage)(nil)
var _ Page = (*UndetectedPage)(nil)
