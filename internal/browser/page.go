package browser

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

//go:embed assets/stealth.js
var stealthScript string

// Page is the rendering capability consumed by the fetch pipeline's
// rendered-fetch tier. Two implementations exist: a plain chromedp-backed
// Page for ordinary rendered fetches, and an UndetectedPage for origins
// that guard themselves with a bot challenge.
type Page interface {
	// Open allocates the underlying browser/tab. Must be called once
	// before Navigate.
	Open(ctx context.Context) error
	// Navigate loads a URL and waits for waitUntil before returning.
	Navigate(ctx context.Context, targetURL string, waitUntil WaitUntil, timeout time.Duration) error
	// Eval runs a JS expression in the page and returns its string
	// representation.
	Eval(ctx context.Context, expr string) (string, error)
	// Content returns the current serialized DOM (outerHTML of <html>).
	Content(ctx context.Context) (string, error)
	// Close releases the underlying browser/tab.
	Close() error
}

// WaitUntil mirrors config.WaitUntil without importing the config package,
// keeping this package usable independent of CLI/config wiring.
type WaitUntil string

const (
	WaitUntilCommit           WaitUntil = "commit"
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilNetworkIdle      WaitUntil = "networkidle"
)

// ChromePage is the ordinary (non-stealth) chromedp-backed Page.
type ChromePage struct {
	userAgent string
	locale    string
	timezone  string

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewChromePage(userAgent, locale, timezone string) *ChromePage {
	return &ChromePage{userAgent: userAgent, locale: locale, timezone: timezone}
}

func (p *ChromePage) Open(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if p.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.userAgent))
	}

	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	p.ctx, p.cancel = chromedp.NewContext(p.allocCtx)

	tasks := chromedp.Tasks{}
	if p.timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(p.timezone))
	}

	if err := chromedp.Run(p.ctx, tasks...); err != nil {
		p.Close()
		return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseLaunchFailure}
	}
	return nil
}

func (p *ChromePage) Navigate(ctx context.Context, targetURL string, waitUntil WaitUntil, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.Navigate(targetURL),
	}
	switch waitUntil {
	case WaitUntilLoad, WaitUntilNetworkIdle:
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	case WaitUntilDOMContentLoaded:
		tasks = append(tasks, chromedp.WaitVisible("body", chromedp.ByQuery))
	case WaitUntilCommit:
		// no additional wait beyond navigation commit
	default:
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	if err := chromedp.Run(navCtx, tasks...); err != nil {
		if navCtx.Err() != nil {
			return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationTimeout}
		}
		return &BrowserError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationFailure}
	}
	return nil
}

func (p *ChromePage) Eval(ctx context.Context, expr string) (string, error) {
	var result string
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(expr, &result)); err != nil {
		return "", &BrowserError{Message: err.Error(), Retryable: false, Cause: ErrCauseEvalFailure}
	}
	return result, nil
}

func (p *ChromePage) Content(ctx context.Context) (string, error) {
	var content string
	if err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(actionCtx context.Context) error {
		node, err := domOuterHTML(actionCtx)
		content = node
		return err
	})); err != nil {
		return "", &BrowserError{Message: err.Error(), Retryable: false, Cause: ErrCauseContentReadFailure}
	}
	return content, nil
}

func (p *ChromePage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	return nil
}

// domOuterHTML fetches the document's outer HTML via the CDP DOM domain,
// matching what chromedp.OuterHTML does but inlined so Content can wrap
// the error with our own classification.
func domOuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// injectStealth registers the stealth script to run before every page
// document. Shared by UndetectedPage; ChromePage never calls this.
func injectStealth(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(actionCtx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(actionCtx)
		return err
	}))
}
