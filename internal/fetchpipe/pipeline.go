package fetchpipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/archivecrawl/crawler/internal/assets"
	"github.com/archivecrawl/crawler/internal/browser"
	"github.com/archivecrawl/crawler/internal/cache"
	"github.com/archivecrawl/crawler/internal/changedetect"
	"github.com/archivecrawl/crawler/internal/extractor"
	"github.com/archivecrawl/crawler/internal/mdconvert"
	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/internal/ratelimit"
	"github.com/archivecrawl/crawler/internal/robots"
	"github.com/archivecrawl/crawler/internal/sanitizer"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

/*
Responsibilities

- Validate a URL and consult the cache before doing any network work
- Pace requests per origin through the rate limiter
- Escalate a fetch through HTTP, rendered-browser, and undetected-browser
  tiers only as far as each page actually requires
- Assemble a Result: Markdown content plus the links discovered on the
  page, re-classified as internal/external relative to baseDomain

A Pipeline owns no crawl-wide state beyond its collaborators: it fetches
exactly one URL per Fetch call. The caller (the link mapper) owns the
frontier, visited set, and depth bookkeeping.
*/

// PageFactory allocates a fresh browser.Page for one fetch. Separate
// factories are used for the rendered and undetected tiers since they
// construct different concrete types (browser.ChromePage vs.
// browser.UndetectedPage).
type PageFactory func(userAgent, locale, timezone string) browser.Page

type Pipeline struct {
	sink telemetry.Sink

	store   *cache.Store
	limiter *ratelimit.Limiter
	robot   robots.Robot

	extractor extractor.DomExtractor
	sanitizer sanitizer.HtmlSanitizer
	converter mdconvert.ConvertRule
	resolver  assets.Resolver

	http *httpTier

	renderedFactory   PageFactory
	undetectedFactory PageFactory

	params Params
}

// robot is optional: a nil Robot skips the admission check entirely, so
// callers that have not wired robots.txt enforcement still get a working
// Pipeline.
func NewPipeline(
	sink telemetry.Sink,
	store *cache.Store,
	limiter *ratelimit.Limiter,
	robot robots.Robot,
	dom extractor.DomExtractor,
	htmlSanitizer sanitizer.HtmlSanitizer,
	converter mdconvert.ConvertRule,
	resolver assets.Resolver,
	renderedFactory PageFactory,
	undetectedFactory PageFactory,
	params Params,
) *Pipeline {
	return &Pipeline{
		sink:              sink,
		store:             store,
		limiter:           limiter,
		robot:             robot,
		extractor:         dom,
		sanitizer:         htmlSanitizer,
		converter:         converter,
		resolver:          resolver,
		http:              newHTTPTier(params.HTTPTimeout),
		renderedFactory:   renderedFactory,
		undetectedFactory: undetectedFactory,
		params:            params,
	}
}

// Fetch runs the full S1-S6 pipeline against a single already-normalized
// URL. baseDomain is the crawl's root domain, used to classify discovered
// links as internal or external.
func (p *Pipeline) Fetch(ctx context.Context, target normalizeurl.Canonical, baseDomain string) Result {
	// S1: validate, then consult robots.txt before any network work or
	// cache lookup so a disallowed URL is never cached or fetched.
	if !normalizeurl.Validate(target) {
		return p.fail(target, KindValidationError, "url failed validation")
	}

	host := normalizeurl.FullHost(target)

	if p.robot != nil {
		decision, err := p.robot.Decide(target.URL())
		if err != nil {
			// Robots infrastructure failures (can't fetch/parse robots.txt)
			// are advisory: treat the URL as allowed rather than aborting
			// the crawl over a robots.txt the site never reliably serves.
			if p.sink != nil {
				p.sink.RecordError(time.Now(), "fetchpipe", "Pipeline.Fetch", telemetry.CauseNetworkFailure, err.Error(), []telemetry.Attribute{
					telemetry.NewAttr(telemetry.AttrURL, target.String()),
				})
			}
		} else {
			if decision.CrawlDelay > 0 {
				p.limiter.SetCrawlDelay(host, decision.CrawlDelay)
			}
			if !decision.Allowed {
				return p.failRobotsDisallowed(target, string(decision.Reason))
			}
		}
	}

	if p.store != nil && p.params.CacheMode.CanRead() {
		if rec, ok, err := p.store.Get(ctx, target.String()); err == nil && ok {
			result, convErr := p.resultFromCacheRecord(target, rec)
			if convErr == nil {
				return result
			}
		}
	}

	// S2: origin gate.
	if err := p.limiter.AwaitTurn(ctx, host); err != nil {
		return p.fail(target, KindNetworkTimeout, "rate limiter wait canceled")
	}

	if kind := binaryKindOf(target); kind != "" {
		result, fpErr := p.fetchBinaryDocument(ctx, target, kind)
		if fpErr != nil {
			p.limiter.OnRateLimited(host)
			return p.failWithError(target, kindFromFetchError(fpErr), fpErr)
		}
		p.limiter.OnSuccess(host)
		if p.store != nil && p.params.CacheMode.CanWrite() {
			p.writeCache(ctx, target, result)
		}
		return result
	}

	body, statusCode, _, tier, fpErr := p.fetchBody(ctx, target)
	if fpErr != nil {
		p.limiter.OnRateLimited(host)
		return p.failWithError(target, kindFromFetchError(fpErr), fpErr)
	}
	p.limiter.OnSuccess(host)

	result, extractErr := p.assemble(ctx, target, baseDomain, body, statusCode, tier)
	if extractErr != nil {
		return p.failWithError(target, KindExtractionError, extractErr)
	}

	if p.store != nil && p.params.CacheMode.CanWrite() {
		p.writeCache(ctx, target, result)
	}

	return result
}

// fetchBody runs S3-S5b: HTTP-first (optional), pre-render challenge
// probe, rendered fetch, and undetected-browser fallback, escalating
// only as far as each page requires.
func (p *Pipeline) fetchBody(ctx context.Context, target normalizeurl.Canonical) ([]byte, int, map[string]string, Tier, *FetchPipeError) {
	u := target.URL()

	if p.params.HTTPFirst {
		resp, err := p.http.fetch(ctx, u, p.params.UserAgent, p.params.Headers)
		if err == nil && resp.statusCode < 400 && !needsBrowserTier(resp.body) {
			return resp.body, resp.statusCode, resp.headers, TierHTTP, nil
		}
	}

	if p.params.CloudflareBypass && probeChallenge(ctx, u, p.params.UserAgent, p.params.CloudflareWait) {
		body, err := p.undetectedFetch(ctx, target)
		if err != nil {
			return nil, 0, nil, TierUndetected, err
		}
		return body, 200, nil, TierUndetected, nil
	}

	body, err := p.renderedFetch(ctx, target)
	if err == nil {
		return body, 200, nil, TierRendered, nil
	}

	if p.params.UseUndetectedFallback {
		body, undetectedErr := p.undetectedFetch(ctx, target)
		if undetectedErr == nil {
			return body, 200, nil, TierUndetected, nil
		}
		return nil, 0, nil, TierUndetected, undetectedErr
	}

	return nil, 0, nil, TierRendered, err
}

// renderedFetch runs S5a: navigate with a fresh browser context, detect
// a challenge via the page title/content, wait it out (or fail fast when
// CloudflareBypass is off), run any post-challenge scripts/scroll/wait-for,
// then return the rendered DOM.
func (p *Pipeline) renderedFetch(ctx context.Context, target normalizeurl.Canonical) ([]byte, *FetchPipeError) {
	if p.renderedFactory == nil {
		return nil, &FetchPipeError{Message: "no rendered page factory configured", Retryable: false, Cause: ErrCauseRenderTier}
	}

	page := p.renderedFactory(p.params.UserAgent, p.params.Locale, p.params.Timezone)
	defer page.Close()

	if err := page.Open(ctx); err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseRenderTier}
	}

	waitUntil := browser.WaitUntil(p.params.WaitUntil)
	if err := page.Navigate(ctx, target.String(), waitUntil, p.params.PageTimeout); err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseRenderTier}
	}

	title, _ := page.Eval(ctx, "document.title")
	content, err := page.Content(ctx)
	if err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseRenderTier}
	}

	if isChallengeSignal(title, content) {
		if !p.params.CloudflareBypass {
			return nil, &FetchPipeError{Message: "cloudflare challenge detected, bypass disabled", Retryable: false, Cause: ErrCauseCloudflare}
		}
		if err := p.waitOutChallenge(ctx, page); err != nil {
			return nil, err
		}
		content, err = page.Content(ctx)
		if err != nil {
			return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseRenderTier}
		}
	}

	if p.params.ScanFullPage {
		p.scrollPage(ctx, page)
		content, _ = page.Content(ctx)
	}

	if p.params.WaitFor != "" {
		p.waitFor(ctx, page, p.params.WaitFor)
		content, _ = page.Content(ctx)
	}

	return []byte(content), nil
}

// undetectedFetch runs S5b against an UndetectedPage, which already
// polls out a challenge internally during Navigate.
func (p *Pipeline) undetectedFetch(ctx context.Context, target normalizeurl.Canonical) ([]byte, *FetchPipeError) {
	if p.undetectedFactory == nil {
		return nil, &FetchPipeError{Message: "no undetected page factory configured", Retryable: false, Cause: ErrCauseUndetectedTier}
	}

	page := p.undetectedFactory(p.params.UserAgent, p.params.Locale, p.params.Timezone)
	defer page.Close()

	if err := page.Open(ctx); err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseUndetectedTier}
	}

	waitUntil := browser.WaitUntil(p.params.WaitUntil)
	waitCtx, cancel := context.WithTimeout(ctx, p.params.PageTimeout+p.params.CloudflareWait)
	defer cancel()
	if err := page.Navigate(waitCtx, target.String(), waitUntil, p.params.PageTimeout); err != nil {
		var browserErr *browser.BrowserError
		if errors.As(err, &browserErr) {
			return nil, &FetchPipeError{Message: err.Error(), Retryable: browserErr.Severity() == failure.SeverityRecoverable, Cause: ErrCauseCloudflare}
		}
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseUndetectedTier}
	}

	content, err := page.Content(ctx)
	if err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseUndetectedTier}
	}
	return []byte(content), nil
}

func (p *Pipeline) waitOutChallenge(ctx context.Context, page browser.Page) *FetchPipeError {
	deadline := time.Now().Add(p.params.CloudflareWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return &FetchPipeError{Message: "context canceled while waiting for challenge", Retryable: false, Cause: ErrCauseCloudflare}
		case <-ticker.C:
		}
		title, _ := page.Eval(ctx, "document.title")
		content, _ := page.Content(ctx)
		if !isChallengeSignal(title, content) {
			return nil
		}
	}
	return &FetchPipeError{Message: "challenge did not clear before wait expired", Retryable: false, Cause: ErrCauseCloudflare}
}

func (p *Pipeline) scrollPage(ctx context.Context, page browser.Page) {
	steps := p.params.MaxScrollSteps
	if steps <= 0 {
		steps = 10
	}
	for i := 0; i < steps; i++ {
		_, _ = page.Eval(ctx, "window.scrollTo(0, document.body.scrollHeight)")
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.params.ScrollDelay):
		}
	}
}

// waitFor polls a CSS selector ("css:...") or a JS predicate ("js:...")
// until it is satisfied or ctx is exhausted.
func (p *Pipeline) waitFor(ctx context.Context, page browser.Page, spec string) {
	expr := waitForExpr(spec)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		result, _ := page.Eval(ctx, expr)
		if result == "true" {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func waitForExpr(spec string) string {
	if strings.HasPrefix(spec, "css:") {
		selector := strings.TrimPrefix(spec, "css:")
		return fmt.Sprintf("!!document.querySelector(%q)", selector)
	}
	if strings.HasPrefix(spec, "js:") {
		return strings.TrimPrefix(spec, "js:")
	}
	return "true"
}

func isChallengeSignal(title, content string) bool {
	return looksLikeChallengeContent(title) || looksLikeChallengeContent(content)
}

func kindFromFetchError(err *FetchPipeError) ErrorKind {
	switch err.Cause {
	case ErrCauseCloudflare:
		return KindCloudflareBlocked
	case ErrCauseHTTPTier:
		return KindHTTPError
	case ErrCauseRenderTier, ErrCauseUndetectedTier:
		return KindNavigationError
	default:
		return KindUnknown
	}
}

// assemble runs S6: sanitize, convert to Markdown, resolve and
// locally mirror image assets, and re-classify the discovered links
// against baseDomain (or host-equality, when SameHostOnly is set).
func (p *Pipeline) assemble(ctx context.Context, target normalizeurl.Canonical, baseDomain string, body []byte, statusCode int, tier Tier) (Result, failure.ClassifiedError) {
	u := target.URL()

	extraction, err := p.extractor.Extract(u, body)
	if err != nil {
		return Result{}, err
	}

	sanitized, err := p.sanitizer.Sanitize(extraction.ContentNode)
	if err != nil {
		return Result{}, err
	}

	converted, err := p.converter.Convert(sanitized)
	if err != nil {
		return Result{}, err
	}

	links := p.classifyLinks(target, baseDomain, converted.GetLinkRefs())

	markdownContent := converted.GetMarkdownContent()
	if p.resolver != nil && p.params.AssetOutputDir != "" {
		resolveParam := assets.NewResolveParam(p.params.AssetOutputDir, p.params.MaxAssetSize, p.params.AssetHashAlgo)
		assetfulDoc, resolveErr := p.resolver.Resolve(ctx, u, converted, resolveParam, p.params.AssetRetry)
		if resolveErr == nil {
			markdownContent = assetfulDoc.Content()
		}
		// A failed resolve is non-fatal: the resolver itself already
		// recorded the failure through its own telemetry.Sink, so the page
		// is still archived with its original remote image URLs.
	}

	return Result{
		URL:             target,
		MarkdownContent: markdownContent,
		Links:           links,
		Metadata:        extraction.Metadata,
		Media:           extraction.Media,
		Tables:          extraction.Tables,
		StatusCode:      statusCode,
		Tier:            tier,
		ErrorKind:       KindNone,
		FetchedAt:       time.Now(),
	}, nil
}

func (p *Pipeline) classifyLinks(base normalizeurl.Canonical, baseDomain string, refs []mdconvert.LinkRef) []normalizeurl.Canonical {
	baseVal := base
	var out []normalizeurl.Canonical
	for _, ref := range refs {
		if ref.GetKind() != mdconvert.KindNavigation {
			continue
		}
		normalized, err := normalizeurl.Normalize(ref.GetRaw(), &baseVal, p.params.PreserveURLFragment)
		if err != nil {
			continue
		}
		if !normalizeurl.Validate(normalized) {
			continue
		}

		linkDomain := normalizeurl.BaseDomain(normalized)
		if p.params.ExcludeSocialMediaLinks && isSocialMediaHost(linkDomain) {
			continue
		}

		internal := normalizeurl.IsInternal(normalized, baseDomain)
		if p.params.SameHostOnly {
			internal = normalizeurl.FullHost(normalized) == normalizeurl.FullHost(base)
		}
		if p.params.ExcludeExternalLinks && !internal {
			continue
		}

		out = append(out, normalized)
	}
	return out
}

func (p *Pipeline) fail(target normalizeurl.Canonical, kind ErrorKind, message string) Result {
	if p.sink != nil {
		p.sink.RecordError(time.Now(), "fetchpipe", "Pipeline.Fetch", telemetry.CauseInvariantViolation, message, []telemetry.Attribute{
			telemetry.NewAttr(telemetry.AttrURL, target.String()),
		})
	}
	return Result{URL: target, ErrorKind: kind, ErrorMessage: message, FetchedAt: time.Now()}
}

// failRobotsDisallowed reports a non-fatal skip: the URL is well-formed
// and reachable, robots.txt simply forbids it.
func (p *Pipeline) failRobotsDisallowed(target normalizeurl.Canonical, reason string) Result {
	message := fmt.Sprintf("%s: %s", ErrCauseRobotsDisallow, reason)
	if p.sink != nil {
		p.sink.RecordError(time.Now(), "fetchpipe", "Pipeline.Fetch", telemetry.CausePolicyDisallow, message, []telemetry.Attribute{
			telemetry.NewAttr(telemetry.AttrURL, target.String()),
		})
	}
	return Result{URL: target, ErrorKind: KindRobotsDisallowed, ErrorMessage: message, FetchedAt: time.Now()}
}

func (p *Pipeline) failWithError(target normalizeurl.Canonical, kind ErrorKind, err failure.ClassifiedError) Result {
	if p.sink != nil {
		cause := telemetry.CauseUnknown
		var fpErr *FetchPipeError
		if errors.As(err, &fpErr) {
			cause = mapFetchPipeErrorToMetadataCause(fpErr)
		}
		p.sink.RecordError(time.Now(), "fetchpipe", "Pipeline.Fetch", cause, err.Error(), []telemetry.Attribute{
			telemetry.NewAttr(telemetry.AttrURL, target.String()),
		})
	}
	return Result{URL: target, ErrorKind: kind, ErrorMessage: err.Error(), FetchedAt: time.Now()}
}

// cacheRecordMeta is the JSON shape stored in cache.Record.MetadataJSON,
// carrying the fields a Result needs beyond raw Markdown content.
type cacheRecordMeta struct {
	Links      []string               `json:"links"`
	StatusCode int                    `json:"statusCode"`
	Metadata   extractor.PageMetadata `json:"metadata"`
	Media      []extractor.MediaAsset `json:"media"`
	Tables     []extractor.TableData  `json:"tables"`
}

func (p *Pipeline) resultFromCacheRecord(target normalizeurl.Canonical, rec cache.Record) (Result, error) {
	var meta cacheRecordMeta
	if err := json.Unmarshal([]byte(rec.MetadataJSON), &meta); err != nil {
		return Result{}, err
	}

	links := make([]normalizeurl.Canonical, 0, len(meta.Links))
	for _, raw := range meta.Links {
		normalized, err := normalizeurl.Normalize(raw, nil, p.params.PreserveURLFragment)
		if err != nil {
			continue
		}
		links = append(links, normalized)
	}

	return Result{
		URL:             target,
		MarkdownContent: []byte(rec.Content),
		Links:           links,
		Metadata:        meta.Metadata,
		Media:           meta.Media,
		Tables:          meta.Tables,
		StatusCode:      meta.StatusCode,
		FromCache:       true,
		Tier:            TierCache,
		ErrorKind:       KindNone,
		FetchedAt:       rec.AccessedAt,
	}, nil
}

func (p *Pipeline) writeCache(ctx context.Context, target normalizeurl.Canonical, result Result) {
	p.recordChange(ctx, target, result)

	links := make([]string, 0, len(result.Links))
	for _, link := range result.Links {
		links = append(links, link.String())
	}
	meta := cacheRecordMeta{
		Links:      links,
		StatusCode: result.StatusCode,
		Metadata:   result.Metadata,
		Media:      result.Media,
		Tables:     result.Tables,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return
	}

	if err := p.store.Set(ctx, target.String(), string(result.MarkdownContent), string(metaJSON), p.params.CacheTTLHours); err != nil && p.sink != nil {
		p.sink.RecordError(time.Now(), "fetchpipe", "Pipeline.writeCache", telemetry.CauseStorageFailure, err.Error(), []telemetry.Attribute{
			telemetry.NewAttr(telemetry.AttrURL, target.String()),
		})
	}
}

// recordChange compares result's Markdown against whatever is already
// cached for target (a row left over from an earlier crawl of the same
// URL, since writeCache only runs after a cache miss on this attempt)
// and records the diff as an artifact when one exists. It is a
// best-effort observability step: a read failure or an absent previous
// record is silently skipped rather than treated as an error.
func (p *Pipeline) recordChange(ctx context.Context, target normalizeurl.Canonical, result Result) {
	if p.sink == nil {
		return
	}
	prev, ok, err := p.store.Get(ctx, target.String())
	if err != nil || !ok {
		return
	}

	diff := changedetect.Detect(string(result.MarkdownContent), prev.Content, changedetect.Options{TrimLines: true})
	if diff.Similarity >= 1.0 {
		return
	}

	p.sink.RecordArtifact(telemetry.ArtifactMarkdown, target.String(), []telemetry.Attribute{
		telemetry.NewAttr(telemetry.AttrURL, target.String()),
		telemetry.NewAttr(telemetry.AttrSimilarity, fmt.Sprintf("%.4f", diff.Similarity)),
		telemetry.NewAttr(telemetry.AttrLinesAdded, fmt.Sprintf("%d", len(diff.Added))),
		telemetry.NewAttr(telemetry.AttrLinesRemoved, fmt.Sprintf("%d", len(diff.Removed))),
	})
}
