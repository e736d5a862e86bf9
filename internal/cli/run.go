package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/archivecrawl/crawler/internal/assets"
	"github.com/archivecrawl/crawler/internal/browser"
	"github.com/archivecrawl/crawler/internal/cache"
	"github.com/archivecrawl/crawler/internal/config"
	"github.com/archivecrawl/crawler/internal/dispatch"
	"github.com/archivecrawl/crawler/internal/export"
	"github.com/archivecrawl/crawler/internal/extractor"
	"github.com/archivecrawl/crawler/internal/fetchpipe"
	"github.com/archivecrawl/crawler/internal/mapper"
	"github.com/archivecrawl/crawler/internal/mdconvert"
	"github.com/archivecrawl/crawler/internal/monitor"
	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/internal/ratelimit"
	"github.com/archivecrawl/crawler/internal/robots"
	"github.com/archivecrawl/crawler/internal/sanitizer"
	"github.com/archivecrawl/crawler/internal/sitemap"
	"github.com/archivecrawl/crawler/internal/storage"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/hashutil"
	"github.com/archivecrawl/crawler/pkg/retry"
	"github.com/archivecrawl/crawler/pkg/timeutil"
)

// maxAssetSize caps how large a single downloaded image may be before
// the resolver discards it as oversized; docs-crawler has no config
// knob for this yet, so every run uses the same ceiling.
const maxAssetSize = 10 * 1024 * 1024

// runCrawl wires every collaborator package into one crawl run against
// cfg's seed URLs and drives it to completion: traversal, then export of
// whatever the mapper's tree collected.
func runCrawl(cfg config.Config) error {
	sink := telemetry.NewRecorder("crawl", telemetry.NewLogSink(os.Stdout))

	store, err := openCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	limiter := ratelimit.New(ratelimit.Params{
		BaseDelayMin: cfg.BaseDelay(),
		BaseDelayMax: cfg.BaseDelay() + cfg.Jitter(),
		MaxDelay:     cfg.BackoffMaxDuration(),
		MaxRetries:   cfg.MaxAttempt(),
		RandomSeed:   cfg.RandomSeed(),
	})

	robot := robots.NewCachedRobot(sink)
	robot.Init(cfg.UserAgent())

	dom := extractor.NewDomExtractor(sink, extractParamFromConfig(cfg))
	htmlSanitizer := sanitizer.NewHTMLSanitizer(sink)
	converter := mdconvert.NewRule(sink)
	assetResolver := assets.NewLocalResolver(sink, &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutS()) * time.Second}, cfg.UserAgent())

	renderedFactory := fetchpipe.PageFactory(func(userAgent, locale, timezone string) browser.Page {
		return browser.NewChromePage(userAgent, locale, timezone)
	})
	var undetectedFactory fetchpipe.PageFactory
	if cfg.UseUndetectedFallback() {
		undetectedFactory = func(userAgent, locale, timezone string) browser.Page {
			return browser.NewUndetectedPage(userAgent, locale, timezone)
		}
	}

	pipeline := fetchpipe.NewPipeline(
		sink,
		store,
		limiter,
		robot,
		dom,
		htmlSanitizer,
		converter,
		&assetResolver,
		renderedFactory,
		undetectedFactory,
		fetchpipeParamsFromConfig(cfg),
	)

	dispatcher := dispatch.NewBoundedDispatcher[fetchpipe.Result](int64(cfg.Concurrency()))
	mon := monitor.New()

	m := mapper.New(pipeline, dispatcher, mon, mapper.Params{
		MaxDepth:      cfg.MaxDepth(),
		MaxPages:      cfg.MaxPages(),
		MaxConcurrent: int64(cfg.Concurrency()),
	})
	m.WithSitemap(sitemap.New(nil))

	seeds := cfg.SeedURLs()
	if len(seeds) == 0 {
		return fmt.Errorf("no seed URLs in config")
	}
	seed, err := normalizeurl.Normalize(seeds[0].String(), nil, cfg.PreserveURLFragment())
	if err != nil {
		return fmt.Errorf("normalizing seed URL: %w", err)
	}
	baseDomain := seed.Host()

	startedAt := time.Now()
	ctx := context.Background()
	tree := m.Build(ctx, seed, baseDomain)
	elapsed := time.Since(startedAt)

	results := tree.Results()
	fmt.Printf("Crawl finished: %d pages discovered, %d fetched, elapsed %v\n", tree.Size(), len(results), elapsed)

	if cfg.DryRun() {
		fmt.Println("Dry run: skipping export")
		return nil
	}

	storageSink := storage.NewLocalSink(sink)
	exporter := export.NewExporter(sink, &storageSink, hashutil.HashAlgoSHA256)
	reports := exporter.Export(ctx, results, []export.Destination{
		export.NewDestination(export.FormatMarkdown, cfg.OutputDir()),
	})
	for _, report := range reports {
		fmt.Printf("export %s: wrote %d, failed %d\n", report.Destination().Format(), report.Written(), report.Failed())
	}

	return nil
}

// openCacheStore opens the on-disk cache unless the configured mode
// bypasses it entirely, in which case the pipeline runs with a nil
// store (every read/write gated by cache.Mode.CanRead/CanWrite is
// skipped regardless, but avoiding the open call also avoids creating
// an unused database file for a crawl that never touches the cache).
func openCacheStore(cfg config.Config) (*cache.Store, error) {
	if cacheModeFromConfig(cfg.CacheMode()) == cache.ModeBypass {
		return nil, nil
	}
	path := filepath.Join(cfg.OutputDir(), ".crawl-cache.db")
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return nil, err
	}
	return cache.Open(path)
}

// cacheModeFromConfig converts config's string-keyed CacheMode (the
// form a CLI flag or JSON config file naturally carries) to the
// fetch pipeline's int-enum cache.Mode.
func cacheModeFromConfig(mode config.CacheMode) cache.Mode {
	switch mode {
	case config.CacheModeCached:
		return cache.ModeCached
	case config.CacheModeReadOnly:
		return cache.ModeReadOnly
	case config.CacheModeWriteOnly:
		return cache.ModeWriteOnly
	default:
		return cache.ModeBypass
	}
}

func extractParamFromConfig(cfg config.Config) extractor.ExtractParam {
	return extractor.ExtractParam{
		LinkDensityThreshold: cfg.LinkDensityThreshold(),
		BodySpecificityBias:  cfg.BodySpecificityBias(),

		ScoreMultiplierNonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
		ScoreMultiplierParagraphs:           cfg.ScoreMultiplierParagraphs(),
		ScoreMultiplierHeadings:             cfg.ScoreMultiplierHeadings(),
		ScoreMultiplierCodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
		ScoreMultiplierListItems:            cfg.ScoreMultiplierListItems(),

		ThresholdMinNonWhitespace:    cfg.ThresholdMinNonWhitespace(),
		ThresholdMinHeadings:         cfg.ThresholdMinHeadings(),
		ThresholdMinParagraphsOrCode: cfg.ThresholdMinParagraphsOrCode(),
		ThresholdMaxLinkDensity:      cfg.ThresholdMaxLinkDensity(),
	}
}

func fetchpipeParamsFromConfig(cfg config.Config) fetchpipe.Params {
	return fetchpipe.Params{
		UserAgent: cfg.UserAgent(),
		Locale:    cfg.Locale(),
		Timezone:  cfg.Timezone(),
		Headers:   cfg.Headers(),
		Cookies:   cfg.Cookies(),

		CacheMode:     cacheModeFromConfig(cfg.CacheMode()),
		CacheTTLHours: cfg.CacheTTLHours(),

		WaitUntil:   fetchpipe.WaitUntil(cfg.WaitUntil()),
		PageTimeout: time.Duration(cfg.PageTimeoutMs()) * time.Millisecond,
		HTTPFirst:   cfg.HTTPFirst(),
		HTTPTimeout: time.Duration(cfg.HTTPTimeoutS()) * time.Second,

		UseUndetectedFallback: cfg.UseUndetectedFallback(),
		CloudflareBypass:      cfg.CloudflareBypass(),
		CloudflareWait:        time.Duration(cfg.CloudflareWaitMs()) * time.Millisecond,

		PreserveURLFragment: cfg.PreserveURLFragment(),

		ScanFullPage:   cfg.ScanFullPage(),
		ScrollDelay:    time.Duration(cfg.ScrollDelayS() * float64(time.Second)),
		MaxScrollSteps: cfg.MaxScrollSteps(),
		WaitFor:        cfg.WaitFor(),

		ExcludeExternalLinks:    cfg.ExcludeExternalLinks(),
		ExcludeSocialMediaLinks: cfg.ExcludeSocialMediaLinks(),
		SameHostOnly:            cfg.SameHostOnly(),

		AssetOutputDir: cfg.OutputDir(),
		MaxAssetSize:   maxAssetSize,
		AssetHashAlgo:  hashutil.HashAlgoSHA256,
		AssetRetry: retry.NewRetryParam(
			cfg.BaseDelay(),
			cfg.Jitter(),
			cfg.RandomSeed(),
			cfg.MaxAttempt(),
			timeutil.NewBackoffParam(cfg.BaseDelay(), 2.0, cfg.BackoffMaxDuration()),
		),
	}
}
