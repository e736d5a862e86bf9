package fetchpipe

import (
	"time"

	"github.com/archivecrawl/crawler/internal/cache"
	"github.com/archivecrawl/crawler/internal/extractor"
	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/pkg/hashutil"
	"github.com/archivecrawl/crawler/pkg/retry"
)

// Result is the outcome of a single Fetch call. On success ErrorKind is
// KindNone and MarkdownContent/Links are populated; on failure ErrorKind
// names why and MarkdownContent/Links are empty. Metadata/Media/Tables
// are best-effort: a page that doesn't carry OpenGraph tags, media, or
// tables simply reports them empty, it never fails the fetch.
type Result struct {
	URL             normalizeurl.Canonical
	MarkdownContent []byte
	Links           []normalizeurl.Canonical
	Metadata        extractor.PageMetadata
	Media           []extractor.MediaAsset
	Tables          []extractor.TableData
	StatusCode      int
	FromCache       bool
	Tier            Tier
	ErrorKind       ErrorKind
	ErrorMessage    string
	FetchedAt       time.Time
}

func (r Result) Success() bool {
	return r.ErrorKind == KindNone
}

// Tier records which fetch tier ultimately produced the result, purely
// for observability.
type Tier string

const (
	TierCache      Tier = "cache"
	TierHTTP       Tier = "http"
	TierRendered   Tier = "rendered"
	TierUndetected Tier = "undetected"
)

// Params bundles the per-run options the pipeline needs from config.
// It is a plain struct rather than a dependency on internal/config so
// that fetchpipe stays usable without importing the CLI-facing layer.
type Params struct {
	UserAgent string
	Locale    string
	Timezone  string
	Headers   map[string]string
	Cookies   map[string]string

	CacheMode     cache.Mode
	CacheTTLHours int

	WaitUntil     WaitUntil
	PageTimeout   time.Duration
	HTTPFirst     bool
	HTTPTimeout   time.Duration

	UseUndetectedFallback bool
	CloudflareBypass      bool
	CloudflareWait        time.Duration

	PreserveURLFragment bool

	ScanFullPage   bool
	ScrollDelay    time.Duration
	MaxScrollSteps int
	WaitFor        string

	ExcludeExternalLinks    bool
	ExcludeSocialMediaLinks bool
	SameHostOnly            bool

	// AssetOutputDir gates asset resolution: left empty, Pipeline.assemble
	// skips the resolver entirely and Markdown keeps its original remote
	// image URLs.
	AssetOutputDir string
	MaxAssetSize   int64
	AssetHashAlgo  hashutil.HashAlgo
	AssetRetry     retry.RetryParam
}

// WaitUntil mirrors browser.WaitUntil / config.WaitUntil as a plain
// string type so fetchpipe's Params does not have to import the browser
// package just to name the navigation wait condition.
type WaitUntil string

const (
	WaitUntilCommit           WaitUntil = "commit"
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilNetworkIdle      WaitUntil = "networkidle"
)

var socialMediaHosts = map[string]bool{
	"facebook.com":  true,
	"twitter.com":   true,
	"x.com":         true,
	"instagram.com": true,
	"linkedin.com":  true,
	"youtube.com":   true,
	"tiktok.com":    true,
	"reddit.com":    true,
}

func isSocialMediaHost(baseDomain string) bool {
	return socialMediaHosts[baseDomain]
}
