package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/archivecrawl/crawler/internal/mdconvert"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
	"github.com/archivecrawl/crawler/pkg/hashutil"
	"github.com/archivecrawl/crawler/pkg/retry"
	"github.com/archivecrawl/crawler/pkg/urlutil"
)

// markdownImageRef matches markdown image syntax: ![alt](url), capturing
// the alt text and the URL separately so a local path can be substituted.
var markdownImageRef = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// Resolver downloads every image a converted document references, stores
// each one once under a content-addressed local path, and rewrites the
// document's markdown to point at those local paths. A resolver instance
// accumulates state across calls so assets shared by multiple pages in the
// same crawl are fetched and written only once.
type Resolver interface {
	Resolve(
		ctx context.Context,
		pageUrl url.URL,
		conversionResult mdconvert.ConversionResult,
		resolveParam ResolveParam,
		retryParam retry.RetryParam,
	) (AssetfulMarkdownDoc, failure.ClassifiedError)
}

// assetStore tracks which asset URLs have been resolved this crawl and
// which content hashes already have a file on disk, so the same image
// fetched from two different URLs is written exactly once.
type assetStore struct {
	byURL  map[string]string // canonical asset URL -> content hash
	byHash map[string]string // content hash -> local path (only once actually written)
}

func newAssetStore() assetStore {
	return assetStore{
		byURL:  make(map[string]string),
		byHash: make(map[string]string),
	}
}

func (s assetStore) hasSeen(canonicalURL string) bool {
	_, ok := s.byURL[canonicalURL]
	return ok
}

func (s assetStore) hashOf(canonicalURL string) (string, bool) {
	hash, ok := s.byURL[canonicalURL]
	return hash, ok
}

func (s assetStore) pathForHash(hash string) string {
	return s.byHash[hash]
}

func (s assetStore) recordURL(canonicalURL, contentHash string) {
	s.byURL[canonicalURL] = contentHash
}

func (s assetStore) recordWrite(contentHash, localPath string) {
	s.byHash[contentHash] = localPath
}

// LocalResolver downloads assets over HTTP and writes them under
// outputDir/assets/images, deduplicating both by request URL (a URL seen
// in this or an earlier Resolve call is not fetched again) and by content
// hash (across the resolver's lifetime).
type LocalResolver struct {
	metadataSink telemetry.Sink
	store        assetStore
	httpClient   *http.Client
	userAgent    string
}

func NewLocalResolver(
	metadataSink telemetry.Sink,
	httpClient *http.Client,
	userAgent string,
) LocalResolver {
	return LocalResolver{
		metadataSink: metadataSink,
		store:        newAssetStore(),
		httpClient:   httpClient,
		userAgent:    userAgent,
	}
}

// WrittenAssets returns the canonical-asset-URL -> content-hash map
// accumulated across every Resolve call this resolver has handled.
func (r *LocalResolver) WrittenAssets() map[string]string {
	return r.store.byURL
}

func (r *LocalResolver) Resolve(
	ctx context.Context,
	pageUrl url.URL,
	conversionResult mdconvert.ConversionResult,
	resolveParam ResolveParam,
	retryParam retry.RetryParam,
) (AssetfulMarkdownDoc, failure.ClassifiedError) {
	host := pageUrl.Host
	scheme := pageUrl.Scheme

	onFetch := func(retryCount int, fetchResult AssetFetchResult) {
		fetchedURL := fetchResult.URL()
		r.metadataSink.RecordAssetFetch(
			fetchedURL.String(),
			fetchResult.Status(),
			fetchResult.Duration(),
			retryCount,
		)
	}

	// Only invoked when a brand-new file actually lands on disk, not on a
	// content-hash dedup hit.
	onWrite := func(localPath string) {
		r.metadataSink.RecordArtifact(
			telemetry.ArtifactAsset,
			localPath,
			[]telemetry.Attribute{
				telemetry.NewAttr(telemetry.AttrURL, pageUrl.String()),
			},
		)
	}

	doc, err := r.resolveAssets(ctx, conversionResult, resolveParam, host, scheme, retryParam, onFetch, onWrite)

	for urlStr, cause := range doc.MissingAssets() {
		r.metadataSink.RecordError(
			time.Now(),
			"assets",
			"Resolver.Resolve",
			mapAssetsErrorToMetadataCause(AssetsError{Cause: cause}),
			fmt.Sprintf("missing asset: %s", urlStr),
			[]telemetry.Attribute{
				telemetry.NewAttr(telemetry.AttrMessage, urlStr),
				telemetry.NewAttr(telemetry.AttrURL, pageUrl.String()),
			},
		)
	}

	for _, unparseableURL := range doc.UnparseableURLs() {
		r.metadataSink.RecordError(
			time.Now(),
			"assets",
			"Resolver.Resolve",
			telemetry.CauseContentInvalid,
			fmt.Sprintf("unparseable asset URL: %s", unparseableURL),
			[]telemetry.Attribute{
				telemetry.NewAttr(telemetry.AttrMessage, unparseableURL),
				telemetry.NewAttr(telemetry.AttrURL, pageUrl.String()),
			},
		)
	}

	if err != nil {
		cause, details := classifyResolveFailure(err)
		r.metadataSink.RecordError(
			time.Now(),
			"assets",
			"Resolver.Resolve",
			cause,
			details,
			[]telemetry.Attribute{
				telemetry.NewAttr(telemetry.AttrWritePath, resolveParam.OutputDir()),
				telemetry.NewAttr(telemetry.AttrURL, pageUrl.String()),
			},
		)
		return AssetfulMarkdownDoc{}, err
	}

	return doc, nil
}

// classifyResolveFailure maps a resolveAssets error onto the telemetry
// cause table, distinguishing a retry-budget exhaustion from an asset-layer
// fault from anything unrecognized.
func classifyResolveFailure(err failure.ClassifiedError) (telemetry.ErrorCause, string) {
	var retryErr *retry.RetryError
	var assetsErr *AssetsError

	switch {
	case errors.As(err, &retryErr):
		return telemetry.CauseRetryFailure, retryErr.Error()
	case errors.As(err, &assetsErr):
		return mapAssetsErrorToMetadataCause(*assetsErr), assetsErr.Error()
	default:
		return telemetry.CauseUnknown, err.Error()
	}
}

func (r *LocalResolver) resolveAssets(
	ctx context.Context,
	conversionResult mdconvert.ConversionResult,
	resolveParam ResolveParam,
	host string,
	scheme string,
	retryParam retry.RetryParam,
	onFetch func(int, AssetFetchResult),
	onWrite func(string),
) (AssetfulMarkdownDoc, failure.ClassifiedError) {
	imageURLs, unparseableURLs := imageRefsFromLinks(conversionResult.GetLinkRefs())

	toFetch := r.dedupeImageURLs(imageURLs, host, scheme)
	missing := make(map[string]AssetsErrorCause)

	if len(toFetch) > 0 {
		if err := prepareAssetDir(resolveParam.OutputDir()); err != nil {
			return AssetfulMarkdownDoc{}, err
		}

		for _, assetURL := range toFetch {
			r.fetchAndStoreOne(ctx, assetURL, resolveParam, retryParam, onFetch, onWrite, missing)
		}
	}

	localPaths := r.localPathsFor(imageURLs, host, scheme)

	var assetList []string
	for _, localPath := range localPaths {
		assetList = append(assetList, localPath)
	}

	content := rewriteImageRefs(conversionResult.GetMarkdownContent(), localPaths)

	return NewAssetfulMarkdownDoc(content, missing, unparseableURLs, assetList), nil
}

// fetchAndStoreOne fetches a single deduplicated asset URL, hashes and
// writes its content if it's genuinely new, and records either the
// resulting write or a failure cause into missing. Failures here are never
// fatal to the overall Resolve call — a missing asset is reported, not
// thrown.
func (r *LocalResolver) fetchAndStoreOne(
	ctx context.Context,
	assetURL url.URL,
	resolveParam ResolveParam,
	retryParam retry.RetryParam,
	onFetch func(int, AssetFetchResult),
	onWrite func(string),
	missing map[string]AssetsErrorCause,
) {
	result := r.fetchWithRetry(ctx, assetURL, retryParam, resolveParam.MaxAssetSize())
	retryCount := result.Attempts() - 1

	if result.Err() != nil {
		missing[assetURL.String()] = assetErrorCause(result.Err())
		onFetch(retryCount, NewAssetFetchResult(assetURL, 0, 0, nil))
		return
	}

	fetched := result.Value()
	onFetch(retryCount, fetched)

	contentHash, hashErr := hashutil.HashBytes(fetched.Data(), resolveParam.HashAlgo())
	if hashErr != nil {
		missing[assetURL.String()] = ErrCauseHashError
		return
	}

	if existingPath := r.store.pathForHash(contentHash); existingPath != "" {
		// Same bytes already on disk under a different URL — record the
		// mapping but don't write again or fire onWrite.
		r.store.recordURL(assetURL.String(), contentHash)
		return
	}

	extension := fileExtension(assetURL.Path)
	localPath, writeErr := persistAsset(resolveParam.OutputDir(), assetURL.Path, contentHash, extension, fetched.Data())
	if writeErr != nil {
		missing[assetURL.String()] = assetErrorCause(writeErr)
		return
	}

	r.store.recordURL(assetURL.String(), contentHash)
	r.store.recordWrite(contentHash, localPath)
	onWrite(localPath)
}

// assetErrorCause extracts the AssetsErrorCause from err, falling back to
// ErrCauseNetworkFailure if err isn't an *AssetsError.
func assetErrorCause(err failure.ClassifiedError) AssetsErrorCause {
	var assetsErr *AssetsError
	if errors.As(err, &assetsErr) {
		return assetsErr.Cause
	}
	return ErrCauseNetworkFailure
}

// imageRefsFromLinks splits a conversion's link references into parseable
// image URLs and the raw strings that failed to parse as a URL at all.
func imageRefsFromLinks(linkRefs []mdconvert.LinkRef) ([]url.URL, []string) {
	var imageURLs []url.URL
	var unparseable []string

	for _, linkRef := range linkRefs {
		if linkRef.GetKind() != mdconvert.KindImage {
			continue
		}
		u, err := url.Parse(linkRef.GetRaw())
		if err != nil {
			unparseable = append(unparseable, linkRef.GetRaw())
			continue
		}
		imageURLs = append(imageURLs, *u)
	}

	return imageURLs, unparseable
}

// dedupeImageURLs resolves each URL to absolute/canonical form and drops
// anything already fetched in a previous Resolve call or repeated within
// this same page.
func (r *LocalResolver) dedupeImageURLs(urls []url.URL, host, scheme string) []url.URL {
	var deduped []url.URL
	seenThisPage := make(map[string]bool)

	for _, u := range urls {
		canonical := urlutil.Canonicalize(urlutil.Resolve(u, scheme, host))
		key := canonical.String()

		if r.store.hasSeen(key) || seenThisPage[key] {
			continue
		}
		seenThisPage[key] = true
		deduped = append(deduped, canonical)
	}

	return deduped
}

// localPathsFor maps each of the page's raw image URLs (as they appear in
// the markdown) to the local path of the asset it was resolved to, for
// every URL that was successfully written (this call or a previous one).
func (r *LocalResolver) localPathsFor(imageURLs []url.URL, host, scheme string) map[string]string {
	localPaths := make(map[string]string)

	for _, imgURL := range imageURLs {
		raw := imgURL.String()
		canonical := urlutil.Canonicalize(urlutil.Resolve(imgURL, scheme, host))

		contentHash, ok := r.store.hashOf(canonical.String())
		if !ok {
			continue // download failed; raw URL stays unresolved in the map
		}

		localPath := r.store.pathForHash(contentHash)
		if localPath == "" {
			extension := fileExtension(canonical.Path)
			localPath = assetRelPath(canonical.Path, contentHash, extension)
		}
		localPaths[raw] = localPath
	}

	return localPaths
}

func prepareAssetDir(outputDir string) failure.ClassifiedError {
	assetsDir := filepath.Join(outputDir, "assets", "images")
	if err := os.MkdirAll(assetsDir, 0755); err != nil {
		return &AssetsError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}

func (r *LocalResolver) fetchWithRetry(
	ctx context.Context,
	fetchUrl url.URL,
	retryParam retry.RetryParam,
	maxAssetSize int64,
) retry.Result[AssetFetchResult] {
	return retry.Retry(retryParam, func() (AssetFetchResult, failure.ClassifiedError) {
		return r.fetchOnce(ctx, fetchUrl, maxAssetSize)
	})
}

func (r *LocalResolver) fetchOnce(ctx context.Context, fetchUrl url.URL, maxAssetSize int64) (AssetFetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return AssetFetchResult{}, &AssetsError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range imageFetchHeaders(r.userAgent) {
		req.Header.Set(key, value)
	}

	startTime := time.Now()
	resp, err := r.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		return AssetFetchResult{}, &AssetsError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if resp.ContentLength > maxAssetSize {
		return AssetFetchResult{}, &AssetsError{
			Message:   fmt.Sprintf("asset too large: %d bytes (max %d)", resp.ContentLength, maxAssetSize),
			Retryable: false,
			Cause:     ErrCauseAssetTooLarge,
		}
	}

	if statusErr := classifyAssetStatus(resp.StatusCode); statusErr != nil {
		return AssetFetchResult{}, statusErr
	}

	// +1 over the limit lets the length check below tell a borderline file
	// from a stream that actually exceeded maxAssetSize.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return AssetFetchResult{}, &AssetsError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	if int64(len(body)) > maxAssetSize {
		return AssetFetchResult{}, &AssetsError{
			Message:   fmt.Sprintf("asset too large: exceeded max %d bytes", maxAssetSize),
			Retryable: false,
			Cause:     ErrCauseAssetTooLarge,
		}
	}

	return NewAssetFetchResult(fetchUrl, resp.StatusCode, duration, body), nil
}

// classifyAssetStatus turns a non-2xx asset response status into the
// matching AssetsError, or nil if the status should be read as success.
func classifyAssetStatus(status int) *AssetsError {
	switch {
	case status >= 500:
		return &AssetsError{Message: fmt.Sprintf("server error: %d", status), Retryable: true, Cause: ErrCauseRequest5xx}
	case status == 429:
		return &AssetsError{Message: "rate limited (429)", Retryable: true, Cause: ErrCauseRequestTooMany}
	case status == 403:
		return &AssetsError{Message: "access forbidden (403)", Retryable: false, Cause: ErrCauseRequestPageForbidden}
	case status >= 400 && status < 500:
		return &AssetsError{Message: fmt.Sprintf("client error: %d", status), Retryable: false, Cause: ErrCauseRequestPageForbidden}
	case status >= 300 && status < 400:
		return &AssetsError{Message: fmt.Sprintf("redirect error: %d", status), Retryable: false, Cause: ErrCauseRedirectLimitExceeded}
	default:
		return nil
	}
}

func persistAsset(outputDir, originalPath, contentHash, extension string, data []byte) (string, failure.ClassifiedError) {
	localPath := assetRelPath(originalPath, contentHash, extension)
	filePath := filepath.Join(outputDir, localPath)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return "", &AssetsError{Message: fmt.Sprintf("disk full: %v", err), Retryable: true, Cause: ErrCauseDiskFull}
		}
		return "", &AssetsError{Message: fmt.Sprintf("write failed: %v", err), Retryable: false, Cause: ErrCauseWriteFailure}
	}
	return localPath, nil
}

// rewriteImageRefs replaces every markdown image URL that was successfully
// resolved with its local path, leaving unresolved references untouched.
func rewriteImageRefs(inputDoc []byte, localPaths map[string]string) []byte {
	content := markdownImageRef.ReplaceAllStringFunc(string(inputDoc), func(match string) string {
		submatches := markdownImageRef.FindStringSubmatch(match)
		if len(submatches) < 3 {
			return match
		}
		altText, rawURL := submatches[1], submatches[2]

		if localPath, ok := localPaths[rawURL]; ok {
			return "![" + altText + "](" + localPath + ")"
		}
		return match
	})

	return []byte(content)
}

func imageFetchHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "image/webp,image/apng,image/*,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}

// fileExtension returns path's extension without the leading dot, or "" if
// it has none.
func fileExtension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// assetRelPath builds the path an asset is stored at, relative to the
// output directory: assets/images/<original-name>-<short-hash>.<ext>,
// e.g. assets/images/logo-a3f7b2c.png.
func assetRelPath(originalPath, contentHash, extension string) string {
	base := filepath.Base(originalPath)
	nameWithoutExt := strings.TrimSuffix(base, filepath.Ext(base))

	safeName := sanitizeBaseName(nameWithoutExt)
	if safeName == "" {
		safeName = "asset"
	}

	shortHash := contentHash
	if len(contentHash) > 7 {
		shortHash = contentHash[:7]
	}

	filename := safeName + "-" + shortHash
	if extension != "" {
		filename += "." + extension
	}

	return filepath.Join("assets", "images", filename)
}

// sanitizeBaseName strips characters unsafe for a filename and caps its
// length so a pathological URL can't produce an unusable path.
func sanitizeBaseName(name string) string {
	const unsafe = "/\\:*?\"<>| "
	result := name
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, string(char), "_")
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
