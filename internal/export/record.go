package export

import (
	"encoding/hex"

	"github.com/archivecrawl/crawler/internal/fetchpipe"
)

// ExportRecord is the serializable, format-agnostic shape of one
// fetchpipe.Result. Every non-Markdown writer (JSON/CSV/Parquet)
// produces rows of this shape: timestamps are ISO-8601 strings and
// content is hex-encoded, matching the contract the core pipeline
// guarantees its collaborators.
type ExportRecord struct {
	URL          string `json:"url"           csv:"url"           parquet:"url"`
	Title        string `json:"title"         csv:"title"         parquet:"title"`
	Description  string `json:"description"   csv:"description"   parquet:"description"`
	CanonicalURL string `json:"canonicalUrl"  csv:"canonical_url" parquet:"canonical_url"`
	StatusCode   int    `json:"statusCode"    csv:"status_code"   parquet:"status_code"`
	Tier         string `json:"tier"          csv:"tier"          parquet:"tier"`
	FromCache    bool   `json:"fromCache"     csv:"from_cache"    parquet:"from_cache"`
	ErrorKind    string `json:"errorKind"     csv:"error_kind"    parquet:"error_kind"`
	ErrorMessage string `json:"errorMessage"  csv:"error_message" parquet:"error_message"`
	FetchedAt    string `json:"fetchedAt"     csv:"fetched_at"    parquet:"fetched_at"`
	LinkCount    int    `json:"linkCount"     csv:"link_count"    parquet:"link_count"`
	MediaCount   int    `json:"mediaCount"    csv:"media_count"   parquet:"media_count"`
	TableCount   int    `json:"tableCount"    csv:"table_count"   parquet:"table_count"`
	ContentHex   string `json:"contentHex"    csv:"content_hex"   parquet:"content_hex"`
}

func recordFromResult(r fetchpipe.Result) ExportRecord {
	return ExportRecord{
		URL:          r.URL.String(),
		Title:        r.Metadata.Title,
		Description:  r.Metadata.Description,
		CanonicalURL: r.Metadata.Canonical,
		StatusCode:   r.StatusCode,
		Tier:         string(r.Tier),
		FromCache:    r.FromCache,
		ErrorKind:    string(r.ErrorKind),
		ErrorMessage: r.ErrorMessage,
		FetchedAt:    r.FetchedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		LinkCount:    len(r.Links),
		MediaCount:   len(r.Media),
		TableCount:   len(r.Tables),
		ContentHex:   hex.EncodeToString(r.MarkdownContent),
	}
}
