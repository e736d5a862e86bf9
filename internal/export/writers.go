package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/archivecrawl/crawler/internal/build"
	"github.com/archivecrawl/crawler/internal/fetchpipe"
	"github.com/archivecrawl/crawler/internal/normalize"
	"github.com/archivecrawl/crawler/pkg/fileutil"
	"github.com/archivecrawl/crawler/pkg/hashutil"
	"github.com/parquet-go/parquet-go"
)

// writeBatch dispatches to the writer for destination.Format, returning
// the number of records written and any per-record errors collected
// along the way (a bad record never aborts the rest of the batch).
func (e *Exporter) writeBatch(ctx context.Context, destination Destination, results []fetchpipe.Result) (int, []string) {
	switch destination.Format() {
	case FormatMarkdown:
		return e.writeMarkdown(destination, results)
	case FormatJSON:
		return e.writeJSON(destination, results)
	case FormatCSV:
		return e.writeCSV(destination, results)
	case FormatParquet:
		return e.writeParquet(destination, results)
	default:
		return 0, []string{fmt.Sprintf("unsupported format %q", destination.Format())}
	}
}

// writeMarkdown persists one file per successful result through
// internal/storage, composing frontmatter directly (title/source/
// canonical/content-hash) rather than routing through the teacher's
// RAG-chunking MarkdownConstraint, which expects an asset-resolved
// mdconvert.ConversionResult this batch-level writer does not have.
func (e *Exporter) writeMarkdown(destination Destination, results []fetchpipe.Result) (int, []string) {
	var errs []string
	written := 0

	for _, r := range results {
		if !r.Success() {
			continue
		}

		contentHash, err := hashutil.HashBytes(r.MarkdownContent, e.hashAlgo)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: hash content: %v", r.URL.String(), err))
			continue
		}

		canonical := r.Metadata.Canonical
		if canonical == "" {
			canonical = r.URL.String()
		}
		docIDHash, err := hashutil.HashBytes([]byte(r.URL.String()), e.hashAlgo)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: hash doc id: %v", r.URL.String(), err))
			continue
		}

		title := r.Metadata.Title
		if title == "" {
			title = r.URL.String()
		}

		frontmatter := normalize.NewFrontmatter(
			title,
			r.URL.String(),
			canonical,
			0,
			firstPathSegment(r.URL.URL()),
			docIDHash[:12],
			contentHash,
			r.FetchedAt,
			build.FullVersion(),
		)
		doc := normalize.NewNormalizedMarkdownDoc(frontmatter, r.MarkdownContent)

		if _, err := e.storage.Write(destination.OutputDir(), doc, e.hashAlgo); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.URL.String(), err))
			continue
		}
		written++
	}

	return written, errs
}

func firstPathSegment(u url.URL) string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return ""
	}
	return strings.SplitN(trimmed, "/", 2)[0]
}

func (e *Exporter) writeJSON(destination Destination, results []fetchpipe.Result) (int, []string) {
	records := make([]ExportRecord, 0, len(results))
	for _, r := range results {
		records = append(records, recordFromResult(r))
	}

	path, err := e.openBatchFile(destination, "export.json")
	if err != nil {
		return 0, []string{err.Error()}
	}
	defer path.Close()

	enc := json.NewEncoder(path)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return 0, []string{fmt.Sprintf("encode json: %v", err)}
	}
	return len(records), nil
}

func (e *Exporter) writeCSV(destination Destination, results []fetchpipe.Result) (int, []string) {
	file, err := e.openBatchFile(destination, "export.csv")
	if err != nil {
		return 0, []string{err.Error()}
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	header := []string{"url", "title", "description", "canonical_url", "status_code", "tier", "from_cache", "error_kind", "error_message", "fetched_at", "link_count", "media_count", "table_count", "content_hex"}
	if err := w.Write(header); err != nil {
		return 0, []string{fmt.Sprintf("write csv header: %v", err)}
	}

	written := 0
	var errs []string
	for _, r := range results {
		rec := recordFromResult(r)
		row := []string{
			rec.URL, rec.Title, rec.Description, rec.CanonicalURL,
			strconv.Itoa(rec.StatusCode), rec.Tier, strconv.FormatBool(rec.FromCache),
			rec.ErrorKind, rec.ErrorMessage, rec.FetchedAt,
			strconv.Itoa(rec.LinkCount), strconv.Itoa(rec.MediaCount), strconv.Itoa(rec.TableCount),
			rec.ContentHex,
		}
		if err := w.Write(row); err != nil {
			errs = append(errs, fmt.Sprintf("%s: write csv row: %v", rec.URL, err))
			continue
		}
		written++
	}
	return written, errs
}

func (e *Exporter) writeParquet(destination Destination, results []fetchpipe.Result) (int, []string) {
	records := make([]ExportRecord, 0, len(results))
	for _, r := range results {
		records = append(records, recordFromResult(r))
	}

	file, err := e.openBatchFile(destination, "export.parquet")
	if err != nil {
		return 0, []string{err.Error()}
	}
	defer file.Close()

	if err := parquet.Write[ExportRecord](file, records); err != nil {
		return 0, []string{fmt.Sprintf("write parquet: %v", err)}
	}
	return len(records), nil
}

func (e *Exporter) openBatchFile(destination Destination, filename string) (*os.File, error) {
	if err := fileutil.EnsureDir(destination.OutputDir()); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}
	path := filepath.Join(destination.OutputDir(), filename)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return file, nil
}
