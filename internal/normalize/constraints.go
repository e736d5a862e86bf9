package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/archivecrawl/crawler/internal/assets"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
	"github.com/archivecrawl/crawler/pkg/hashutil"
	"github.com/archivecrawl/crawler/pkg/urlutil"
)

// MarkdownConstraint is the last stage before a document leaves the
// pipeline: it rejects markdown whose structure can't be chunked
// predictably, then stamps the survivors with Frontmatter so a RAG index
// can place them correctly (source, section, crawl depth, content hash).
type MarkdownConstraint struct {
	metadataSink telemetry.Sink
}

func NewMarkdownConstraint(metadataSink telemetry.Sink) MarkdownConstraint {
	return MarkdownConstraint{
		metadataSink: metadataSink,
	}
}

func (m *MarkdownConstraint) Normalize(
	fetchUrl url.URL,
	assetfulMarkdownDoc assets.AssetfulMarkdownDoc,
	normalizeParam NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	normalized, err := assemble(fetchUrl, assetfulMarkdownDoc, normalizeParam)
	if err != nil {
		var shapeErr *ShapeError
		errors.As(err, &shapeErr)
		m.metadataSink.RecordError(
			time.Now(),
			"normalize",
			"MarkdownConstraint.Normalize",
			faultToMetadataCause(shapeErr.Fault),
			err.Error(),
			[]telemetry.Attribute{
				telemetry.NewAttr(telemetry.AttrURL, fetchUrl.String()),
			},
		)
		return NormalizedMarkdownDoc{}, shapeErr
	}
	return normalized, nil
}

// assemble validates a document's shape and, if it passes, attaches
// Frontmatter to produce the final RAG-ready artifact.
func assemble(
	fetchUrl url.URL,
	inputDoc assets.AssetfulMarkdownDoc,
	normalizeParam NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	content := inputDoc.Content()

	if err := checkShape(content); err != nil {
		return NormalizedMarkdownDoc{}, err
	}

	frontmatter, err := buildFrontmatter(fetchUrl, inputDoc, normalizeParam)
	if err != nil {
		return NormalizedMarkdownDoc{}, err
	}

	return NewNormalizedMarkdownDoc(frontmatter, content), nil
}

// outlineScan walks a parsed markdown AST collecting the facts checkShape
// needs: every heading in document order, whether any heading fell inside
// a fenced code block, and whether prose appeared before the first H1.
type outlineScan struct {
	headings        []*ast.Heading
	contentBeforeH1 bool
	insideCodeBlock bool
}

func (s *outlineScan) visit(node ast.Node, entering bool) ast.WalkStatus {
	switch n := node.(type) {
	case *ast.Heading:
		if entering {
			if s.insideCodeBlock {
				return ast.Terminate
			}
			s.headings = append(s.headings, n)
		}

	case *ast.CodeBlock:
		s.insideCodeBlock = entering

	case *ast.Text, *ast.Paragraph, *ast.List, *ast.Table:
		if entering && len(s.headings) == 0 {
			s.contentBeforeH1 = true
		}
	}

	return ast.GoToNext
}

// checkShape enforces the handful of rules a markdown document must
// satisfy to be chunked deterministically: non-empty, exactly one H1,
// nothing before that H1, no skipped heading levels, and no heading hiding
// inside a code fence.
func checkShape(content []byte) failure.ClassifiedError {
	if len(bytes.TrimSpace(content)) == 0 {
		return &ShapeError{
			Message:   "markdown content is empty",
			Retryable: false,
			Fault:     FaultEmptyContent,
		}
	}

	doc := markdown.Parse(content, parser.New())

	scan := &outlineScan{}
	ast.WalkFunc(doc, scan.visit)

	if scan.insideCodeBlock {
		return &ShapeError{
			Message:   "heading detected inside code block",
			Retryable: false,
			Fault:     FaultHeadingInCodeBlock,
		}
	}

	h1Count := 0
	for _, h := range scan.headings {
		if h.Level == 1 {
			h1Count++
		}
	}
	if h1Count == 0 {
		return &ShapeError{
			Message:   "document has no H1 heading",
			Retryable: false,
			Fault:     FaultMissingOrExtraH1,
		}
	}
	if h1Count > 1 {
		return &ShapeError{
			Message:   fmt.Sprintf("document has %d H1 headings, expected exactly one", h1Count),
			Retryable: false,
			Fault:     FaultMissingOrExtraH1,
		}
	}

	if scan.contentBeforeH1 {
		return &ShapeError{
			Message:   "content exists before first H1 heading",
			Retryable: false,
			Fault:     FaultOrphanContent,
		}
	}

	prevLevel := 0
	for _, h := range scan.headings {
		if h.Level > prevLevel+1 && prevLevel != 0 {
			return &ShapeError{
				Message:   fmt.Sprintf("heading level skipped: H%d follows H%d", h.Level, prevLevel),
				Retryable: false,
				Fault:     FaultSkippedHeadingLevel,
			}
		}
		prevLevel = h.Level
	}

	return nil
}

// buildFrontmatter derives every Frontmatter field from the fetch URL, the
// document content, and the run's NormalizeParam. Assumes checkShape has
// already passed.
func buildFrontmatter(
	fetchUrl url.URL,
	inputDoc assets.AssetfulMarkdownDoc,
	normalizeParam NormalizeParam,
) (Frontmatter, failure.ClassifiedError) {
	content := inputDoc.Content()

	title, err := titleFromH1(content)
	if err != nil {
		return Frontmatter{}, err
	}

	sourceURL := fetchUrl.String()
	canonicalURL := urlutil.Canonicalize(fetchUrl)

	section, err := sectionFromPath(canonicalURL, normalizeParam.sectionRules)
	if err != nil {
		return Frontmatter{}, err
	}

	canonicalURLStr := canonicalURL.String()
	docIDHash, hashErr := hashutil.HashBytes([]byte(canonicalURLStr), normalizeParam.hashAlgo)
	if hashErr != nil {
		return Frontmatter{}, &ShapeError{
			Message:   fmt.Sprintf("failed to compute doc_id: %v", hashErr),
			Retryable: false,
			Fault:     FaultHashUnavailable,
		}
	}
	docID := string(normalizeParam.hashAlgo) + ":" + docIDHash

	contentHashValue, hashErr := hashutil.HashBytes(content, normalizeParam.hashAlgo)
	if hashErr != nil {
		return Frontmatter{}, &ShapeError{
			Message:   fmt.Sprintf("failed to compute content_hash: %v", hashErr),
			Retryable: false,
			Fault:     FaultHashUnavailable,
		}
	}
	contentHash := string(normalizeParam.hashAlgo) + ":" + contentHashValue

	return NewFrontmatter(
		title,
		sourceURL,
		canonicalURLStr,
		normalizeParam.crawlDepth,
		section,
		docID,
		contentHash,
		normalizeParam.fetchedAt,
		normalizeParam.appVersion,
	), nil
}

// sectionFromPath takes the first path segment remaining after stripping a
// matching configured prefix (see sectionPrefixes.strip) and uses it as
// the document's logical section.
func sectionFromPath(canonicalURL url.URL, rules sectionPrefixes) (string, failure.ClassifiedError) {
	path := canonicalURL.Path
	if path == "" || path == "/" {
		return "", &ShapeError{
			Message:   "URL path is empty, cannot derive section",
			Retryable: false,
			Fault:     FaultNoSection,
		}
	}

	path = strings.TrimPrefix(rules.strip(path), "/")
	if path == "" {
		return "", &ShapeError{
			Message:   "URL path has no segments after stripping allowed prefix",
			Retryable: false,
			Fault:     FaultNoSection,
		}
	}

	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			return segment, nil
		}
	}

	return "", &ShapeError{
		Message:   "URL path has no valid segments",
		Retryable: false,
		Fault:     FaultNoSection,
	}
}

// titleFromH1 pulls the title out of the first H1 line in the document.
// Assumes checkShape already confirmed exactly one H1 exists.
func titleFromH1(content []byte) (string, failure.ClassifiedError) {
	for _, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("# ")) {
			continue
		}

		title := strings.TrimSpace(stripInlineMarkup(string(line[2:])))
		if title == "" {
			return "", &ShapeError{
				Message:   "H1 heading contains no text",
				Retryable: false,
				Fault:     FaultNoTitle,
			}
		}
		return title, nil
	}

	return "", &ShapeError{
		Message:   "no H1 heading found in document",
		Retryable: false,
		Fault:     FaultNoTitle,
	}
}

// stripInlineMarkup strips the inline emphasis, code, and link-bracket
// markers markdown allows inside a heading, leaving plain text for the
// title field.
func stripInlineMarkup(text string) string {
	replacer := strings.NewReplacer(
		"`", "",
		"**", "",
		"__", "",
		"*", "",
		"_", "",
		"[", "",
		"]", "",
	)
	return replacer.Replace(text)
}
