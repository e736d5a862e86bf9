package normalize

import (
	"strings"
	"time"

	"github.com/archivecrawl/crawler/pkg/hashutil"
)

// Frontmatter is the provenance and chunking metadata attached to every
// RAG-ready markdown document: where it came from, where it sits in the
// crawl, and the hashes a downstream index uses to detect drift.
type Frontmatter struct {
	title          string
	sourceURL      string
	canonicalURL   string
	crawlDepth     int
	section        string
	docID          string
	contentHash    string
	fetchedAt      time.Time
	crawlerVersion string
}

// NewFrontmatter builds an immutable Frontmatter. Every field must already
// be validated and computed by the caller; this constructor does no
// derivation of its own.
func NewFrontmatter(
	title string,
	sourceURL string,
	canonicalURL string,
	crawlDepth int,
	section string,
	docID string,
	contentHash string,
	fetchedAt time.Time,
	crawlerVersion string,
) Frontmatter {
	return Frontmatter{
		title:          title,
		sourceURL:      sourceURL,
		canonicalURL:   canonicalURL,
		crawlDepth:     crawlDepth,
		section:        section,
		docID:          docID,
		contentHash:    contentHash,
		fetchedAt:      fetchedAt,
		crawlerVersion: crawlerVersion,
	}
}

// Document identity: what this file is and where it sits in the crawl tree.

func (f Frontmatter) Title() string       { return f.title }
func (f Frontmatter) Section() string     { return f.section }
func (f Frontmatter) CrawlDepth() int     { return f.crawlDepth }
func (f Frontmatter) DocID() string       { return f.docID }
func (f Frontmatter) ContentHash() string { return f.contentHash }

// Source provenance: where the content was fetched from and when.

func (f Frontmatter) SourceURL() string      { return f.sourceURL }
func (f Frontmatter) CanonicalURL() string   { return f.canonicalURL }
func (f Frontmatter) FetchedAt() time.Time   { return f.fetchedAt }
func (f Frontmatter) CrawlerVersion() string { return f.crawlerVersion }

// NormalizedMarkdownDoc is the final artifact handed to the storage layer:
// RAG-shaped markdown content plus the Frontmatter describing it.
type NormalizedMarkdownDoc struct {
	frontmatter Frontmatter
	content     []byte
}

// NewNormalizedMarkdownDoc creates a new immutable NormalizedMarkdownDoc.
func NewNormalizedMarkdownDoc(frontmatter Frontmatter, content []byte) NormalizedMarkdownDoc {
	return NormalizedMarkdownDoc{
		frontmatter: frontmatter,
		content:     content,
	}
}

func (n NormalizedMarkdownDoc) Frontmatter() Frontmatter { return n.frontmatter }
func (n NormalizedMarkdownDoc) Content() []byte          { return n.content }

// NormalizeParam carries the run-level context a single Normalize call
// needs but that isn't part of the document itself: crawler identity,
// hashing scheme, depth, and the section-derivation rules for this crawl.
type NormalizeParam struct {
	appVersion   string
	fetchedAt    time.Time
	hashAlgo     hashutil.HashAlgo
	crawlDepth   int
	sectionRules sectionPrefixes
}

func NewNormalizeParam(
	appVersion string,
	fetchedAt time.Time,
	hashAlgo hashutil.HashAlgo,
	crawlDepth int,
	allowedPathPrefixes []string,
) NormalizeParam {
	return NormalizeParam{
		appVersion:   appVersion,
		fetchedAt:    fetchedAt,
		hashAlgo:     hashAlgo,
		crawlDepth:   crawlDepth,
		sectionRules: sectionPrefixes(allowedPathPrefixes),
	}
}

// sectionPrefixes holds the path prefixes a crawl run treats as its own
// mount point (e.g. "/docs", "/api") and strips before deriving a
// document's section from its URL path.
type sectionPrefixes []string

// strip removes the first configured prefix that matches path, trying
// prefixes in configuration order. If none match, path is returned
// unchanged. A prefix without a leading slash is treated as if it had one.
func (s sectionPrefixes) strip(path string) string {
	for _, prefix := range s {
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}
