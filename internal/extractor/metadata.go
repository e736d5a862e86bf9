package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PageMetadata holds the document-level metadata a crawl wants to
// persist alongside the extracted content: the plain title/description
// pair, OpenGraph and Twitter card tags, and the canonical URL the page
// declares for itself.
type PageMetadata struct {
	Title       string
	Description string
	Canonical   string

	OGTitle       string
	OGDescription string
	OGImage       string
	OGType        string
	OGSiteName    string

	TwitterCard        string
	TwitterTitle       string
	TwitterDescription string
	TwitterImage       string
}

// ExtractMetadata reads <title>, <meta name="description">, OpenGraph
// og:* tags, Twitter card tags, and <link rel="canonical"> from doc's
// <head>. Missing tags leave the corresponding field empty; callers
// should not treat an empty PageMetadata as an error.
func ExtractMetadata(doc *html.Node) PageMetadata {
	gq := goquery.NewDocumentFromNode(doc)
	var meta PageMetadata

	meta.Title = strings.TrimSpace(gq.Find("title").First().Text())

	gq.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		property, _ := sel.Attr("property")
		content, hasContent := sel.Attr("content")
		if !hasContent {
			return
		}
		content = strings.TrimSpace(content)

		switch strings.ToLower(name) {
		case "description":
			meta.Description = content
		case "twitter:card":
			meta.TwitterCard = content
		case "twitter:title":
			meta.TwitterTitle = content
		case "twitter:description":
			meta.TwitterDescription = content
		case "twitter:image":
			meta.TwitterImage = content
		}

		switch strings.ToLower(property) {
		case "og:title":
			meta.OGTitle = content
		case "og:description":
			meta.OGDescription = content
		case "og:image":
			meta.OGImage = content
		case "og:type":
			meta.OGType = content
		case "og:site_name":
			meta.OGSiteName = content
		}
	})

	if href, ok := gq.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.Canonical = strings.TrimSpace(href)
	}

	return meta
}

// MediaKind classifies a discovered media reference.
type MediaKind string

const (
	MediaImage         MediaKind = "image"
	MediaVideo         MediaKind = "video"
	MediaAudio         MediaKind = "audio"
	MediaPictureSource MediaKind = "picture_source"
	MediaDocument      MediaKind = "document"
)

// MediaAsset is one media reference found within the extracted content
// node: an <img>, <video>, <audio>, or <picture><source> element, or a
// non-HTML document downloaded and mirrored to disk in its own right
// (MediaDocument), in which case URL is the local path rather than the
// source page's reference.
type MediaAsset struct {
	Kind MediaKind
	URL  string
	Alt  string
}

// ExtractMedia walks contentNode collecting every image, video, audio,
// and picture-source reference. Elements without a usable src/srcset
// are skipped.
func ExtractMedia(contentNode *html.Node) []MediaAsset {
	if contentNode == nil {
		return nil
	}
	gq := goquery.NewDocumentFromNode(contentNode)

	var assets []MediaAsset

	gq.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		alt, _ := sel.Attr("alt")
		assets = append(assets, MediaAsset{Kind: MediaImage, URL: strings.TrimSpace(src), Alt: alt})
	})

	gq.Find("video source, video").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		assets = append(assets, MediaAsset{Kind: MediaVideo, URL: strings.TrimSpace(src)})
	})

	gq.Find("audio source, audio").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		assets = append(assets, MediaAsset{Kind: MediaAudio, URL: strings.TrimSpace(src)})
	})

	gq.Find("picture source").Each(func(_ int, sel *goquery.Selection) {
		srcset, ok := sel.Attr("srcset")
		if !ok || strings.TrimSpace(srcset) == "" {
			return
		}
		first := strings.TrimSpace(strings.Fields(srcset)[0])
		assets = append(assets, MediaAsset{Kind: MediaPictureSource, URL: first})
	})

	return assets
}

// TableData is the structured form of one <table> found in the
// extracted content: header cells (if a <thead> or first <tr> of
// <th>s is present) and the body rows beneath it. Kept alongside the
// Markdown table rendering (internal/mdconvert's table plugin) so
// callers that want raw structure don't have to re-parse Markdown.
type TableData struct {
	Headers []string
	Rows    [][]string
}

// ExtractTables walks contentNode collecting every <table> as
// structured rows, in document order.
func ExtractTables(contentNode *html.Node) []TableData {
	if contentNode == nil {
		return nil
	}
	gq := goquery.NewDocumentFromNode(contentNode)

	var tables []TableData

	gq.Find("table").Each(func(_ int, tableSel *goquery.Selection) {
		var table TableData

		headerRow := tableSel.Find("thead tr").First()
		if headerRow.Length() == 0 {
			headerRow = tableSel.Find("tr").First()
		}
		headerRow.Find("th").Each(func(_ int, cell *goquery.Selection) {
			table.Headers = append(table.Headers, strings.TrimSpace(cell.Text()))
		})

		bodyRows := tableSel.Find("tbody tr")
		if bodyRows.Length() == 0 {
			bodyRows = tableSel.Find("tr")
		}
		bodyRows.Each(func(i int, rowSel *goquery.Selection) {
			if len(table.Headers) > 0 && headerRow.Length() > 0 && rowSel.Nodes[0] == headerRow.Nodes[0] {
				return
			}
			var row []string
			rowSel.Find("td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			if len(row) > 0 {
				table.Rows = append(table.Rows, row)
			}
		})

		tables = append(tables, table)
	})

	return tables
}
