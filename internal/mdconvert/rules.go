package mdconvert

import (
	"errors"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/archivecrawl/crawler/internal/sanitizer"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
	"golang.org/x/net/html"
)

// ConvertRule turns sanitized HTML into a RAG-ready Markdown document.
// Implementations must be deterministic: identical input must always
// produce identical output, since downstream content hashing depends on it.
type ConvertRule interface {
	Convert(sanitizedHTMLDoc sanitizer.SanitizedHTMLDoc) (ConversionResult, failure.ClassifiedError)
}

var _ ConvertRule = (*StrictConversionRule)(nil)

// StrictConversionRule converts without inferring structure the source HTML
// didn't express: no heading repair, no CSS-based semantics, no code
// reformatting. Anything the sanitizer left in place is passed through as-is.
type StrictConversionRule struct {
	metadataSink telemetry.Sink
}

func NewRule(metadataSink telemetry.Sink) *StrictConversionRule {
	return &StrictConversionRule{
		metadataSink: metadataSink,
	}
}

func (s *StrictConversionRule) Convert(
	sanitizedHTMLDoc sanitizer.SanitizedHTMLDoc,
) (ConversionResult, failure.ClassifiedError) {
	result, err := renderMarkdown(sanitizedHTMLDoc.GetContentNode())
	if err != nil {
		var conversionError *ConversionError
		errors.As(err, &conversionError)

		s.metadataSink.RecordError(
			time.Now(),
			"mdconvert",
			"StrictConversionRule.Convert",
			mapConversionErrorToMetadataCause(*conversionError),
			err.Error(),
			[]telemetry.Attribute{},
		)
		return ConversionResult{}, conversionError
	}
	return result, nil
}

// renderMarkdown runs the sanitized content node through the commonmark/
// table converter pipeline and pairs the resulting markdown with the link
// references harvested from the same node, in document order.
func renderMarkdown(contentNode *html.Node) (ConversionResult, *ConversionError) {
	if contentNode == nil {
		return ConversionResult{}, &ConversionError{
			Message:   "cannot convert nil HTML node",
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	rendered, err := conv.ConvertNode(contentNode)
	if err != nil {
		return ConversionResult{}, &ConversionError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	return NewConversionResult(rendered, harvestLinkRefs(contentNode)), nil
}

// harvestLinkRefs walks the content node for every <a href> and <img src>,
// in document order, and classifies each one as it goes.
func harvestLinkRefs(contentNode *html.Node) []LinkRef {
	var refs []LinkRef

	goquery.NewDocumentFromNode(contentNode).Find("a[href], img[src]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "a":
			if href, ok := s.Attr("href"); ok {
				refs = append(refs, classifyLinkRef("a", href))
			}
		case "img":
			if src, ok := s.Attr("src"); ok {
				refs = append(refs, classifyLinkRef("img", src))
			}
		}
	})

	return refs
}

// classifyLinkRef assigns a LinkKind from the element's tag and, for
// anchors, whether the target is a same-page fragment.
func classifyLinkRef(tagName, raw string) LinkRef {
	kind := KindNavigation
	switch strings.ToLower(tagName) {
	case "img":
		kind = KindImage
	case "a":
		if strings.HasPrefix(raw, "#") {
			kind = KindAnchor
		}
	}
	return NewLinkRef(raw, kind)
}
