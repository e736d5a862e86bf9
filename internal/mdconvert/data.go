package mdconvert

// LinkKind classifies a reference harvested from a converted document:
// whether it points elsewhere on the same page, to another document, or
// to an embedded image.
type LinkKind string

const (
	KindNavigation LinkKind = "navigation"
	KindImage      LinkKind = "image"
	KindAnchor     LinkKind = "anchor"
)

// LinkRef is a single href/src value pulled out of a converted document,
// in the document order it appeared, before any resolution against the
// page's base URL.
type LinkRef struct {
	raw  string
	kind LinkKind
}

func NewLinkRef(raw string, kind LinkKind) LinkRef {
	return LinkRef{
		raw:  raw,
		kind: kind,
	}
}

func (l *LinkRef) GetRaw() string   { return l.raw }
func (l *LinkRef) GetKind() LinkKind { return l.kind }

// ConversionResult is the output of converting one sanitized HTML document:
// the rendered markdown plus every link reference the conversion
// discovered, which the asset-resolution stage consumes next.
type ConversionResult struct {
	markdownContent []byte
	linkRefs        []LinkRef
}

func NewConversionResult(markdownContent []byte, linkRefs []LinkRef) ConversionResult {
	return ConversionResult{
		markdownContent: markdownContent,
		linkRefs:        linkRefs,
	}
}

func (c *ConversionResult) GetMarkdownContent() []byte { return c.markdownContent }
func (c *ConversionResult) GetLinkRefs() []LinkRef      { return c.linkRefs }
