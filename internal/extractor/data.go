package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
	Metadata     PageMetadata
	Media        []MediaAsset
	Tables       []TableData
}

// ExtractParam tunes the Layer 3 heuristic scoring pass
// (findBestContentContainer / calculateContentScore) that runs when
// neither a semantic container nor a known doc-framework selector
// matches.
type ExtractParam struct {
	// LinkDensityThreshold is the fraction of a candidate's text that
	// may be link text before its score is penalized.
	LinkDensityThreshold float64
	// BodySpecificityBias is how close a child candidate's score must
	// get to <body>'s score (as a fraction of bodyScore) before the
	// child is preferred over body.
	BodySpecificityBias float64

	// ScoreMultiplier* weight calculateContentScore's per-feature
	// contributions. NonWhitespaceDivisor divides the raw non-whitespace
	// character count (so a divisor of 50 awards +1 per 50 chars); the
	// rest multiply a direct element count.
	ScoreMultiplierNonWhitespaceDivisor float64
	ScoreMultiplierParagraphs           float64
	ScoreMultiplierHeadings             float64
	ScoreMultiplierCodeBlocks           float64
	ScoreMultiplierListItems            float64

	// Threshold* gate isMeaningful's accept/reject decision for a
	// candidate container.
	ThresholdMinNonWhitespace    int
	ThresholdMinHeadings         int
	ThresholdMinParagraphsOrCode int
	ThresholdMaxLinkDensity      float64
}

// DefaultExtractParam returns the thresholds used by the teacher's
// original hardcoded scoring pass.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		LinkDensityThreshold: 0.5,
		BodySpecificityBias:  0.7,

		ScoreMultiplierNonWhitespaceDivisor: 50.0,
		ScoreMultiplierParagraphs:           5.0,
		ScoreMultiplierHeadings:             10.0,
		ScoreMultiplierCodeBlocks:           15.0,
		ScoreMultiplierListItems:            2.0,

		ThresholdMinNonWhitespace:    50,
		ThresholdMinHeadings:         0,
		ThresholdMinParagraphsOrCode: 1,
		ThresholdMaxLinkDensity:      0.8,
	}
}
