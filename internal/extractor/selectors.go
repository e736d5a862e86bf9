package extractor

// frameworkContainerSelectors maps a documentation framework or platform to
// its known content-container CSS selectors. These serve as a Layer 2
// heuristic when semantic containers (Layer 1: <article>, <main>, role
// attributes) fail to isolate the page's actual content.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var frameworkContainerSelectors = map[string][]string{
	"generic": {
		// Framework-agnostic fallbacks, tried before anything more specific.
		".content",
		".doc-content",
		".markdown-body",
		"#docs-content",
		".rst-content",
		".theme-doc-markdown",
		".md-content",
	},
	"docusaurus": {
		".theme-doc-markdown",
		".docMainContainer",
	},
	"gitbook": {
		".book-body",
		".markdown-section",
	},
	"mkdocs": {
		".md-content",
		".md-main__inner",
	},
	"sphinx": {
		".rst-content",
		".document",
	},
	"vuepress": {
		".theme-default-content",
		".content__default",
	},
	"docsify": {
		"#main",
		".content",
	},
	"hexo": {
		".post-content",
		".article-content",
	},
	"jekyll": {
		".post-content",
		".entry-content",
	},
}

// frameworkSelectorOrder controls which framework's selectors are tried
// first: generic fallbacks, then frameworks roughly ordered by how often
// they show up in crawled documentation sites.
var frameworkSelectorOrder = []string{
	"generic",
	"docusaurus",
	"sphinx",
	"mkdocs",
	"gitbook",
	"vuepress",
	"docsify",
	"hexo",
	"jekyll",
}

// defaultContainerSelectors flattens frameworkContainerSelectors into a
// single priority-ordered, deduplicated list.
func defaultContainerSelectors() []string {
	var flattened []string
	for _, framework := range frameworkSelectorOrder {
		flattened = dedupeSelectors(flattened, frameworkContainerSelectors[framework])
	}
	return flattened
}

// dedupeSelectors appends extra's entries onto base, skipping any selector
// already present in base (from an earlier call or an earlier framework).
func dedupeSelectors(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	merged := base
	for _, selector := range extra {
		if seen[selector] {
			continue
		}
		seen[selector] = true
		merged = append(merged, selector)
	}
	return merged
}
