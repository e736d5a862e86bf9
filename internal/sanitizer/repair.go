package sanitizer

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unsafe"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// archiveFault names a specific way an archived page's DOM resists a
// deterministic rendering: competing document roots, no anchor to hang
// headings off of, duplicate H1 sections, or a heading outline that reads
// as more than one page stitched together. assessStructure below picks one
// of these (or none) before the rest of the pipeline touches the node.
type archiveFault string

const (
	// faultCompetingRoots: more than one article/main sits at the same
	// sibling level, so there is no single element to treat as the page body.
	faultCompetingRoots archiveFault = "competing_roots"

	// faultNoAnchor: the page has no headings and no article/main/section
	// to anchor on, so there is nothing to build a table of contents from.
	faultNoAnchor archiveFault = "no_structural_anchor"

	// faultAmbiguousH1Root: more than one h1 shows up with its own
	// substantial subsection, so no single h1 can be treated as the root.
	faultAmbiguousH1Root archiveFault = "multiple_h1_no_root"

	// faultMultipleDocuments: the heading outline splits into two or more
	// h1-rooted sections that each look like a complete document on its own.
	faultMultipleDocuments archiveFault = "implied_multiple_docs"

	// faultAmbiguousNesting: heading levels oscillate in a way that implies
	// overlapping sections, or article/section containers nest deep enough
	// that their scope can no longer be read off the DOM alone.
	faultAmbiguousNesting archiveFault = "ambiguous_dom"
)

// structuralVerdict is what assessStructure hands back: whether the node
// can be archived as-is, and if not, which fault blocked it.
type structuralVerdict struct {
	archivable bool
	fault      archiveFault
}

// headingMark pins one heading to its level, its node in the DOM, and its
// rendered text, so the checks below can reason about the outline without
// re-walking the tree for every question they ask.
type headingMark struct {
	level int
	node  *html.Node
	text  string
}

// nodeIsEmpty reports whether an element has no element children and no
// non-whitespace text, i.e. it contributes nothing to the archived page.
func nodeIsEmpty(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				return false
			}
		}
	}
	return true
}

// fingerprint builds a string key for duplicate detection: tag, sorted-ish
// attribute listing, and a digest of the subtree's content. Two nodes with
// the same fingerprint are treated as interchangeable copies.
func fingerprint(node *html.Node) string {
	if node == nil {
		return ""
	}

	var key strings.Builder
	fmt.Fprintf(&key, "type:%d|tag:%s|", node.Type, node.Data)
	for i, attr := range node.Attr {
		if i > 0 {
			key.WriteString(",")
		}
		fmt.Fprintf(&key, "%s=%s", attr.Key, attr.Val)
	}
	key.WriteString("|")
	fmt.Fprintf(&key, "content:%d", contentDigest(node))

	return key.String()
}

// contentDigest folds a node's tag, attributes, and text into a single
// hash, recursing into children so two structurally identical subtrees
// produce the same value regardless of where they sit in the document.
func contentDigest(node *html.Node) uint64 {
	h := fnv.New64a()

	switch node.Type {
	case html.ElementNode:
		h.Write([]byte(node.Data))
		for _, attr := range node.Attr {
			h.Write([]byte(attr.Key))
			h.Write([]byte(attr.Val))
		}
	case html.TextNode:
		h.Write([]byte(strings.TrimSpace(node.Data)))
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		fmt.Fprintf(h, "%d", contentDigest(child))
	}

	return h.Sum64()
}

// isDedupCandidate reports whether nodes of this tag are eligible for
// duplicate removal. Headings and the page's structural landmarks are
// never collapsed, even if a byte-for-byte copy shows up elsewhere.
func isDedupCandidate(tag string) bool {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return false
	}
	switch tag {
	case "main", "article", "header", "footer", "nav", "aside":
		return false
	default:
		return true
	}
}

// hasSiblingRootConflict reports whether the page has more than one
// element that could plausibly serve as the archived document's single
// root: multiple <main>s anywhere, or multiple <article>s sharing a parent.
func hasSiblingRootConflict(doc *goquery.Document) bool {
	if doc.Find("main").Length() > 1 {
		return true
	}

	articles := doc.Find("article")
	if articles.Length() <= 1 {
		return false
	}

	siblingCount := make(map[uintptr]int)
	articles.Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil || node.Parent == nil {
			return
		}
		siblingCount[uintptr(unsafe.Pointer(node.Parent))]++
	})
	for _, count := range siblingCount {
		if count > 1 {
			return true
		}
	}
	return false
}

// collectHeadingMarks walks h1 through h6 in DOM order and records each
// one's level, node, and rendered text.
func collectHeadingMarks(doc *goquery.Document) []headingMark {
	var marks []headingMark
	for level := 1; level <= 6; level++ {
		doc.Find(fmt.Sprintf("h%d", level)).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if node == nil {
				return
			}
			marks = append(marks, headingMark{level: level, node: node, text: s.Text()})
		})
	}
	return marks
}

// hasAnchorElement reports whether the page offers some structural
// landmark to archive around even when it carries no headings at all:
// an article, a main, or at least one non-empty section.
func hasAnchorElement(doc *goquery.Document) bool {
	if doc.Find("article").Length() > 0 || doc.Find("main").Length() > 0 {
		return true
	}
	nonEmptySections := 0
	doc.Find("section").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			nonEmptySections++
		}
	})
	return nonEmptySections > 0
}

// hasAmbiguousH1Root reports whether the page has two or more h1 headings
// and, on top of that, each one anchors a subsection substantial enough
// that neither h1 reads as the obvious single root of the page.
func hasAmbiguousH1Root(headings []headingMark) bool {
	var roots []headingMark
	for _, h := range headings {
		if h.level == 1 {
			roots = append(roots, h)
		}
	}
	if len(roots) <= 1 {
		return false
	}

	seenParent := make(map[uintptr]bool)
	for _, root := range roots {
		if root.node.Parent == nil {
			continue
		}
		parentPtr := uintptr(unsafe.Pointer(root.node.Parent))
		if seenParent[parentPtr] {
			return true
		}
		seenParent[parentPtr] = true
	}

	substantialRoots := 0
	for i, root := range roots {
		rootIdx, nextRootIdx := headingIndexOf(headings, root.node), len(headings)
		if i+1 < len(roots) {
			nextRootIdx = headingIndexOf(headings, roots[i+1].node)
		}

		subheadings := 0
		for j := rootIdx + 1; j < nextRootIdx; j++ {
			if headings[j].level > 1 {
				subheadings++
			}
		}
		if subheadings >= 2 {
			substantialRoots++
		}
	}

	return substantialRoots >= 2
}

// headingIndexOf locates a heading node's position within the full
// heading slice, used to slice out the span a given h1 owns.
func headingIndexOf(headings []headingMark, node *html.Node) int {
	for i, h := range headings {
		if h.node == node {
			return i
		}
	}
	return 0
}

// hasMultipleDocumentSections groups the outline by h1 and reports
// whether two or more of those sections look like a complete document in
// their own right (deep enough heading hierarchy, or enough headings).
func hasMultipleDocumentSections(headings []headingMark) bool {
	type section struct {
		children []headingMark
	}
	var sections []section
	var current *section

	for i := range headings {
		h := headings[i]
		if h.level == 1 {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &section{}
			continue
		}
		if current != nil {
			current.children = append(current.children, h)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}

	if len(sections) < 2 {
		return false
	}

	fullSections := 0
	for _, sec := range sections {
		if len(sec.children) < 2 {
			continue
		}
		hasDepth := false
		prevLevel := 0
		for _, h := range sec.children {
			if prevLevel > 0 && h.level >= prevLevel {
				hasDepth = true
				break
			}
			prevLevel = h.level
		}
		if hasDepth || len(sec.children) >= 3 {
			fullSections++
		}
	}

	return fullSections >= 2
}

// hasAmbiguousNesting reports whether the heading outline oscillates in a
// way that implies overlapping sections, or whether article/section
// containers nest deep enough that scope can no longer be read off the
// DOM alone.
func hasAmbiguousNesting(headings []headingMark, doc *goquery.Document) bool {
	if oscillatingOutline(headings) {
		return true
	}
	return deeplyNestedContainers(doc) > 2
}

// oscillatingOutline looks for a heading jumping up more than one level
// and then back down to the level it jumped from (h2 -> h4 -> h2), which
// reads as two overlapping outlines rather than one consistent hierarchy.
func oscillatingOutline(headings []headingMark) bool {
	if len(headings) == 0 {
		return false
	}

	minLevel := 7
	for _, h := range headings {
		if h.level < minLevel {
			minLevel = h.level
		}
	}
	if minLevel <= 1 {
		return false
	}

	prevLevel := minLevel
	for i, h := range headings {
		if i == 0 {
			continue
		}
		if h.level < prevLevel-1 && i >= 2 && headings[i-2].level == h.level {
			return true
		}
		prevLevel = h.level
	}
	return false
}

// deeplyNestedContainers counts article/section elements nested more than
// three semantic containers deep.
func deeplyNestedContainers(doc *goquery.Document) int {
	count := 0
	doc.Find("article, section").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}
		depth := 0
		for parent := node.Parent; parent != nil; parent = parent.Parent {
			if parent.Data == "article" || parent.Data == "section" {
				depth++
			}
		}
		if depth > 3 {
			count++
		}
	})
	return count
}

// assessStructure decides whether a fetched page's DOM can be archived
// deterministically, checking in order:
//
//   - competing document roots (siblings that both look like the page body)
//   - no headings and no structural landmark to anchor on
//   - multiple h1s, each with its own substantial subsection
//   - a heading outline that implies two or more complete documents
//   - heading oscillation or container nesting too deep to read off the DOM
//
// It treats html.Node as the canonical data source and uses goquery only
// as a traversal convenience; no CSS or semantic inference is involved.
func assessStructure(doc *html.Node) structuralVerdict {
	docQuery := goquery.NewDocumentFromNode(doc)

	if hasSiblingRootConflict(docQuery) {
		return structuralVerdict{fault: faultCompetingRoots}
	}

	headings := collectHeadingMarks(docQuery)

	if len(headings) == 0 && !hasAnchorElement(docQuery) {
		return structuralVerdict{fault: faultNoAnchor}
	}

	if hasAmbiguousH1Root(headings) {
		return structuralVerdict{fault: faultAmbiguousH1Root}
	}

	if hasMultipleDocumentSections(headings) {
		return structuralVerdict{fault: faultMultipleDocuments}
	}

	if hasAmbiguousNesting(headings, docQuery) {
		return structuralVerdict{fault: faultAmbiguousNesting}
	}

	return structuralVerdict{archivable: true}
}
