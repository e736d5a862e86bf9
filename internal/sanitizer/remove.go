package sanitizer

import "golang.org/x/net/html"

// voidElements are valid even with no children: <img>, <br>, <hr>, and the
// rest of the HTML void-element set.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// skeletonElements anchor the page layout and are left alone even when
// empty; structural decisions about them belong to assessStructure, not here.
var skeletonElements = map[string]bool{
	"html": true, "head": true, "body": true, "main": true,
}

// pruneEmptyNodes walks the tree post-order so nested empty containers are
// cleaned innermost-first, dropping any element that carries no content
// and isn't a void or skeleton element.
func pruneEmptyNodes(node *html.Node) {
	if node == nil {
		return
	}

	for _, child := range childSnapshot(node) {
		pruneEmptyNodes(child)
	}

	if node.Type != html.ElementNode {
		return
	}
	if voidElements[node.Data] || skeletonElements[node.Data] {
		return
	}
	if nodeIsEmpty(node) && node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
}

// pruneDuplicateNodes removes structural duplicates, keeping the first
// occurrence under each parent. Two sibling elements are duplicates when
// their fingerprint (tag, attributes, and content digest) matches.
func pruneDuplicateNodes(root *html.Node) {
	if root == nil {
		return
	}

	seen := make(map[*html.Node]map[string]bool)

	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node == nil {
			return
		}

		if node.Type == html.ElementNode && isDedupCandidate(node.Data) && node.Parent != nil {
			parent := node.Parent
			if seen[parent] == nil {
				seen[parent] = make(map[string]bool)
			}
			key := fingerprint(node)
			if seen[parent][key] {
				parent.RemoveChild(node)
				return
			}
			seen[parent][key] = true
		}

		for _, child := range childSnapshot(node) {
			walk(child)
		}
	}

	walk(root)
}

// childSnapshot copies a node's current children into a slice before the
// caller mutates the tree, since RemoveChild invalidates sibling links.
func childSnapshot(node *html.Node) []*html.Node {
	var children []*html.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	return children
}
