// Package mapper builds the link tree for a crawl: a bounded,
// depth-banded breadth-first traversal from a seed URL, fetching one
// full wave of a given depth concurrently before expanding into the
// next.
package mapper

import (
	"github.com/archivecrawl/crawler/internal/fetchpipe"
	"github.com/archivecrawl/crawler/internal/normalizeurl"
)

// Node is one URL in the crawl tree. Children are indices into the
// owning Tree's slab, not pointers: the tree is built and read within
// a single crawl run, so there is no benefit to pointer-chasing, and
// index-based children keep Node copyable and Tree's memory a single
// contiguous allocation.
type Node struct {
	URL         normalizeurl.Canonical
	Depth       int
	ParentIndex int // -1 for the root
	Children    []int

	Fetched bool
	Success bool
	Result  fetchpipe.Result
}

// Tree is an arena-indexed tree of discovered URLs. Nodes are appended
// to a single slab and referenced by index; addNode enforces
// first-occurrence-wins so a URL rediscovered at a deeper level (or via
// a different path) is never traversed twice.
type Tree struct {
	nodes []Node
	index map[string]int
}

func NewTree() *Tree {
	return &Tree{index: make(map[string]int)}
}

// addNode inserts url as a child of parentIndex at depth, returning its
// index and whether this is the first time url has been seen. parentIndex
// is -1 only for the tree's root. On a revisit, the existing node's index
// is returned and parentIndex's Children list still gets the edge, so the
// tree reflects every discovery path even though traversal only follows
// the first one.
func (t *Tree) addNode(url normalizeurl.Canonical, depth, parentIndex int) (idx int, isNew bool) {
	key := url.String()
	if existing, ok := t.index[key]; ok {
		if parentIndex >= 0 {
			t.nodes[parentIndex].Children = append(t.nodes[parentIndex].Children, existing)
		}
		return existing, false
	}

	idx = len(t.nodes)
	t.nodes = append(t.nodes, Node{URL: url, Depth: depth, ParentIndex: parentIndex})
	t.index[key] = idx
	if parentIndex >= 0 {
		t.nodes[parentIndex].Children = append(t.nodes[parentIndex].Children, idx)
	}
	return idx, true
}

// Node returns a pointer into the slab so callers (Build's fetch loop)
// can record fetch outcomes in place.
func (t *Tree) Node(idx int) *Node {
	return &t.nodes[idx]
}

// Root is the tree's seed node, always at index 0.
func (t *Tree) Root() *Node {
	return &t.nodes[0]
}

// Size is the total number of distinct URLs discovered, regardless of
// how many were actually fetched.
func (t *Tree) Size() int {
	return len(t.nodes)
}

// Visited reports whether url has already been assigned a node.
func (t *Tree) Visited(url normalizeurl.Canonical) bool {
	_, ok := t.index[url.String()]
	return ok
}

// Results returns the fetch result for every node that was actually
// fetched, in node order. Nodes discovered but never fetched (the
// budget ran out before their depth band) are omitted.
func (t *Tree) Results() []fetchpipe.Result {
	results := make([]fetchpipe.Result, 0, len(t.nodes))
	for _, node := range t.nodes {
		if node.Fetched {
			results = append(results, node.Result)
		}
	}
	return results
}
