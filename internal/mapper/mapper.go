package mapper

import (
	"context"

	"github.com/archivecrawl/crawler/internal/dispatch"
	"github.com/archivecrawl/crawler/internal/fetchpipe"
	"github.com/archivecrawl/crawler/internal/monitor"
	"github.com/archivecrawl/crawler/internal/normalizeurl"
	"github.com/archivecrawl/crawler/internal/sitemap"
)

/*
Responsibilities

- Traverse from a seed URL up to a bounded depth and page count
- Fetch one full depth band concurrently before expanding the next
- Enforce first-occurrence-wins: a URL is only ever fetched once, no
  matter how many pages link to it or at what depth it resurfaces
- Count every fetch attempt (success or failure) against the page
  budget, not just successes

The mapper owns the frontier and the visited set; Fetcher owns a single
URL's fetch.
*/

// Fetcher is the capability the mapper drives. internal/fetchpipe.Pipeline
// satisfies this directly.
type Fetcher interface {
	Fetch(ctx context.Context, target normalizeurl.Canonical, baseDomain string) fetchpipe.Result
}

// Params bounds one Build call.
type Params struct {
	MaxDepth      int
	MaxPages      int
	MaxConcurrent int64
}

type Mapper struct {
	fetcher    Fetcher
	dispatcher dispatch.Dispatcher[fetchpipe.Result]
	monitor    *monitor.Monitor
	sitemap    sitemap.Locator
	params     Params
}

func New(fetcher Fetcher, dispatcher dispatch.Dispatcher[fetchpipe.Result], mon *monitor.Monitor, params Params) *Mapper {
	return &Mapper{fetcher: fetcher, dispatcher: dispatcher, monitor: mon, params: params}
}

// WithSitemap arms the optional pre-BFS sitemap fast path: when locator
// returns URLs for the seed's origin, Build emits a two-level tree
// (root + depth-1 children) from them and skips ordinary BFS entirely.
// This is a performance shortcut only; it does not change any
// traversal invariant, and an empty/nil result from locator falls
// straight through to BFS.
func (m *Mapper) WithSitemap(locator sitemap.Locator) *Mapper {
	m.sitemap = locator
	return m
}

// Build runs the bounded BFS from seed and returns the resulting Tree.
// baseDomain scopes internal/external link classification the same way
// it does in fetchpipe.
func (m *Mapper) Build(ctx context.Context, seed normalizeurl.Canonical, baseDomain string) *Tree {
	if tree := m.buildFromSitemap(ctx, seed, baseDomain); tree != nil {
		return tree
	}

	tree := NewTree()
	rootIdx, _ := tree.addNode(seed, 0, -1)

	frontier := []int{rootIdx}
	attempts := 0
	budgetExhausted := false

	for depth := 0; len(frontier) > 0 && depth <= m.params.MaxDepth && !budgetExhausted; depth++ {
		var tasks []dispatch.Task[fetchpipe.Result]
		var taskNodes []int

		for _, nodeIdx := range frontier {
			if m.params.MaxPages > 0 && attempts >= m.params.MaxPages {
				budgetExhausted = true
				break
			}
			attempts++

			nodeIdx := nodeIdx
			node := tree.Node(nodeIdx)
			tasks = append(tasks, dispatch.Task[fetchpipe.Result]{
				Origin: normalizeurl.FullHost(node.URL),
				Run: func(ctx context.Context) (fetchpipe.Result, error) {
					return m.fetcher.Fetch(ctx, node.URL, baseDomain), nil
				},
			})
			taskNodes = append(taskNodes, nodeIdx)
		}

		if len(tasks) == 0 {
			break
		}

		results, _ := m.dispatcher.Run(ctx, tasks)

		var nextFrontier []int
		for i, result := range results {
			nodeIdx := taskNodes[i]
			node := tree.Node(nodeIdx)
			node.Fetched = true
			node.Success = result.Err == nil && result.Value.Success()
			node.Result = result.Value

			if m.monitor != nil {
				m.monitor.RecordResult(normalizeurl.FullHost(node.URL), result.Value)
			}

			if !node.Success || depth >= m.params.MaxDepth {
				continue
			}

			for _, link := range result.Value.Links {
				if m.params.MaxPages > 0 && attempts >= m.params.MaxPages {
					budgetExhausted = true
					break
				}
				childIdx, isNew := tree.addNode(link, depth+1, nodeIdx)
				if isNew {
					nextFrontier = append(nextFrontier, childIdx)
				}
			}
		}

		frontier = nextFrontier
	}

	return tree
}

// buildFromSitemap implements the optional pre-BFS fast path: if a
// sitemap locator is armed and returns URLs for seed's origin, it
// fetches the seed plus every discovered URL as depth-1 children in
// one concurrent wave and returns that two-level tree. Returns nil
// (falling through to ordinary BFS) when no locator is armed, or the
// locator finds nothing.
func (m *Mapper) buildFromSitemap(ctx context.Context, seed normalizeurl.Canonical, baseDomain string) *Tree {
	if m.sitemap == nil {
		return nil
	}

	origin := seed.Scheme() + "://" + seed.Host()
	rawURLs := m.sitemap.Discover(ctx, origin, m.params.MaxPages)
	if len(rawURLs) == 0 {
		return nil
	}

	tree := NewTree()
	rootIdx, _ := tree.addNode(seed, 0, -1)

	nodes := []int{rootIdx}
	seedVal := seed
	for _, raw := range rawURLs {
		if m.params.MaxPages > 0 && len(nodes) >= m.params.MaxPages {
			break
		}
		normalized, err := normalizeurl.Normalize(raw, &seedVal, false)
		if err != nil {
			continue
		}
		idx, isNew := tree.addNode(normalized, 1, rootIdx)
		if isNew {
			nodes = append(nodes, idx)
		}
	}

	tasks := make([]dispatch.Task[fetchpipe.Result], 0, len(nodes))
	for _, idx := range nodes {
		idx := idx
		node := tree.Node(idx)
		tasks = append(tasks, dispatch.Task[fetchpipe.Result]{
			Origin: normalizeurl.FullHost(node.URL),
			Run: func(ctx context.Context) (fetchpipe.Result, error) {
				return m.fetcher.Fetch(ctx, node.URL, baseDomain), nil
			},
		})
	}

	results, _ := m.dispatcher.Run(ctx, tasks)
	for i, result := range results {
		node := tree.Node(nodes[i])
		node.Fetched = true
		node.Success = result.Err == nil && result.Value.Success()
		node.Result = result.Value
		if m.monitor != nil {
			m.monitor.RecordResult(normalizeurl.FullHost(node.URL), result.Value)
		}
	}

	return tree
}
