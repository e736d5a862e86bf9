package sitemap

import (
	"bufio"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"
)

// Locator discovers sitemap URLs for a seed origin. internal/mapper
// depends on this narrow interface rather than *Sitemap directly, so a
// crawl run that doesn't want the fast path can pass nil.
type Locator interface {
	Discover(ctx context.Context, seedOrigin string, limit int) []string
}

// Sitemap is the default Locator: it checks robots.txt for a Sitemap:
// directive, falls back to the conventional /sitemap.xml path, and
// follows one level of sitemap-index nesting.
type Sitemap struct {
	client *http.Client
}

func New(client *http.Client) *Sitemap {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Sitemap{client: client}
}

// Discover returns up to limit URLs found in seedOrigin's sitemap, or
// nil if none could be found or parsed. It never returns an error:
// any failure (network, parse, missing file) is reported as "no
// sitemap", matching the collaborator contract the mapper expects.
func (s *Sitemap) Discover(ctx context.Context, seedOrigin string, limit int) []string {
	origin := strings.TrimRight(seedOrigin, "/")

	for _, candidate := range s.candidateSitemapURLs(ctx, origin) {
		urls := s.fetchURLs(ctx, candidate, limit, 0)
		if len(urls) > 0 {
			if limit > 0 && len(urls) > limit {
				urls = urls[:limit]
			}
			return urls
		}
	}
	return nil
}

// candidateSitemapURLs returns the sitemap locations worth trying, in
// priority order: every Sitemap: directive from robots.txt, then the
// conventional path.
func (s *Sitemap) candidateSitemapURLs(ctx context.Context, origin string) []string {
	var candidates []string
	candidates = append(candidates, s.sitemapDirectivesFromRobots(ctx, origin)...)
	candidates = append(candidates, origin+"/sitemap.xml")
	return candidates
}

func (s *Sitemap) sitemapDirectivesFromRobots(ctx context.Context, origin string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var directives []string
	scanner := bufio.NewScanner(io.LimitReader(resp.Body, 1<<20))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			continue
		}
		value := strings.TrimSpace(line[len("sitemap:"):])
		if value != "" {
			directives = append(directives, value)
		}
	}
	return directives
}

// fetchURLs fetches and parses one sitemap document, following a
// single level of sitemap-index nesting (depth guards against an index
// that points at itself).
func (s *Sitemap) fetchURLs(ctx context.Context, sitemapURL string, limit, depth int) []string {
	if depth > 1 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		urls := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc != "" {
				urls = append(urls, loc)
			}
			if limit > 0 && len(urls) >= limit {
				break
			}
		}
		return urls
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		var urls []string
		for _, entry := range index.Sitemaps {
			loc := strings.TrimSpace(entry.Loc)
			if loc == "" {
				continue
			}
			urls = append(urls, s.fetchURLs(ctx, loc, limit-len(urls), depth+1)...)
			if limit > 0 && len(urls) >= limit {
				break
			}
		}
		return urls
	}

	return nil
}
