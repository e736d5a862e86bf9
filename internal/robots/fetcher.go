package robots

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/archivecrawl/crawler/internal/robots/cache"
	"github.com/archivecrawl/crawler/internal/telemetry"
)

/*
RobotsFetcher fetches and parses one host's robots.txt.

Responsibilities:
  - Fetch robots.txt per host over net/http
  - Turn the raw body into a RobotsResponse
  - Translate HTTP status codes into fetch outcomes per the crawl's
    robots handling rules
  - Cache fetched results through the supplied cache.Cache, when present

RobotsFetcher only answers "what does robots.txt say"; deciding whether
a given URL may be crawled is mapper.go's and robot.go's job.
*/

// maxRobotsTxtBytes bounds how much of a robots.txt body gets read; a
// host serving something absurdly large past this point is truncated
// rather than read in full.
const maxRobotsTxtBytes = 500 * 1024

// RobotsFetcher fetches and parses robots.txt files from hosts.
type RobotsFetcher struct {
	httpClient *http.Client
	userAgent  string
	cache      cache.Cache
}

// RobotsFetchResult represents the result of fetching a robots.txt file.
type RobotsFetchResult struct {
	Response    RobotsResponse
	FetchedAt   time.Time
	SourceURL   string
	HTTPStatus  int
	ContentType string
}

// cacheEnvelope is the JSON-serializable shape of RobotsFetchResult
// stored under each host's cache key.
type cacheEnvelope struct {
	Response    RobotsResponse `json:"response"`
	FetchedAt   time.Time      `json:"fetched_at"`
	SourceURL   string         `json:"source_url"`
	HTTPStatus  int            `json:"http_status"`
	ContentType string         `json:"content_type"`
}

// NewRobotsFetcher creates a new RobotsFetcher with the given dependencies.
// The cache parameter is optional - if nil, no caching will be performed.
func NewRobotsFetcher(
	metadataSink telemetry.Sink,
	userAgent string,
	cache cache.Cache,
) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  userAgent,
		cache:      cache,
	}
}

// NewRobotsFetcherWithClient creates a new RobotsFetcher with a custom HTTP client.
// This is useful for testing.
// The cache parameter is optional - if nil, no caching will be performed.
func NewRobotsFetcherWithClient(
	metadataSink telemetry.Sink,
	userAgent string,
	httpClient *http.Client,
	cache cache.Cache,
) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		cache:      cache,
	}
}

// robotsCacheKey builds the cache key one host's robots.txt is stored
// and looked up under.
func robotsCacheKey(scheme, hostname string) string {
	return fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)
}

func encodeCachedResult(result RobotsFetchResult) (string, error) {
	data, err := json.Marshal(cacheEnvelope{
		Response:    result.Response,
		FetchedAt:   result.FetchedAt,
		SourceURL:   result.SourceURL,
		HTTPStatus:  result.HTTPStatus,
		ContentType: result.ContentType,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeCachedResult(data string) (RobotsFetchResult, error) {
	var envelope cacheEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return RobotsFetchResult{}, err
	}
	return RobotsFetchResult{
		Response:    envelope.Response,
		FetchedAt:   envelope.FetchedAt,
		SourceURL:   envelope.SourceURL,
		HTTPStatus:  envelope.HTTPStatus,
		ContentType: envelope.ContentType,
	}, nil
}

// Fetch retrieves the robots.txt file from the given host.
// The hostname should be in the form "example.com" or "example.com:8080".
// The scheme (http/https) must be provided to construct the URL.
// If a cache is configured, it will check the cache first and store results after fetching.
func (f *RobotsFetcher) Fetch(ctx context.Context, scheme, hostname string) (RobotsFetchResult, *RobotsError) {
	key := robotsCacheKey(scheme, hostname)
	if f.cache != nil {
		if cachedData, found := f.cache.Get(key); found {
			if result, err := decodeCachedResult(cachedData); err == nil {
				return result, nil
			}
			// Corrupt or stale cache entry - fall through and refetch.
		}
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, hostname)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCausePreFetchFailure,
		}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain,text/html,*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("failed to fetch robots.txt: %v", err),
			Retryable: true,
			Cause:     ErrCauseHttpFetchFailure,
		}
	}
	defer resp.Body.Close()

	result, fetchErr := f.handleStatus(resp, hostname, robotsURL)
	if fetchErr != nil {
		return RobotsFetchResult{}, fetchErr
	}

	if f.cache != nil {
		if cachedData, err := encodeCachedResult(result); err == nil {
			f.cache.Put(key, cachedData)
		}
	}

	return result, nil
}

// handleStatus maps resp's status code onto a fetch outcome: a 2xx parses
// the body, a 4xx (other than 429) means no robots.txt exists and nothing
// is restricted, and anything else is a retryable or non-retryable
// RobotsError depending on whether a retry stands a chance of succeeding.
func (f *RobotsFetcher) handleStatus(resp *http.Response, hostname, robotsURL string) (RobotsFetchResult, *RobotsError) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return f.parseSuccessfulResponse(resp, hostname, robotsURL)

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// net/http follows redirects internally, and an exceeded redirect
		// limit comes back as an error from Do; reaching this branch means
		// a 3xx that was not followed (e.g. no Location header, or a 304).
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("redirect loop or too many redirects for %s", robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpTooManyRedirects,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("rate limited (429) when fetching %s", robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpTooManyRequests,
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return RobotsFetchResult{
			Response: RobotsResponse{
				Host:       hostname,
				Sitemaps:   []string{},
				UserAgents: []UserAgentGroup{},
			},
			FetchedAt:   time.Now(),
			SourceURL:   robotsURL,
			HTTPStatus:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil

	case resp.StatusCode >= 500:
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("server error (%d) when fetching %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpServerError,
		}

	default:
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("unexpected status code %d for %s", resp.StatusCode, robotsURL),
			Retryable: true,
			Cause:     ErrCauseHttpUnexpectedStatus,
		}
	}
}

func (f *RobotsFetcher) parseSuccessfulResponse(resp *http.Response, hostname, sourceURL string) (RobotsFetchResult, *RobotsError) {
	limitedReader := io.LimitReader(resp.Body, maxRobotsTxtBytes+1)

	content, err := io.ReadAll(limitedReader)
	if err != nil {
		return RobotsFetchResult{}, &RobotsError{
			Message:   fmt.Sprintf("failed to read robots.txt body: %v", err),
			Retryable: true,
			Cause:     ErrCauseParseError,
		}
	}
	if len(content) > maxRobotsTxtBytes {
		content = content[:maxRobotsTxtBytes]
	}

	return RobotsFetchResult{
		Response:    ParseRobotsTxt(string(content), hostname),
		FetchedAt:   time.Now(),
		SourceURL:   sourceURL,
		HTTPStatus:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// robotsLineBuilder accumulates the user-agent groups parsed out of a
// robots.txt body. Rules that appear before any "User-Agent:" line are
// held in a synthetic wildcard group rather than discarded.
type robotsLineBuilder struct {
	response      RobotsResponse
	current       *UserAgentGroup
	leading       UserAgentGroup
	hasLeadingSet bool
}

func (b *robotsLineBuilder) onUserAgent(value string) {
	switch {
	case b.current == nil:
		b.current = &UserAgentGroup{UserAgents: []string{value}, Allows: []PathRule{}, Disallows: []PathRule{}}
	case len(b.current.Allows) == 0 && len(b.current.Disallows) == 0 && b.current.CrawlDelay == nil:
		// Still collecting bare user-agent lines for one shared rule set.
		b.current.UserAgents = append(b.current.UserAgents, value)
	default:
		b.response.UserAgents = append(b.response.UserAgents, *b.current)
		b.current = &UserAgentGroup{UserAgents: []string{value}, Allows: []PathRule{}, Disallows: []PathRule{}}
	}
}

func (b *robotsLineBuilder) onAllow(value string) {
	if b.current != nil {
		b.current.Allows = append(b.current.Allows, PathRule{Path: value})
		return
	}
	b.leading.Allows = append(b.leading.Allows, PathRule{Path: value})
	b.hasLeadingSet = true
}

func (b *robotsLineBuilder) onDisallow(value string) {
	if b.current != nil {
		b.current.Disallows = append(b.current.Disallows, PathRule{Path: value})
		return
	}
	b.leading.Disallows = append(b.leading.Disallows, PathRule{Path: value})
	b.hasLeadingSet = true
}

func (b *robotsLineBuilder) onCrawlDelay(value string) {
	if b.current == nil {
		return
	}
	var seconds float64
	if _, err := fmt.Sscanf(value, "%f", &seconds); err == nil && seconds >= 0 {
		delay := time.Duration(seconds * float64(time.Second))
		b.current.CrawlDelay = &delay
	}
}

func (b *robotsLineBuilder) onSitemap(value string) {
	if value != "" {
		b.response.Sitemaps = append(b.response.Sitemaps, value)
	}
}

func (b *robotsLineBuilder) finish() RobotsResponse {
	if b.current != nil && (len(b.current.Allows) > 0 || len(b.current.Disallows) > 0 ||
		b.current.CrawlDelay != nil || len(b.current.UserAgents) > 0) {
		b.response.UserAgents = append(b.response.UserAgents, *b.current)
	}
	if b.hasLeadingSet && (len(b.leading.Allows) > 0 || len(b.leading.Disallows) > 0) {
		b.leading.UserAgents = []string{"*"}
		b.response.UserAgents = append([]UserAgentGroup{b.leading}, b.response.UserAgents...)
	}
	return b.response
}

// ParseRobotsTxt parses robots.txt content into a structured format.
// This is exported for testing purposes.
func ParseRobotsTxt(content, hostname string) RobotsResponse {
	builder := &robotsLineBuilder{
		response: RobotsResponse{
			Host:       hostname,
			Sitemaps:   []string{},
			UserAgents: []UserAgentGroup{},
		},
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(line[:colonIdx]))
		value := strings.TrimSpace(line[colonIdx+1:])

		switch field {
		case "user-agent":
			builder.onUserAgent(value)
		case "allow":
			builder.onAllow(value)
		case "disallow":
			builder.onDisallow(value)
		case "crawl-delay":
			builder.onCrawlDelay(value)
		case "sitemap":
			builder.onSitemap(value)
		}
	}

	return builder.finish()
}

func (f *RobotsFetcher) UserAgent() string {
	return f.userAgent
}

func (f *RobotsFetcher) HttpClient() *http.Client {
	return f.httpClient
}

func (f *RobotsFetcher) Cache() cache.Cache {
	return f.cache
}
