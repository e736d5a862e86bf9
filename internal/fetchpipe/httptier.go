package fetchpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

/*
Responsibilities

- Perform the cheap HTTP-only fetch attempt (S3)
- Apply browser-like headers and a bounded timeout
- Classify the response so the caller can decide whether to escalate to
  a rendered fetch

httpTier never parses content; it only returns bytes, status, and
headers. Escalation decisions (needsBrowserTier) live alongside it
because they only make sense applied to a body this tier just fetched.
*/

type httpTier struct {
	client *http.Client
}

func newHTTPTier(timeout time.Duration) *httpTier {
	return &httpTier{client: &http.Client{Timeout: timeout}}
}

type httpResponse struct {
	body       []byte
	statusCode int
	headers    map[string]string
}

func (t *httpTier) fetch(ctx context.Context, target url.URL, userAgent string, extraHeaders map[string]string) (httpResponse, *FetchPipeError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return httpResponse{}, &FetchPipeError{Message: err.Error(), Retryable: false, Cause: ErrCauseHTTPTier}
	}

	for k, v := range requestHeaders(userAgent) {
		req.Header.Set(k, v)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return httpResponse{}, &FetchPipeError{Message: fmt.Sprintf("request failed: %v", err), Retryable: true, Cause: ErrCauseHTTPTier}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResponse{}, &FetchPipeError{Message: fmt.Sprintf("failed to read response body: %v", err), Retryable: true, Cause: ErrCauseHTTPTier}
	}

	headers := make(map[string]string, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			headers[k] = vals[0]
		}
	}

	return httpResponse{body: body, statusCode: resp.StatusCode, headers: headers}, nil
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Accept-Encoding": "gzip, deflate, br",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}

// spaRootMarkers are attribute fragments that indicate a single-page-app
// mount point whose real content is assembled client-side.
var spaRootMarkers = []string{
	`id="root"`,
	`id="app"`,
	`id="__next"`,
	`data-reactroot`,
}

// needsBrowserTier applies the S3 escalation heuristic: a body that is
// too short to be real content, a body that looks like a bare SPA mount
// point, or a long noscript block mentioning JavaScript, all indicate
// the page needs a rendering browser to produce real content.
func needsBrowserTier(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < 100 {
		return true
	}

	lower := strings.ToLower(string(trimmed))
	if len(trimmed) < 500 {
		for _, marker := range spaRootMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}

	if idx := strings.Index(lower, "<noscript"); idx >= 0 {
		end := strings.Index(lower[idx:], "</noscript>")
		if end >= 0 {
			block := lower[idx : idx+end]
			if len(block) > 50 && strings.Contains(block, "javascript") {
				return true
			}
		}
	}

	return false
}
