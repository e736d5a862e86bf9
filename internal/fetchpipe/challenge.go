package fetchpipe

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// cdnServerMarkers are "Server" header substrings belonging to CDNs that
// front Cloudflare-style interstitials.
var cdnServerMarkers = []string{"cloudflare", "cloudfront", "akamai"}

// probeChallenge issues a cheap HEAD request and inspects response
// headers for a pre-render challenge signal (S4), so the pipeline can
// skip straight to the rendered tier instead of wasting an HTTP-tier GET
// against a page it already knows will be gated.
func probeChallenge(ctx context.Context, target url.URL, userAgent string, timeout time.Duration) bool {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, target.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge") {
		return true
	}

	server := strings.ToLower(resp.Header.Get("Server"))
	isCDN := false
	for _, marker := range cdnServerMarkers {
		if strings.Contains(server, marker) {
			isCDN = true
			break
		}
	}
	if !isCDN {
		return false
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return true
	}
	if resp.Header.Get("cf-ray") != "" && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable) {
		return true
	}

	return false
}

// challengeTextMarkers flags a rendered page body as still showing a
// challenge interstitial when the title check alone is inconclusive
// (some providers leave the title unchanged but swap in challenge copy).
var challengeTextMarkers = []string{
	"checking if the site connection is secure",
	"needs to review the security of your connection",
	"ray id",
}

func looksLikeChallengeContent(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range challengeTextMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
