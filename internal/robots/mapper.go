package robots

import (
	"strings"
	"time"
)

// MapResponseToRuleSet converts a RobotsResponse to an immutable ruleSet.
// This function selects the most specific user agent group matching the provided
// user agent string and creates a ruleSet from it.
func MapResponseToRuleSet(response RobotsResponse, targetUserAgent string, fetchedAt time.Time) ruleSet {
	rs := ruleSet{
		host:      response.Host,
		userAgent: targetUserAgent,
		fetchedAt: fetchedAt,
		sourceURL: "https://" + response.Host + "/robots.txt",
		hasGroups: len(response.UserAgents) > 0,
	}

	group := findBestMatchingGroup(response.UserAgents, targetUserAgent)
	if group == nil {
		return rs
	}

	rs.matchedGroup = true
	rs.allowRules = toPathRules(group.Allows)
	rs.disallowRules = toPathRules(group.Disallows)
	if group.CrawlDelay != nil {
		delay := *group.CrawlDelay
		rs.crawlDelay = &delay
	}

	return rs
}

// toPathRules normalizes a robots.txt group's raw path entries into
// pathRules, dropping any blank path.
func toPathRules(raw []PathRule) []pathRule {
	rules := make([]pathRule, 0, len(raw))
	for _, r := range raw {
		if r.Path == "" {
			continue
		}
		rules = append(rules, pathRule{prefix: normalizePath(r.Path)})
	}
	return rules
}

// findBestMatchingGroup finds the most specific user agent group matching the target.
// According to the spec:
// 1. Exact matches take precedence over wildcard matches
// 2. More specific user-agent strings take precedence over less specific ones
// 3. The wildcard (*) matches all user agents
func findBestMatchingGroup(groups []UserAgentGroup, targetUserAgent string) *UserAgentGroup {
	targetLower := strings.ToLower(targetUserAgent)

	var wildcard *UserAgentGroup
	var bestPrefix *UserAgentGroup
	bestPrefixLen := 0

	for i := range groups {
		group := &groups[i]
		for _, ua := range group.UserAgents {
			uaLower := strings.ToLower(ua)

			if uaLower == targetLower {
				return group // exact match wins outright
			}
			if ua == "*" {
				if wildcard == nil {
					wildcard = group
				}
				continue
			}
			if strings.HasPrefix(targetLower, uaLower) && len(uaLower) > bestPrefixLen {
				bestPrefix = group
				bestPrefixLen = len(uaLower)
			}
		}
	}

	if bestPrefix != nil {
		return bestPrefix
	}
	return wildcard
}

// normalizePath ensures the path starts with "/" and handles special cases.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// ruleSet getters for immutability

// Host returns the host this ruleSet applies to.
func (r ruleSet) Host() string {
	return r.host
}

// UserAgent returns the user agent string these rules apply to.
func (r ruleSet) UserAgent() string {
	return r.userAgent
}

// FetchedAt returns when this ruleSet was fetched.
func (r ruleSet) FetchedAt() time.Time {
	return r.fetchedAt
}

// SourceURL returns the URL of the robots.txt file.
func (r ruleSet) SourceURL() string {
	return r.sourceURL
}

// CrawlDelay returns the crawl delay if specified, or nil.
func (r ruleSet) CrawlDelay() *time.Duration {
	if r.crawlDelay == nil {
		return nil
	}
	delay := *r.crawlDelay
	return &delay
}

// AllowRules returns a copy of the allow rules.
func (r ruleSet) AllowRules() []pathRule {
	result := make([]pathRule, len(r.allowRules))
	copy(result, r.allowRules)
	return result
}

// DisallowRules returns a copy of the disallow rules.
func (r ruleSet) DisallowRules() []pathRule {
	result := make([]pathRule, len(r.disallowRules))
	copy(result, r.disallowRules)
	return result
}

// Prefix returns the path prefix for this rule.
func (p pathRule) Prefix() string {
	return p.prefix
}
