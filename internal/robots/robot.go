package robots

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/archivecrawl/crawler/internal/robots/cache"
	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before a URL is fetched

Robots checks occur in fetchpipe.Pipeline.Fetch, before the URL itself
is fetched or looked up in the page cache.
*/

// Robot is the authority the fetch pipeline consults before a URL is
// fetched. Decide must never be used to derive retry or
// abort behavior beyond its own Decision/error return.
type Robot interface {
	Decide(u url.URL) (Decision, failure.ClassifiedError)
}

// robotState holds the mutable, shared state behind a CachedRobot value.
// CachedRobot itself stays a small, comparable struct (a single pointer)
// so it can be constructed, copied, and compared to its zero value the
// way the rest of this package's types are.
type robotState struct {
	mu sync.Mutex

	sink      telemetry.Sink
	userAgent string
	fetcher   *RobotsFetcher

	// rules caches one ruleSet per host for the life of the crawl, so
	// repeated Decide calls against the same host never refetch
	// robots.txt.
	rules map[string]ruleSet
}

// CachedRobot is the default Robot implementation: it fetches robots.txt
// once per host, keeps the parsed ruleSet in memory for the remainder of
// the crawl, and evaluates every subsequent Decide against that cached
// ruleSet.
type CachedRobot struct {
	state *robotState
}

// NewCachedRobot allocates a CachedRobot wired to sink. Call Init or
// InitWithCache before the first Decide.
func NewCachedRobot(sink telemetry.Sink) CachedRobot {
	return CachedRobot{
		state: &robotState{
			sink:  sink,
			rules: make(map[string]ruleSet),
		},
	}
}

// Init configures the robot with userAgent and an in-memory robots.txt
// response cache private to this robot.
func (r CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache configures the robot with userAgent, using c as the
// underlying robots.txt response cache. Useful for tests that want to
// observe or seed fetch results.
func (r CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	r.state.userAgent = userAgent
	r.state.fetcher = NewRobotsFetcherWithClient(r.state.sink, userAgent, &http.Client{Timeout: 30 * time.Second}, c)
}

// Decide fetches (or reuses a cached) robots.txt for u's host and
// evaluates u's path against it. A non-nil error indicates a robots
// infrastructure failure (network, parsing); it never signals a plain
// disallow, which is instead reported via Decision.Allowed.
func (r CachedRobot) Decide(u url.URL) (Decision, failure.ClassifiedError) {
	// Keep any port: RobotsFetcher.Fetch takes "host" or "host:port".
	host := u.Host
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	r.state.mu.Lock()
	rs, cached := r.state.rules[host]
	fetcher := r.state.fetcher
	userAgent := r.state.userAgent
	sink := r.state.sink
	r.state.mu.Unlock()

	if !cached {
		result, err := fetcher.Fetch(context.Background(), scheme, host)
		if err != nil {
			if sink != nil {
				sink.RecordError(time.Now(), "robots", "fetch", mapRobotsErrorToMetadataCause(err), err.Error(), nil)
			}
			return Decision{}, err
		}

		rs = MapResponseToRuleSet(result.Response, userAgent, result.FetchedAt)

		r.state.mu.Lock()
		r.state.rules[host] = rs
		r.state.mu.Unlock()
	}

	allowed, reason := evaluatePath(rs, u.EscapedPath())
	decision := Decision{
		Url:     u,
		Allowed: allowed,
		Reason:  reason,
	}
	if rs.crawlDelay != nil {
		decision.CrawlDelay = *rs.crawlDelay
	}
	return decision, nil
}

// evaluatePath applies Google's longest-match-wins robots.txt semantics:
// the matching allow/disallow rule with the longest pattern wins; ties
// favor Allow.
func evaluatePath(rs ruleSet, path string) (bool, DecisionReason) {
	if path == "" {
		path = "/"
	}

	if !rs.hasGroups {
		return true, EmptyRuleSet
	}
	if !rs.matchedGroup {
		return true, UserAgentNotMatched
	}

	matched := false
	bestLen := -1
	bestAllow := true

	for _, rule := range rs.disallowRules {
		if matchesRule(rule.prefix, path) {
			l := len(rule.prefix)
			if l > bestLen {
				bestLen = l
				bestAllow = false
				matched = true
			}
		}
	}
	for _, rule := range rs.allowRules {
		if matchesRule(rule.prefix, path) {
			l := len(rule.prefix)
			if l >= bestLen {
				bestLen = l
				bestAllow = true
				matched = true
			}
		}
	}

	if !matched {
		return true, NoMatchingRules
	}
	if bestAllow {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}

var patternRegexCache sync.Map

// matchesRule reports whether path matches a robots.txt pattern, which
// may use "*" as a wildcard and a trailing "$" to anchor the end of the
// match.
func matchesRule(pattern, path string) bool {
	re, _ := patternRegexCache.LoadOrStore(pattern, compilePattern(pattern))
	return re.(*regexp.Regexp).MatchString(path)
}

func compilePattern(pattern string) *regexp.Regexp {
	anchored := strings.HasSuffix(pattern, "$")
	body := pattern
	if anchored {
		body = strings.TrimSuffix(pattern, "$")
	}

	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range body {
		if r == '*' {
			sb.WriteString(".*")
			continue
		}
		sb.WriteString(regexp.QuoteMeta(string(r)))
	}
	if anchored {
		sb.WriteString("$")
	}
	return regexp.MustCompile(sb.String())
}
