package normalizeurl

import (
	"net/url"
	"sort"
	"strings"
)

// twoLabelPublicSuffixes are public suffixes that themselves occupy two
// labels, so their registrable domain needs three labels instead of the
// usual two (e.g. "example.co.uk", not "co.uk").
var twoLabelPublicSuffixes = map[string]bool{
	"co.uk":  true,
	"co.jp":  true,
	"com.au": true,
	"co.nz":  true,
}

// Normalize resolves href against base (if given), lowercases scheme
// and host, drops the fragment unless preserveFragment is set, and
// sorts query parameters lexicographically by key while preserving
// duplicate keys and blank values.
func Normalize(href string, base *Canonical, preserveFragment bool) (Canonical, error) {
	href = strings.TrimSpace(href)

	var resolved *url.URL
	if base != nil {
		parsed, err := url.Parse(href)
		if err != nil {
			return Canonical{}, ErrUnresolvable
		}
		baseURL := base.u
		resolved = baseURL.ResolveReference(parsed)
	} else {
		candidate := href
		if !strings.Contains(candidate, "://") {
			candidate = "https://" + strings.TrimPrefix(candidate, "//")
		}
		parsed, err := url.Parse(candidate)
		if err != nil {
			return Canonical{}, ErrUnresolvable
		}
		resolved = parsed
	}

	if resolved.Host == "" {
		return Canonical{}, ErrUnresolvable
	}

	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = strings.ToLower(resolved.Host)

	if !preserveFragment {
		resolved.Fragment = ""
		resolved.RawFragment = ""
	}

	resolved.RawQuery = sortQuery(resolved.RawQuery)

	return Canonical{raw: resolved.String(), u: *resolved}, nil
}

// sortQuery reorders "k=v" pairs by key, lexicographically, using a
// stable sort so duplicate keys keep their relative order. Blank
// values ("a=" or bare "a") are preserved verbatim.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	sort.SliceStable(pairs, func(i, j int) bool {
		return queryKey(pairs[i]) < queryKey(pairs[j])
	})
	return strings.Join(pairs, "&")
}

func queryKey(pair string) string {
	if idx := strings.IndexByte(pair, '='); idx >= 0 {
		return pair[:idx]
	}
	return pair
}

// BaseDomain strips "www." and any port from the host, then returns
// the last two labels, or the last three for known two-label public
// suffixes (co.uk, co.jp, com.au, co.nz).
func BaseDomain(c Canonical) string {
	host := c.u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	labels := strings.Split(host, ".")

	if len(labels) <= 2 {
		return host
	}

	lastTwo := strings.Join(labels[len(labels)-2:], ".")
	if twoLabelPublicSuffixes[lastTwo] && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return lastTwo
}

// FullHost returns the lowercased host, including any explicit port
// (default ports are not stripped), exactly as it appears in the
// canonical URL. It is the rate limiter
// and same-host-scope key.
func FullHost(c Canonical) string {
	return c.u.Host
}

// IsInternal reports whether u's base domain equals baseDomain or is a
// subdomain of it.
func IsInternal(u Canonical, baseDomain string) bool {
	d := BaseDomain(u)
	return d == baseDomain || strings.HasSuffix(d, "."+baseDomain)
}

// Validate requires a non-empty host; if a scheme is present it must
// be http or https.
func Validate(c Canonical) bool {
	if c.u.Host == "" {
		return false
	}
	if c.u.Scheme != "" && c.u.Scheme != "http" && c.u.Scheme != "https" {
		return false
	}
	return true
}
