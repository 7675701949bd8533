package ruleengine

import (
	"net"
	"regexp"
	"strings"
	"sync"
)

// MatchType selects how a referrer is compared with a configured domain.
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchSubdomain MatchType = "subdomain"
	MatchContains  MatchType = "contains"
	MatchRegex     MatchType = "regex"
)

// ReferrerConditions restricts a rule to visits arriving from given domains.
// No domains means no restriction.
type ReferrerConditions struct {
	Domains   []string  `json:"domains,omitempty"`
	MatchType MatchType `json:"match_type,omitempty"`
}

// Unrestricted reports whether any referrer, including none, satisfies the conditions.
func (r ReferrerConditions) Unrestricted() bool {
	return len(r.Domains) == 0
}

// Matches reports whether referrer satisfies the conditions.
func (r ReferrerConditions) Matches(referrer string) bool {
	if r.Unrestricted() {
		return true
	}
	return MatchReferrer(r.Domains, r.MatchType, referrer)
}

// MatchReferrer reports whether the normalized referrer matches any of domains.
// An empty referrer never matches a non-empty domain list.
func MatchReferrer(domains []string, mt MatchType, referrer string) bool {
	host := NormalizeReferrer(referrer)
	if host == "" {
		return false
	}
	for _, d := range domains {
		if matchDomain(host, d, mt) {
			return true
		}
	}
	return false
}

func matchDomain(host, domain string, mt MatchType) bool {
	switch mt {
	case MatchRegex:
		re := cachedRegexp(domain)
		return re != nil && re.MatchString(host)
	case MatchExact:
		return host == NormalizeReferrer(domain)
	case MatchContains:
		d := strings.ToLower(strings.TrimSpace(domain))
		return d != "" && strings.Contains(host, d)
	default:
		d := NormalizeReferrer(domain)
		return d != "" && (host == d || strings.HasSuffix(host, "."+d))
	}
}

// NormalizeReferrer reduces a referrer URL or host to a bare lowercase host:
// scheme, credentials, port, path, query and a leading "www." are removed.
//
//	NormalizeReferrer("https://WWW.Shop.Vibe.ir:443/cart?x=1") == "shop.vibe.ir"
func NormalizeReferrer(ref string) string {
	s := strings.ToLower(strings.TrimSpace(ref))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "//")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(s, ".")
	return strings.TrimPrefix(s, "www.")
}

var regexCache sync.Map // pattern -> *regexp.Regexp (nil for invalid patterns)

func cachedRegexp(pattern string) *regexp.Regexp {
	if v, ok := regexCache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	regexCache.Store(pattern, re)
	return re
}
