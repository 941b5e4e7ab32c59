package links

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern is deliberately loose: anything http(s) up to whitespace or a
// closing angle bracket. Discord renders both bare and <wrapped> links.
var urlPattern = regexp.MustCompile(`https?://[^\s<>]+`)

// Sanitizer strips tracking state from shared links. Bilibili URLs carry
// per-user share tokens in their query string, and b23.tv short links embed
// the sharer's identity; both are rewritten so reposts cannot be traced
// back to the member who shared them.
type Sanitizer struct {
	exemptRoleID string
}

func NewSanitizer(exemptRoleID string) *Sanitizer {
	return &Sanitizer{exemptRoleID: exemptRoleID}
}

// Exempt reports whether a member's roles opt them out of rewriting.
func (s *Sanitizer) Exempt(roleIDs []string) bool {
	if s.exemptRoleID == "" {
		return false
	}
	for _, id := range roleIDs {
		if id == s.exemptRoleID {
			return true
		}
	}
	return false
}

// Sanitize rewrites every matching link in content and reports whether
// anything changed. Content without bilibili links passes through intact.
func (s *Sanitizer) Sanitize(content string) (string, bool) {
	changed := false
	out := urlPattern.ReplaceAllStringFunc(content, func(raw string) string {
		cleaned, ok := sanitizeURL(raw)
		if !ok {
			return raw
		}
		changed = true
		return cleaned
	})
	return out, changed
}

func sanitizeURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, false
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "b23.tv":
		// The short-link path itself is the share token carrier; pointing
		// it at the mirror domain severs the tracking.
		u.Host = "b23.tf"
		u.RawQuery = ""
		u.Fragment = ""
		return u.String(), true

	case host == "bilibili.com" || strings.HasSuffix(host, ".bilibili.com"):
		query := u.Query()
		kept := url.Values{}
		// "p" selects the part of a multi-part video and is the only
		// parameter that changes what the link shows.
		if p := query.Get("p"); p != "" {
			kept.Set("p", p)
		}
		next := kept.Encode()
		if next == u.RawQuery && u.Fragment == "" {
			return raw, false
		}
		u.RawQuery = next
		u.Fragment = ""
		return u.String(), true

	default:
		return raw, false
	}
}
