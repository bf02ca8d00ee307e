package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns are used when no custom patterns are provided.
var defaultExcludePatterns = []string{
	"/user/*",
	"/r/*/wiki/*",
}

// PathMatcher filters URLs based on glob-style path patterns.
// A pattern ending in "/*" also matches deeper paths, so "/user/*" excludes
// "/user/name/comments".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/user/*", "/*.pdf").
// Falls back to default patterns if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Filter returns urls that are not excluded, preserving order.
func (m *PathMatcher) Filter(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !m.IsExcluded(u) {
			out = append(out, u)
		}
	}
	return out
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return m.isPathExcluded(u.Path)
}

// isPathExcluded checks a URL path against all patterns.
func (m *PathMatcher) isPathExcluded(urlPath string) bool {
	urlPath = strings.ToLower(urlPath)
	for _, pattern := range m.patterns {
		pattern = strings.ToLower(pattern)
		if matchSegmented(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented tries path.Match, then treats a trailing "/*" as a
// prefix match. A "*" segment inside the prefix matches exactly one
// segment, so "/r/*/wiki/*" matches "/r/laptops/wiki/faq/buying".
func matchSegmented(pattern, urlPath string) bool {
	// Try exact stdlib glob match first.
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if !strings.HasSuffix(pattern, "/*") {
		return false
	}
	prefix := strings.Split(strings.TrimSuffix(pattern, "/*"), "/")
	segs := strings.Split(strings.TrimSuffix(urlPath, "/"), "/")
	if len(segs) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if ok, _ := path.Match(p, segs[i]); !ok {
			return false
		}
	}
	return true
}
