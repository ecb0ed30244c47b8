package scrape

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

// defaultExcludes keep the scraper off sections that never print a NIP
// but often carry long numeric ids.
var defaultExcludes = []string{
	"/blog/*",
	"/aktualnosci/*",
	"/news/*",
	"/galeria/*",
	"/sklep/*",
	"/produkt/*",
	"/wp-content/*",
	"/tag/*",
	"/category/*",
}

// skipExt are file types no fetcher can read text from.
var skipExt = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".zip", ".mp4", ".doc", ".docx"}

// PathMatcher decides which site URLs are worth fetching. Patterns are
// globs where a trailing "/*" also matches deeper paths. Configured
// patterns add to the defaults; a pattern starting with "!" re-allows
// paths an exclude would drop.
type PathMatcher struct {
	excludes []string
	allows   []string
}

// NewPathMatcher builds a matcher from the defaults plus patterns.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{excludes: slices.Clone(defaultExcludes)}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "", p == "!":
		case strings.HasPrefix(p, "!"):
			m.allows = append(m.allows, p[1:])
		default:
			m.excludes = append(m.excludes, p)
		}
	}
	return m
}

// IsExcluded reports whether rawURL should not be fetched. Unparseable
// and non-http URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return true
	}
	p := strings.ToLower(u.Path)
	if slices.Contains(skipExt, path.Ext(p)) {
		return true
	}
	for _, a := range m.allows {
		if globMatch(a, p) {
			return false
		}
	}
	for _, e := range m.excludes {
		if globMatch(e, p) {
			return true
		}
	}
	return false
}

func globMatch(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
	}
	return false
}
