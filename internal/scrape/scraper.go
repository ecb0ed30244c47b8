// Package scrape reads a company's own website looking for its NIP.
// Pages are fetched through a chain of fetchers: a plain HTTP client first,
// then the Jina reader when the site blocks bots or renders with JavaScript,
// then Firecrawl when configured.
package scrape

import (
	"context"
)

// Page is a fetched page reduced to visible text.
type Page struct {
	URL        string
	Title      string
	Text       string
	Links      []Link
	StatusCode int
}

// Link is an anchor found on a page.
type Link struct {
	Href string
	Text string
}

// Result holds a fetched page with the fetcher that produced it.
type Result struct {
	Page   Page
	Source string // e.g. "local_http", "jina", "firecrawl"
}

// Fetcher fetches a single URL and returns its content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
