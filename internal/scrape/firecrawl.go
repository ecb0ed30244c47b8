package scrape

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/firecrawl"
)

// FirecrawlFetcher wraps the Firecrawl scrape API as the last Fetcher of a
// chain. Unlike the reader it returns the page's links, so subpage
// discovery still works on sites only Firecrawl can render.
type FirecrawlFetcher struct {
	client  firecrawl.Client
	breaker *resilience.Breaker
}

// NewFirecrawlFetcher creates a FirecrawlFetcher from a Firecrawl client.
func NewFirecrawlFetcher(client firecrawl.Client) *FirecrawlFetcher {
	return &FirecrawlFetcher{
		client:  client,
		breaker: resilience.NewBreaker("firecrawl", resilience.BreakerConfig{Threshold: 3, Cooldown: time.Minute}),
	}
}

func (f *FirecrawlFetcher) Name() string { return "firecrawl" }

// Supports returns true unless the breaker is open.
func (f *FirecrawlFetcher) Supports(_ string) bool {
	return f.breaker.State() != resilience.Open
}

// Fetch scrapes a single URL, keeping footers where the NIP usually is.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.Call(ctx, f.breaker, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:     targetURL,
			Formats: []string{"markdown", "links"},
		})
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, eris.Errorf("firecrawl: scrape of %s not successful: %s", targetURL, resp.Error)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	pageURL := resp.Data.Metadata.SourceURL
	if pageURL == "" {
		pageURL = targetURL
	}
	status := resp.Data.Metadata.StatusCode
	if status == 0 {
		status = 200
	}

	links := make([]Link, 0, len(resp.Data.Links))
	for _, href := range resp.Data.Links {
		links = append(links, Link{Href: href})
	}
	return &Result{
		Page: Page{
			URL:        pageURL,
			Title:      resp.Data.Metadata.Title,
			Text:       markdownText(resp.Data.Markdown),
			Links:      links,
			StatusCode: status,
		},
		Source: "firecrawl",
	}, nil
}

var (
	mdLinkRe = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdMarkRe = regexp.MustCompile("[#*`>|]+")
)

// markdownText flattens markdown to the visible words.
func markdownText(md string) string {
	s := mdLinkRe.ReplaceAllString(md, "$1")
	s = mdMarkRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
