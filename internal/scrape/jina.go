package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/jina"
)

// JinaFetcher wraps the Jina reader as a Fetcher. Three consecutive
// failures open its breaker for a minute, during which Supports reports
// false and the chain moves on.
type JinaFetcher struct {
	client  jina.Client
	breaker *resilience.Breaker
}

// NewJinaFetcher creates a JinaFetcher from a Jina client.
func NewJinaFetcher(client jina.Client) *JinaFetcher {
	return &JinaFetcher{
		client:  client,
		breaker: resilience.NewBreaker("jina_reader", resilience.BreakerConfig{Threshold: 3, Cooldown: time.Minute}),
	}
}

func (j *JinaFetcher) Name() string { return "jina" }

// Supports returns true unless the breaker is open.
func (j *JinaFetcher) Supports(_ string) bool {
	return j.breaker.State() != resilience.Open
}

// Fetch reads a URL through the reader and validates the response.
func (j *JinaFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := resilience.Call(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, eris.Errorf("jina: unusable content for %s", targetURL)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &Result{
		Page: Page{
			URL:        pageURL,
			Title:      resp.Data.Title,
			Text:       strings.TrimSpace(spaceRe.ReplaceAllString(resp.Data.Content, " ")),
			StatusCode: 200,
		},
		Source: "jina",
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// needsFallback reports whether a reader response is empty, an error or a
// bot challenge rather than the page itself.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 50 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
