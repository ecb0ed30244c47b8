package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Chain tries fetchers in priority order, returning the first success.
type Chain struct {
	PathMatcher *PathMatcher
	fetchers    []Fetcher
}

// NewChain creates a Chain with the given path matcher and fetchers.
// A nil matcher uses the default exclude patterns.
func NewChain(matcher *PathMatcher, fetchers ...Fetcher) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{
		PathMatcher: matcher,
		fetchers:    fetchers,
	}
}

// Fetch tries each fetcher in order for a single URL.
func (c *Chain) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		return nil, eris.Errorf("scrape: url excluded by path matcher: %s", targetURL)
	}

	var lastErr error
	for _, f := range c.fetchers {
		if !f.Supports(targetURL) {
			continue
		}
		result, err := f.Fetch(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all fetchers failed")
	}
	return nil, eris.Errorf("scrape: no suitable fetcher for url: %s", targetURL)
}

// FetchAll fetches urls in parallel, at most maxConcurrent at a time.
// The result is index-aligned with urls; failed URLs leave a nil slot.
func (c *Chain) FetchAll(ctx context.Context, urls []string, maxConcurrent int) []*Result {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	out := make([]*Result, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, u := range urls {
		g.Go(func() error {
			result, err := c.Fetch(gCtx, u)
			if err != nil {
				zap.L().Debug("scrape: chain failed for url", zap.String("url", u), zap.Error(err))
				return nil
			}
			out[i] = result
			return nil
		})
	}
	_ = g.Wait()
	return out
}
