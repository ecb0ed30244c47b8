package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/query"
)

// WebsiteFinder discovers a company's own website.
type WebsiteFinder interface {
	// FindWebsite returns Ok with "" when the searches ran and no result
	// looked like an official site.
	FindWebsite(ctx context.Context, queries []query.Query) model.Outcome[string]
}

// nonOfficial lists hosts that never serve as a company's own site even
// though the source lists leave them unclassified.
var nonOfficial = map[string]bool{
	"google.com":     true,
	"google.pl":      true,
	"youtube.com":    true,
	"wikipedia.org":  true,
	"znanylekarz.pl": true,
	"booksy.com":     true,
	"kliniki.pl":     true,
	"oferteo.pl":     true,
	"gowork.pl":      true,
}

// FindWebsite implements WebsiteFinder. The first result whose domain is
// neither listed nor a known portal wins.
func (c *Cascade) FindWebsite(ctx context.Context, queries []query.Query) model.Outcome[string] {
	if c.web == nil {
		return model.Unavailable[string]("search: no provider configured")
	}
	if len(queries) == 0 {
		return model.Unavailable[string]("search: nothing to search for")
	}

	ran := false
	var lastErr error
	for _, q := range queries {
		resp, err := c.searchWeb(ctx, q.Text)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		ran = true
		for _, r := range resp.Data {
			if d := nip.DomainFromURL(r.URL); c.official(d) {
				zap.L().Info("search: website found", zap.String("domain", d), zap.String("query", q.Text))
				return model.Ok(d)
			}
		}
	}
	if !ran && lastErr != nil {
		return model.Unavailable[string](lastErr.Error())
	}
	return model.Ok("")
}

func (c *Cascade) official(domain string) bool {
	if domain == "" || portal(domain) {
		return false
	}
	return c.lists.Classify(domain) == evidence.ClassUnknown
}

// portal reports whether domain or one of its parents is in nonOfficial.
func portal(domain string) bool {
	d := nip.NormalizeDomain(domain)
	for d != "" {
		if nonOfficial[d] {
			return true
		}
		_, rest, ok := strings.Cut(d, ".")
		if !ok || !strings.Contains(rest, ".") {
			return false
		}
		d = rest
	}
	return false
}
