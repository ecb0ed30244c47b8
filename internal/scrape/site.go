package scrape

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// Hit is the outcome of scraping one site. An empty NIP means the pages
// were read and none printed a valid NIP.
type Hit struct {
	NIP    string `json:"nip,omitempty"`
	URL    string `json:"url,omitempty"`
	Domain string `json:"domain"`
	Pages  int    `json:"pages"`
}

// Scraper finds the NIP a company prints on its own website.
type Scraper interface {
	ScrapeForIdentifier(ctx context.Context, site string) model.Outcome[Hit]
}

// commonPaths are tried after links discovered on the homepage.
var commonPaths = []string{"/kontakt", "/contact", "/o-nas", "/polityka-prywatnosci", "/regulamin"}

// contactRe matches link targets or labels that usually lead to company data.
var contactRe = regexp.MustCompile(`(?i)kontakt|contact|o-nas|o nas|about|dane-firmy|dane firmy|impressum|polityka|regulamin|rodo`)

// SiteOption configures a SiteScraper.
type SiteOption func(*SiteScraper)

// WithMaxPages caps pages fetched per site, homepage included.
func WithMaxPages(n int) SiteOption {
	return func(s *SiteScraper) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithConcurrency sets how many subpages are fetched at once.
func WithConcurrency(n int) SiteOption {
	return func(s *SiteScraper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithSourceLists sets the lists used to refuse portals and social sites.
func WithSourceLists(l *evidence.SourceLists) SiteOption {
	return func(s *SiteScraper) {
		if l != nil {
			s.lists = l
		}
	}
}

// SiteScraper implements Scraper over a fetch chain.
type SiteScraper struct {
	chain       *Chain
	lists       *evidence.SourceLists
	maxPages    int
	concurrency int
}

// NewSiteScraper creates a SiteScraper.
func NewSiteScraper(chain *Chain, opts ...SiteOption) *SiteScraper {
	s := &SiteScraper{
		chain:       chain,
		lists:       evidence.DefaultSourceLists(),
		maxPages:    6,
		concurrency: 3,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ScrapeForIdentifier reads the homepage, then contact-like subpages, and
// returns the first checksum-valid NIP printed with a NIP label.
func (s *SiteScraper) ScrapeForIdentifier(ctx context.Context, site string) model.Outcome[Hit] {
	domain := nip.NormalizeDomain(site)
	if domain == "" {
		return model.Unavailable[Hit]("scrape: no website")
	}
	if class := s.lists.Classify(domain); class != evidence.ClassUnknown {
		return model.Unavailable[Hit]("scrape: " + domain + " is a " + string(class) + " site")
	}

	home := homepage(site, domain)
	res, err := s.chain.Fetch(ctx, home)
	if err != nil {
		return model.Unavailable[Hit](err.Error())
	}
	hit := Hit{Domain: domain, Pages: 1}
	if id, ok := nip.Extract(res.Page.Text); ok {
		hit.NIP, hit.URL = id, res.Page.URL
		zap.L().Info("scrape: nip found", zap.String("nip", id), zap.String("url", hit.URL))
		return model.Ok(hit)
	}

	pages := s.chain.FetchAll(ctx, s.subpages(res.Page, domain), s.concurrency)
	for _, p := range pages {
		if p == nil {
			continue
		}
		hit.Pages++
		if id, ok := nip.Extract(p.Page.Text); ok {
			hit.NIP, hit.URL = id, p.Page.URL
			zap.L().Info("scrape: nip found", zap.String("nip", id), zap.String("url", hit.URL))
			return model.Ok(hit)
		}
	}

	zap.L().Debug("scrape: no nip on site", zap.String("domain", domain), zap.Int("pages", hit.Pages))
	return model.Ok(hit)
}

// ReadSite fetches the homepage and every contact-like subpage without
// stopping early. Pages that fail to load are left out.
func (s *SiteScraper) ReadSite(ctx context.Context, site string) ([]Page, error) {
	domain := nip.NormalizeDomain(site)
	if domain == "" {
		return nil, eris.New("scrape: no website")
	}
	res, err := s.chain.Fetch(ctx, homepage(site, domain))
	if err != nil {
		return nil, err
	}
	pages := []Page{res.Page}
	for _, p := range s.chain.FetchAll(ctx, s.subpages(res.Page, domain), s.concurrency) {
		if p != nil {
			pages = append(pages, p.Page)
		}
	}
	return pages, nil
}

// homepage keeps an explicit http(s) URL and otherwise assumes https.
func homepage(site, domain string) string {
	if u, err := url.Parse(strings.TrimSpace(site)); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.Scheme + "://" + u.Host + "/"
	}
	return "https://" + domain + "/"
}

// subpages lists contact-like pages on the same site: discovered links
// first, then common paths, deduplicated and capped.
func (s *SiteScraper) subpages(home Page, domain string) []string {
	if d := nip.NormalizeDomain(home.URL); d != "" {
		domain = d
	}
	limit := s.maxPages - 1
	seen := map[string]bool{strings.TrimSuffix(home.URL, "/"): true}
	var out []string
	add := func(u string) {
		key := strings.TrimSuffix(u, "/")
		if len(out) >= limit || seen[key] || s.chain.PathMatcher.IsExcluded(u) {
			return
		}
		seen[key] = true
		out = append(out, u)
	}

	for _, l := range home.Links {
		if !nip.SameDomain(l.Href, domain) {
			continue
		}
		if contactRe.MatchString(l.Href) || contactRe.MatchString(l.Text) {
			add(l.Href)
		}
	}
	base := homepage(home.URL, domain)
	for _, p := range commonPaths {
		add(strings.TrimSuffix(base, "/") + p)
	}
	return out
}
