package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const maxBodyBytes = 1 << 20

// LocalFetcher fetches HTML via net/http, detects blocks, and reduces the
// page to visible text. Free, no API calls.
type LocalFetcher struct {
	client    *http.Client
	userAgent string
}

// NewLocalFetcher creates a LocalFetcher with sensible defaults.
func NewLocalFetcher() *LocalFetcher {
	return &LocalFetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)",
	}
}

func (l *LocalFetcher) Name() string           { return "local_http" }
func (l *LocalFetcher) Supports(_ string) bool { return true }

// Fetch gets a URL, detects blocks and extracts text and links.
func (l *LocalFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept-Language", "pl-PL,pl;q=0.9,en;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	// Redirects may land on another host; links resolve against the final URL.
	base := resp.Request.URL
	page, err := parseHTML(base, toUTF8(resp.Header.Get("Content-Type"), body))
	if err != nil {
		return nil, err
	}
	page.URL = base.String()
	page.StatusCode = resp.StatusCode
	return &Result{Page: page, Source: "local_http"}, nil
}

// skipNodes never contribute visible text.
var skipNodes = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"svg": true, "template": true, "head": true, "#comment": true,
}

var spaceRe = regexp.MustCompile(`\s+`)

// parseHTML reduces an HTML document to its title, visible text and links.
// Text nodes are joined with spaces so digits in adjacent elements never
// merge into one number.
func parseHTML(base *url.URL, body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, eris.Wrap(err, "scrape: parse html")
	}

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			switch {
			case name == "#text":
				b.WriteString(c.Text())
				b.WriteByte(' ')
			case skipNodes[name]:
			default:
				walk(c)
			}
		})
	}
	walk(doc.Selection)

	var links []Link
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, Link{Href: abs, Text: strings.TrimSpace(spaceRe.ReplaceAllString(a.Text(), " "))})
	})

	return Page{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  strings.TrimSpace(spaceRe.ReplaceAllString(b.String(), " ")),
		Links: links,
	}, nil
}
