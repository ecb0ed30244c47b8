// Package query builds deterministic, specificity-ordered search queries
// from a parsed lead.
package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// DefaultMax is the default cap on queries per builder call.
const DefaultMax = 5

// taxKeyword is appended to every NIP search query.
const taxKeyword = "nip"

// Query is one search query with its rank and the lead fields it used.
type Query struct {
	Text     string   `json:"text"`
	Priority int      `json:"priority"` // 1 is the most specific
	Strategy string   `json:"strategy"`
	Elements []string `json:"elements"`
}

// Builder produces query lists. The zero value is not usable; use New.
type Builder struct {
	max int
}

// New creates a builder capped at limit queries. A non-positive limit means DefaultMax.
func New(limit int) *Builder {
	if limit <= 0 {
		limit = DefaultMax
	}
	return &Builder{max: limit}
}

// Max returns the configured cap.
func (b *Builder) Max() int {
	return b.max
}

type list struct {
	qs []Query
}

func (l *list) add(strategy string, elements []string, format string, args ...any) {
	l.qs = append(l.qs, Query{
		Text:     fmt.Sprintf(format, args...),
		Priority: len(l.qs) + 1,
		Strategy: strategy,
		Elements: elements,
	})
}

// NIPQueries builds NIP search queries, most specific first. When the
// registry already returned a name different from the lead's, a query
// using that name leads the list. registryCity fills a missing city.
func (b *Builder) NIPQueries(lead *model.Lead, registryName, registryCity string) []Query {
	name := lead.DisplayName()
	short := lead.ShortName
	city := firstNonEmpty(lead.City, registryCity)
	street := lead.Street

	var l list
	if registryName != "" && registryName != name && city != "" {
		l.add("registry_name + city + nip", []string{"registry_name", "city"},
			`"%s" "%s" %s`, registryName, city, taxKeyword)
	}
	if name != "" && street != "" && city != "" {
		l.add("name + street + city + nip", []string{"name", "street", "city"},
			`"%s" "%s" "%s" %s`, name, street, city, taxKeyword)
	}
	if name != "" && city != "" {
		l.add("name + city + nip", []string{"name", "city"},
			`"%s" "%s" %s`, name, city, taxKeyword)
	}
	if short != "" && city != "" && short != name {
		l.add("short_name + city + nip", []string{"short_name", "city"},
			`"%s" "%s" %s`, short, city, taxKeyword)
	}
	if name != "" {
		l.add("name + nip", []string{"name"}, `"%s" %s`, name, taxKeyword)
	}
	if short != "" && short != name {
		l.add("short_name + nip", []string{"short_name"}, `"%s" %s`, short, taxKeyword)
	}
	if name != "" && city != "" && len(lead.Keywords) > 0 {
		kw := lead.Keywords
		if len(kw) > 2 {
			kw = kw[:2]
		}
		l.add("name + city + keywords + nip", []string{"name", "city", "keywords"},
			`"%s" "%s" %s %s`, name, city, strings.Join(kw, " "), taxKeyword)
	}

	out := b.cap(l.qs)
	zap.L().Debug("query: built nip queries",
		zap.String("name", name),
		zap.String("city", city),
		zap.Int("count", len(out)),
	)
	return out
}

// WebsiteQueries builds queries for discovering the company's own site,
// most specific first. They never carry the tax keyword.
func (b *Builder) WebsiteQueries(lead *model.Lead, registryName, registryCity string) []Query {
	name := firstNonEmpty(lead.DisplayName(), registryName)
	short := lead.ShortName
	city := firstNonEmpty(lead.City, registryCity)

	var l list
	if name != "" && city != "" {
		l.add("name + city + site", []string{"name", "city"},
			`"%s" "%s" strona internetowa`, name, city)
		l.add("name + city", []string{"name", "city"}, `"%s" "%s"`, name, city)
	}
	if registryName != "" && city != "" && registryName != name {
		l.add("registry_name + city", []string{"registry_name", "city"},
			`"%s" "%s"`, registryName, city)
	}
	if short != "" && city != "" && short != name {
		l.add("short_name + city", []string{"short_name", "city"}, `"%s" "%s"`, short, city)
	}
	if name != "" {
		l.add("name_only", []string{"name"}, `"%s"`, name)
	}

	out := b.cap(l.qs)
	zap.L().Debug("query: built website queries",
		zap.String("name", name),
		zap.Int("count", len(out)),
	)
	return out
}

func (b *Builder) cap(qs []Query) []Query {
	if len(qs) > b.max {
		qs = qs[:b.max]
	}
	return qs
}

// CRMKeys are the normalized lookup keys for the CRM finder.
type CRMKeys struct {
	Domain       string   `json:"domain,omitempty"`
	Phones       []string `json:"phones,omitempty"`
	EmailDomains []string `json:"email_domains,omitempty"`
	Email        string   `json:"email,omitempty"`
	Name         string   `json:"name,omitempty"`
	City         string   `json:"city,omitempty"`
}

// Empty reports whether no contact key is available. Name and city alone
// are not enough to query the CRM.
func (k CRMKeys) Empty() bool {
	return k.Domain == "" && len(k.Phones) == 0 && len(k.EmailDomains) == 0
}

// BuildCRMKeys derives CRM lookup keys from a lead. Phones are reduced to
// the 9-digit national number; public mailbox domains are never used.
func BuildCRMKeys(lead *model.Lead) CRMKeys {
	var k CRMKeys
	if p := nip.Last9(lead.Phone); p != "" {
		k.Phones = []string{p}
	}
	if lead.Email != "" {
		k.Email = nip.NormalizeEmail(lead.Email)
		if d := nip.EmailDomain(lead.Email); d != "" && !nip.IsPublicEmailDomain(d) {
			k.EmailDomains = []string{d}
		}
	}
	if lead.Website != "" {
		k.Domain = nip.NormalizeDomain(lead.Website)
	}
	k.Name = lead.DisplayName()
	k.City = lead.City
	return k
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
