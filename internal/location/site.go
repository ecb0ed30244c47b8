package location

import (
	"regexp"
	"strings"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/scrape"
)

var (
	sitePhoneRe = regexp.MustCompile(`(?:\+48[ -]?|\b)(?:\d{3}[ -]?\d{3}[ -]?\d{3}|\d{2}[ -]?\d{3}[ -]?\d{2}[ -]?\d{2})\b`)
	siteEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// SiteContacts extracts the phones and emails printed on the company's own
// pages, deduplicated by value. NIPs are never read as phone numbers.
func SiteContacts(pages []scrape.Page) []model.Contact {
	var found []model.Contact
	for _, p := range pages {
		text := p.Text
		for _, id := range nip.ExtractAll(text, true) {
			text = stripNIP(text, id)
		}
		for _, m := range sitePhoneRe.FindAllString(text, -1) {
			if phone := nip.NormalizePhone(m); phone != "" {
				found = append(found, model.Contact{Kind: model.ContactPhone, Value: phone, Source: p.URL})
			}
		}
		for _, m := range siteEmailRe.FindAllString(text, -1) {
			found = append(found, model.Contact{Kind: model.ContactEmail, Value: nip.NormalizeEmail(m), Source: p.URL})
		}
	}
	return MergeContacts(found)
}

// stripNIP blanks every spelling of id (bare or dashed) in text.
func stripNIP(text, id string) string {
	text = strings.ReplaceAll(text, nip.Format(id), " ")
	return strings.ReplaceAll(text, id, " ")
}
