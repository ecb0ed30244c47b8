// Package location merges physical places of business discovered from
// noisy geo sources and cross-checks their contacts against the company site.
package location

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/fuzzy"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// streetPrefixes are dropped from the front of a street name.
var streetPrefixes = map[string]bool{
	"ul": true, "ulica": true, "al": true, "aleja": true, "aleje": true,
	"pl": true, "plac": true, "os": true, "osiedle": true,
}

var digitRe = regexp.MustCompile(`\d`)

// StreetName reduces a street line to its name: prefixes such as "ul."
// and every token carrying a digit (building and apartment numbers) are
// removed and the rest is folded. A number that opens the name and is
// followed by a word stays, as in "3 maja".
func StreetName(street string) string {
	words := strings.Fields(fuzzy.Words(street))
	if len(words) > 0 && streetPrefixes[words[0]] {
		words = words[1:]
	}
	out := make([]string, 0, len(words))
	for i, w := range words {
		if digitRe.MatchString(w) {
			if i == 0 && len(words) > 1 && !digitRe.MatchString(words[1]) {
				out = append(out, w)
			}
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// Key is the dedup key of a location: street name without number plus
// city. When only a formatted address is known its first comma-separated
// part stands in for the street. ok is false when no street name can be
// derived; such locations are never merged.
func Key(a model.Address) (key string, ok bool) {
	line := a.Street
	if line == "" && a.Formatted != "" {
		line, _, _ = strings.Cut(a.Formatted, ",")
	}
	street := StreetName(line)
	if street == "" {
		return "", false
	}
	return street + "|" + fuzzy.Words(a.City), true
}

// better reports whether a should represent a group instead of b.
func better(a, b *model.Location) bool {
	if a.Reviews != b.Reviews {
		return a.Reviews > b.Reviews
	}
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	return len(a.Contacts) > len(b.Contacts)
}

// contactKey identifies a contact by value. Phones compare by national
// number and emails case-insensitively.
func contactKey(c model.Contact) string {
	if p := nip.Last9(c.Value); p != "" && c.Kind != model.ContactEmail && c.Kind != model.ContactWebsite {
		return p
	}
	if e := nip.NormalizeEmail(c.Value); e != "" {
		return e
	}
	if c.Kind == model.ContactWebsite {
		return nip.NormalizeDomain(c.Value)
	}
	return strings.ToLower(strings.TrimSpace(c.Value))
}

// MergeContacts unions contact lists by value, keeping first occurrences.
func MergeContacts(lists ...[]model.Contact) []model.Contact {
	seen := make(map[string]bool)
	var out []model.Contact
	for _, l := range lists {
		for _, c := range l {
			k := contactKey(c)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, c)
		}
	}
	return out
}

// Dedupe groups locations by Key and merges each group into its richest
// record, ranked by review count, rating and contact count. Every distinct
// contact of the group survives on the representative. Locations without
// an address are never merged. Output keeps first-seen group order; the
// input slice is not modified.
func Dedupe(locs []model.Location) []model.Location {
	type group struct {
		members []int
	}
	var order []*group
	byKey := make(map[string]*group)

	for i := range locs {
		key, ok := Key(locs[i].Address)
		if !ok {
			order = append(order, &group{members: []int{i}})
			continue
		}
		g, found := byKey[key]
		if !found {
			g = &group{}
			byKey[key] = g
			order = append(order, g)
		}
		g.members = append(g.members, i)
	}

	out := make([]model.Location, 0, len(order))
	for _, g := range order {
		if len(g.members) == 1 {
			out = append(out, locs[g.members[0]])
			continue
		}

		best := g.members[0]
		lists := make([][]model.Contact, 0, len(g.members))
		for _, i := range g.members {
			if better(&locs[i], &locs[best]) {
				best = i
			}
		}
		// Representative contacts go first so its labels win on conflicts.
		lists = append(lists, locs[best].Contacts)
		for _, i := range g.members {
			if i != best {
				lists = append(lists, locs[i].Contacts)
			}
		}

		merged := locs[best]
		merged.Contacts = MergeContacts(lists...)
		merged.Merged = len(g.members) - 1
		out = append(out, merged)

		zap.L().Debug("location: merged duplicates",
			zap.String("place_id", merged.PlaceID),
			zap.String("street", merged.Address.Street),
			zap.String("city", merged.Address.City),
			zap.Int("group", len(g.members)),
			zap.Int("reviews", merged.Reviews),
		)
	}
	return out
}
