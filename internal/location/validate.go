package location

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// Cross-validation warnings.
const (
	WarnNoCommonPhone = "no common phone"
	WarnPhoneOnlyMaps = "phone only in Maps"
	WarnNoCommonEmail = "no common email"
)

// CrossValidate compares contacts published on the company site with
// contacts from the geo source. Disagreements become warnings and are
// never errors.
func CrossValidate(site, maps []model.Contact) model.Validation {
	sitePhones, mapsPhones := phoneSet(site), phoneSet(maps)
	siteEmails, mapsEmails := emailSet(site), emailSet(maps)

	var v model.Validation
	v.CommonPhones = intersect(sitePhones, mapsPhones)
	v.CommonEmails = intersect(siteEmails, mapsEmails)

	if len(sitePhones) > 0 && len(mapsPhones) > 0 && len(v.CommonPhones) == 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("%s: site has %d, Maps has %d",
			WarnNoCommonPhone, len(sitePhones), len(mapsPhones)))
	}
	if len(mapsPhones) > 0 && len(sitePhones) == 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("%s: %s",
			WarnPhoneOnlyMaps, strings.Join(keys(mapsPhones), ", ")))
	}
	if len(siteEmails) > 0 && len(mapsEmails) > 0 && len(v.CommonEmails) == 0 {
		v.Warnings = append(v.Warnings, WarnNoCommonEmail)
	}

	if !v.OK() {
		zap.L().Warn("location: contact discrepancies", zap.Strings("warnings", v.Warnings))
	}
	return v
}

// Contacts flattens the contacts of every location, deduplicated by value.
func Contacts(locs []model.Location) []model.Contact {
	lists := make([][]model.Contact, len(locs))
	for i, l := range locs {
		lists[i] = l.Contacts
	}
	return MergeContacts(lists...)
}

func phoneSet(cs []model.Contact) map[string]bool {
	out := make(map[string]bool)
	for _, c := range cs {
		if c.Kind == model.ContactPhone {
			if p := nip.Last9(c.Value); p != "" {
				out[p] = true
			}
		}
	}
	return out
}

func emailSet(cs []model.Contact) map[string]bool {
	out := make(map[string]bool)
	for _, c := range cs {
		if c.Kind == model.ContactEmail {
			if e := nip.NormalizeEmail(c.Value); e != "" {
				out[e] = true
			}
		}
	}
	return out
}

func intersect(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
