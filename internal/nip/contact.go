package nip

import (
	"regexp"
	"strings"
)

// NationalLength is the length of a Polish national significant number.
const NationalLength = 9

// Last9 strips non-digits and returns the trailing nine digits, so that
// "+48 601-234-567", "0048601234567" and "601 234 567" compare equal.
// Inputs with fewer than nine digits yield "".
func Last9(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) < NationalLength {
		return ""
	}
	return digits[len(digits)-NationalLength:]
}

// NormalizePhone renders a phone number as +48XXXXXXXXX. Returns "" when
// fewer than nine digits are present.
func NormalizePhone(phone string) string {
	n := Last9(phone)
	if n == "" {
		return ""
	}
	return "+48" + n
}

var schemeRe = regexp.MustCompile(`^https?://`)

// DomainFromURL lowercases u, strips the scheme, every "www." and the path.
func DomainFromURL(u string) string {
	d := strings.ToLower(strings.TrimSpace(u))
	d = schemeRe.ReplaceAllString(d, "")
	d = strings.ReplaceAll(d, "www.", "")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// NormalizeDomain is DomainFromURL plus removal of a port and trailing dot.
func NormalizeDomain(u string) string {
	d := DomainFromURL(u)
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// SameDomain compares two URLs or hosts after normalization.
func SameDomain(a, b string) bool {
	da, db := NormalizeDomain(a), NormalizeDomain(b)
	return da != "" && da == db
}

// NormalizeEmail trims and lowercases an email address. Strings without a
// single "@" separating non-empty parts yield "".
func NormalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(e, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return e
}

// EmailDomain returns the lowercased domain part of an email address.
func EmailDomain(email string) string {
	e := NormalizeEmail(email)
	if e == "" {
		return ""
	}
	_, domain, _ := strings.Cut(e, "@")
	return domain
}

var publicEmailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"wp.pl":          true,
	"o2.pl":          true,
	"onet.pl":        true,
	"onet.eu":        true,
	"op.pl":          true,
	"interia.pl":     true,
	"interia.eu":     true,
	"poczta.fm":      true,
	"tlen.pl":        true,
	"gazeta.pl":      true,
	"vp.pl":          true,
	"yahoo.com":      true,
	"outlook.com":    true,
	"hotmail.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"proton.me":      true,
	"protonmail.com": true,
}

// IsPublicEmailDomain reports whether domain belongs to a free mailbox
// provider and therefore says nothing about the company.
func IsPublicEmailDomain(domain string) bool {
	return publicEmailDomains[strings.ToLower(strings.TrimSpace(domain))]
}
