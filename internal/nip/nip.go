// Package nip validates and normalizes Polish tax identifiers (NIP) and the
// contact signals used to corroborate them.
package nip

import (
	"regexp"
)

// Length is the number of digits in a NIP.
const Length = 10

var weights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

var nonDigitRe = regexp.MustCompile(`\D`)

// Normalize strips everything but digits and returns the result only when
// exactly ten digits remain.
func Normalize(raw string) (string, bool) {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) != Length {
		return "", false
	}
	return digits, true
}

// ValidChecksum reports whether id is a ten-digit string whose weighted
// mod-11 checksum equals its last digit. A remainder of 10 is never valid.
func ValidChecksum(id string) bool {
	if len(id) != Length {
		return false
	}
	sum := 0
	for i := 0; i < Length; i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
		if i < len(weights) {
			sum += int(id[i]-'0') * weights[i]
		}
	}
	c := sum % 11
	if c == 10 {
		return false
	}
	return c == int(id[9]-'0')
}

// Valid normalizes raw and validates the checksum in one step.
func Valid(raw string) (string, bool) {
	id, ok := Normalize(raw)
	if !ok || !ValidChecksum(id) {
		return "", false
	}
	return id, true
}

// Format renders a ten-digit NIP as XXX-XXX-XX-XX. Other inputs are returned unchanged.
func Format(id string) string {
	if len(id) != Length {
		return id
	}
	return id[0:3] + "-" + id[3:6] + "-" + id[6:8] + "-" + id[8:10]
}

// Patterns are tried in order, most specific first. The bare dashed form is
// the riskiest and may catch unrelated numbers, so it comes late.
var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)NIP\s*:?\s*(\d{3}[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2})`),
	regexp.MustCompile(`(?i)NIP\s*:?\s*(\d{10})`),
	regexp.MustCompile(`(?i)numer\s+identyfikacji\s+podatkowej\s*:?\s*(\d{3}[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2})`),
	regexp.MustCompile(`(?i)podatnik\s+VAT\s+o\s+numerze\s*:?\s*(\d{10})`),
	regexp.MustCompile(`\b(\d{3}[-\s]\d{3}[-\s]\d{2}[-\s]\d{2})\b`),
	regexp.MustCompile(`(?i)\bNIP[-:\s]*(\d{10})\b`),
}

var bareDigitsRe = regexp.MustCompile(`\b(\d{10})\b`)

var separatorRe = regexp.MustCompile(`[-\s]`)

// Extract returns the first checksum-valid NIP found in text.
func Extract(text string) (string, bool) {
	all := ExtractAll(text, false)
	if len(all) == 0 {
		return "", false
	}
	return all[0], true
}

// ExtractAll returns every distinct checksum-valid NIP in text, in pattern
// priority order. With bare set, undecorated ten-digit runs are also accepted.
func ExtractAll(text string, bare bool) []string {
	if text == "" {
		return nil
	}
	patterns := extractPatterns
	if bare {
		patterns = append(patterns[:len(patterns):len(patterns)], bareDigitsRe)
	}

	seen := make(map[string]bool)
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			id := separatorRe.ReplaceAllString(m[1], "")
			if seen[id] || !ValidChecksum(id) {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
