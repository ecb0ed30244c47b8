package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// folder is built per call: transform chains carry state and are not safe
// for concurrent use.
func folder() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			switch r {
			case 'ł':
				return 'l'
			case 'Ł':
				return 'L'
			}
			return r
		}),
		norm.NFC,
	)
}

// Fold lowercases s and strips Polish diacritics ("Łódź" -> "lodz").
func Fold(s string) string {
	out, _, err := transform.String(folder(), s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Legal forms as token sequences, after folding and punctuation removal.
// Longer forms come first so "spolka z ograniczona odpowiedzialnoscia" wins
// over "spolka".
var legalForms = []string{
	"spolka z ograniczona odpowiedzialnoscia",
	"spolka komandytowo akcyjna",
	"spolka komandytowa",
	"spolka akcyjna",
	"spolka jawna",
	"spolka cywilna",
	"spolka partnerska",
	"przedsiebiorstwo prywatne handel uslugi",
	"przedsiebiorstwo handel uslugi",
	"sp z o o",
	"sp z oo",
	"sp zoo",
	"s k a",
	"sp k",
	"sp j",
	"sp p",
	"s a",
	"s c",
	"ppuh",
	"phu",
	"ltd",
	"limited",
	"inc",
	"llc",
	"corp",
}

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Words folds s, turns punctuation into spaces and collapses whitespace.
func Words(s string) string {
	s = punctRe.ReplaceAllString(Fold(s), " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// CompanyName reduces a registered company name to its distinguishing
// words: folded, punctuation-free and without legal-form suffixes.
// "ALDENT Sp. z o.o." becomes "aldent".
func CompanyName(name string) string {
	s := " " + Words(name) + " "
	for _, form := range legalForms {
		s = strings.ReplaceAll(s, " "+form+" ", " ")
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
