// Package fuzzy scores similarity between free-text company names.
package fuzzy

import (
	"strings"
	"unicode/utf8"
)

// Thresholds used by callers.
const (
	High   = 0.8
	Medium = 0.5
)

// Match scores two names in [0, 1]. Both sides are lowercased and trimmed;
// equal strings score 1.0, containment scores 0.7 + 0.3*shorter/longer
// (lengths in runes) and anything else scores the Jaccard index over the
// whitespace-separated word sets. Empty input scores 0.
func Match(a, b string) float64 {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
		shorter, longer := min(la, lb), max(la, lb)
		return 0.7 + 0.3*float64(shorter)/float64(longer)
	}

	wa, wb := words(na), words(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if wb[w] {
			common++
		}
	}
	union := len(wa) + len(wb) - common
	return float64(common) / float64(union)
}

func words(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
