package parse

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/nip-resolver/internal/fuzzy"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

var (
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	websiteRe = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?[a-z0-9][a-z0-9\-]*(?:\.[a-z0-9\-]+)*\.(?:com\.pl|pl|com|eu|net|org|info|biz|med\.pl)\b(?:/[^\s,;]*)?`)
	krsRe     = regexp.MustCompile(`(?i)\bKRS\s*:?\s*(\d{10})\b`)
	regonRe   = regexp.MustCompile(`(?i)\bREGON\s*:?\s*(\d{14}|\d{9})\b`)
	nipLikeRe = regexp.MustCompile(`(?i)(\bNIP[-:\s]*)?\b(\d{3}[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2}|\d{3}[-\s]?\d{2}[-\s]?\d{2}[-\s]?\d{3})\b`)
	phoneRe   = regexp.MustCompile(`(?:\+48|0048)?[\s\-]?(?:\(?\d{2}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}|\d{3}[\s\-]?\d{3}[\s\-]?\d{3})\b`)
	phoneTag  = regexp.MustCompile(`(?i)\b(?:telefon|tel|kom|mob)\b\.?:?`)
	postalRe  = regexp.MustCompile(`\b\d{2}-\d{3}\b`)
	streetRe  = regexp.MustCompile(`(?i)\b(ul|al|pl|os)\.\s*((?:\d{1,2}\s+)?[\p{L}\-]+(?:\s+\d+[a-z]?(?:/\d+[a-z]?)?)?)`)
	noiseRe   = regexp.MustCompile(`(?i)^(?:nip|regon|krs|tel|email|e-mail|mail|www|adres|firma|ul|-|,|;|:)$`)
	trimChars = ` ,;:|-()"'`
)

// keywordStems are industry words kept as keywords rather than name parts.
var keywordStems = []string{
	"stomatolog", "dentyst", "ortodont", "implant", "klinik", "gabinet", "przychodni",
	"medycyn", "szpital", "apteka", "kosmetolog", "kosmetyk", "salon", "fizjoterap",
	"rehabilitac", "weteryn", "dermatolog", "laboratori", "diagnostyk", "optyk",
	"psycholog", "ginekolog", "pediatr", "estetyczn",
}

// Regex is the deterministic fallback parser.
type Regex struct{}

// NewRegex creates the regex parser.
func NewRegex() *Regex {
	return &Regex{}
}

// Parse implements Parser. It always succeeds.
func (p *Regex) Parse(_ context.Context, raw string) model.Outcome[Result] {
	return model.Ok(Result{Lead: ParseText(raw), Method: MethodRegex})
}

// ParseText extracts what it can from raw. Each recognized span is removed
// before the next extractor runs; the leftover words become the name.
func ParseText(raw string) model.Lead {
	lead := model.Lead{Raw: raw}
	rest := " " + strings.TrimSpace(raw) + " "

	if m := emailRe.FindString(rest); m != "" {
		lead.Email = strings.ToLower(m)
		rest = strings.Replace(rest, m, " ", 1)
	}
	if m := websiteRe.FindString(rest); m != "" {
		lead.Website = strings.ToLower(strings.TrimRight(m, "/."))
		rest = strings.Replace(rest, m, " ", 1)
	}
	if m := krsRe.FindStringSubmatch(rest); m != nil {
		lead.KRS = m[1]
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if m := regonRe.FindStringSubmatch(rest); m != nil {
		lead.REGON = m[1]
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if id, span := findNIP(rest); id != "" {
		lead.NIP = id
		rest = strings.Replace(rest, span, " ", 1)
	}
	if m := phoneRe.FindString(rest); m != "" && nip.Last9(m) != "" {
		lead.Phone = nip.NormalizePhone(m)
		rest = strings.Replace(rest, m, " ", 1)
	}
	rest = phoneTag.ReplaceAllString(rest, " ")
	if m := streetRe.FindStringSubmatch(rest); m != nil {
		lead.Street = strings.ToLower(m[1]) + ". " + strings.TrimSpace(m[2])
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	rest = postalRe.ReplaceAllString(rest, " ")

	tokens := strings.Fields(strings.NewReplacer(",", " ", ";", " ", "|", " ").Replace(rest))
	if city, from, to, ok := findCity(tokens); ok {
		lead.City = city
		tokens = append(tokens[:from:from], tokens[to:]...)
	}

	var name []string
	for _, tok := range tokens {
		tok = strings.Trim(tok, trimChars)
		if tok == "" || noiseRe.MatchString(tok) {
			continue
		}
		if isKeyword(tok) {
			lead.Keywords = append(lead.Keywords, strings.ToLower(tok))
			continue
		}
		name = append(name, tok)
	}
	if len(name) > 0 {
		lead.Name = strings.Join(name, " ")
		if short := shortName(lead.Name); short != "" && short != lead.Name {
			lead.ShortName = short
		}
	}

	lead.Strongest = Strongest(&lead)
	lead.Confidence = confidence(&lead)
	return lead
}

// findNIP prefers a checksum-valid number. Failing that, an explicitly
// labelled number is kept as-is so the checksum gate can reject it.
func findNIP(text string) (string, string) {
	var labelled, labelledSpan string
	for _, m := range nipLikeRe.FindAllStringSubmatch(text, -1) {
		id := digits(m[2])
		if nip.ValidChecksum(id) {
			return id, m[0]
		}
		if m[1] != "" && labelled == "" {
			labelled, labelledSpan = id, m[0]
		}
	}
	return labelled, labelledSpan
}

func isKeyword(tok string) bool {
	f := fuzzy.Words(tok)
	for _, stem := range keywordStems {
		if strings.HasPrefix(f, fuzzy.Words(stem)) {
			return true
		}
	}
	return false
}

// shortName drops a trailing legal form: "Aldent Sp. z o.o." -> "Aldent".
func shortName(name string) string {
	words := strings.Fields(name)
	for i := 1; i < len(words); i++ {
		tail := strings.Join(words[i:], " ")
		if fuzzy.CompanyName(tail) == "" {
			return strings.Join(words[:i], " ")
		}
	}
	return ""
}

// confidence is a coarse self-assessment: how many independent signals
// were extracted.
func confidence(l *model.Lead) float64 {
	score := 0.0
	if l.NIP != "" && nip.ValidChecksum(l.NIP) {
		score += 0.5
	}
	if l.Website != "" || l.Email != "" {
		score += 0.2
	}
	if l.Phone != "" {
		score += 0.1
	}
	if l.HasName() {
		score += 0.15
	}
	if l.City != "" {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}
