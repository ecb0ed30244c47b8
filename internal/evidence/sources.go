package evidence

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/nip-resolver/internal/nip"
)

// SourceClass is the credibility class of a corroborating source domain.
type SourceClass string

const (
	ClassUnknown   SourceClass = "unknown"
	ClassBlacklist SourceClass = "blacklist"
	ClassGreylist  SourceClass = "greylist"
	ClassRegistry  SourceClass = "registry"
)

// SourceLists holds the domain allow/deny lists used to weigh where a NIP was seen.
type SourceLists struct {
	Blacklist []string `yaml:"blacklist"`
	Greylist  []string `yaml:"greylist"`
	Registry  []string `yaml:"registry"`

	index map[string]SourceClass
}

// DefaultSourceLists returns the built-in lists: marketplaces and social
// networks are blacklisted, business directories greylisted and official
// registers trusted.
func DefaultSourceLists() *SourceLists {
	l := &SourceLists{
		Blacklist: []string{
			"wyjatkowyprezent.pl", "groupon.pl", "allegro.pl", "olx.pl",
			"facebook.com", "instagram.com", "linkedin.com", "twitter.com", "x.com", "tiktok.com",
		},
		Greylist: []string{
			"znamifirme.pl", "panoramafirm.pl", "firmy.net", "pkt.pl", "yelp.pl",
		},
		Registry: []string{
			"aleo.com", "rejestr.io", "krs-online.com.pl", "ceidg.gov.pl",
			"gus.gov.pl", "biznes.gov.pl", "infoveriti.pl",
		},
	}
	l.build()
	return l
}

// LoadSourceLists reads lists from a YAML file with a top-level "sources"
// key. Lists present in the file replace the defaults; absent lists keep them.
func LoadSourceLists(path string) (*SourceLists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "evidence: read source lists %s", path)
	}

	var wrapper struct {
		Sources SourceLists `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "evidence: parse source lists")
	}

	l := DefaultSourceLists()
	if wrapper.Sources.Blacklist != nil {
		l.Blacklist = wrapper.Sources.Blacklist
	}
	if wrapper.Sources.Greylist != nil {
		l.Greylist = wrapper.Sources.Greylist
	}
	if wrapper.Sources.Registry != nil {
		l.Registry = wrapper.Sources.Registry
	}
	l.build()
	return l, nil
}

// build indexes the lists. Blacklist wins over registry, registry over greylist.
func (l *SourceLists) build() {
	l.index = make(map[string]SourceClass)
	for _, d := range l.Greylist {
		l.index[nip.NormalizeDomain(d)] = ClassGreylist
	}
	for _, d := range l.Registry {
		l.index[nip.NormalizeDomain(d)] = ClassRegistry
	}
	for _, d := range l.Blacklist {
		l.index[nip.NormalizeDomain(d)] = ClassBlacklist
	}
}

// Classify returns the class of domain. Subdomains inherit the class of
// their listed parent ("m.facebook.com" is blacklisted).
func (l *SourceLists) Classify(domain string) SourceClass {
	if l.index == nil {
		l.build()
	}
	d := nip.NormalizeDomain(domain)
	for d != "" {
		if class, ok := l.index[d]; ok {
			return class
		}
		_, rest, ok := strings.Cut(d, ".")
		if !ok || !strings.Contains(rest, ".") {
			break
		}
		d = rest
	}
	return ClassUnknown
}

var officialStopwords = map[string]bool{
	"sp": true, "zoo": true, "spółka": true, "z": true, "o": true,
	"sa": true, "sp.": true, "z.o.o.": true, "s.a.": true,
}

// LooksOfficial reports whether any word of companyName (at least three
// letters, legal-form words excluded) appears inside domain. This is a weak
// textual heuristic.
func LooksOfficial(domain, companyName string) bool {
	if companyName == "" {
		return false
	}
	d := strings.ToLower(domain)
	for _, w := range strings.Fields(strings.ToLower(companyName)) {
		if officialStopwords[w] || utf8.RuneCountInString(w) < 3 {
			continue
		}
		if strings.Contains(d, w) {
			return true
		}
	}
	return false
}
