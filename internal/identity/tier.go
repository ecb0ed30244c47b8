// Package identity decides whether a person already exists in an external
// contact store by combining exact signal matches into discrete tiers.
package identity

import (
	"strings"

	"github.com/sells-group/nip-resolver/internal/fuzzy"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// Tier bounds.
const (
	TierNone   = 0
	TierWeak   = 1
	TierMin    = 2 // records below this are noise
	TierExists = 3 // best tier at or above this means the person exists
	TierMax    = 4
)

// Target is what we already know about the person being looked up.
type Target struct {
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
}

// Empty reports whether the target carries no signal at all.
func (t Target) Empty() bool {
	return t.Email == "" && t.Phone == "" && t.FirstName == "" && t.LastName == "" && t.ParentID == ""
}

// Record is one raw contact from the external store.
type Record struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
}

// Signals is the match vector for one (target, record) pair.
type Signals struct {
	Email     bool `json:"email"`
	Phone     bool `json:"phone"`
	LastName  bool `json:"last_name"`
	FirstName bool `json:"first_name"`
	Parent    bool `json:"parent"`
	// FirstNameConflict is set when both sides carry a first name and they differ.
	FirstNameConflict bool `json:"first_name_conflict"`
}

// Any reports whether at least one positive flag is set.
func (s Signals) Any() bool {
	return s.Email || s.Phone || s.LastName || s.FirstName || s.Parent
}

// Compare computes each flag independently. Empty values never match.
func Compare(t Target, r Record) Signals {
	var s Signals
	if e := nip.NormalizeEmail(t.Email); e != "" {
		s.Email = e == nip.NormalizeEmail(r.Email)
	}
	if p := nip.Last9(t.Phone); p != "" {
		s.Phone = p == nip.Last9(r.Phone)
	}
	if ln := personName(t.LastName); ln != "" {
		s.LastName = ln == personName(r.LastName)
	}
	tf, rf := personName(t.FirstName), personName(r.FirstName)
	if tf != "" && rf != "" {
		s.FirstName = tf == rf
		s.FirstNameConflict = tf != rf
	}
	if t.ParentID != "" {
		s.Parent = strings.TrimSpace(t.ParentID) == strings.TrimSpace(r.ParentID)
	}
	return s
}

// personName folds diacritics and case so "Łukasz" equals "LUKASZ".
func personName(s string) string {
	return strings.Join(strings.Fields(fuzzy.Fold(s)), " ")
}

// Tier classifies a signal vector. A first-name conflict forces TierNone
// regardless of every other flag.
func (s Signals) Tier() int {
	if s.FirstNameConflict {
		return TierNone
	}
	e, p, l, f, par := s.Email, s.Phone, s.LastName, s.FirstName, s.Parent
	switch {
	case (e && p && l) || (p && l && par) || (e && l && par) || (f && l && (e || p)):
		return TierMax
	case (p && par) || (e && l) || (p && l) || (e && par):
		return 3
	case (l && par) || (f && l):
		return 2
	case s.Any():
		return TierWeak
	}
	return TierNone
}

// Completeness weights the fields a record carries. It only breaks ties
// between records of the same tier.
func Completeness(r Record) int {
	score := 0
	if strings.TrimSpace(r.FirstName) != "" {
		score++
	}
	if strings.TrimSpace(r.LastName) != "" {
		score++
	}
	if nip.NormalizeEmail(r.Email) != "" {
		score += 3
	}
	if nip.Last9(r.Phone) != "" {
		score += 3
	}
	if strings.TrimSpace(r.ParentID) != "" {
		score += 2
	}
	return score
}
