package identity

import (
	"sort"
)

// Scored is a record with its match vector, tier and completeness.
type Scored struct {
	Record       Record  `json:"record"`
	Signals      Signals `json:"signals"`
	Tier         int     `json:"tier"`
	Completeness int     `json:"completeness"`
}

// Result is the outcome of an identity match.
type Result struct {
	Exists      bool     `json:"exists"`
	PrimaryID   string   `json:"primary_id,omitempty"`
	NeedsReview bool     `json:"needs_review"`
	BestTier    int      `json:"best_tier"`
	Candidates  []Scored `json:"candidates"`
	// Pool is the number of distinct records considered.
	Pool     int      `json:"pool"`
	Warnings []string `json:"warnings,omitempty"`
}

// Score computes the match vector, tier and completeness of every record.
func Score(t Target, records []Record) []Scored {
	out := make([]Scored, 0, len(records))
	for _, r := range records {
		s := Compare(t, r)
		out = append(out, Scored{
			Record:       r,
			Signals:      s,
			Tier:         s.Tier(),
			Completeness: Completeness(r),
		})
	}
	return out
}

// Select scores the pool, drops noise below TierMin and picks the
// candidate set. Records are ordered by tier, then completeness, then id,
// so the result never depends on the order of the pool.
//
// A single record on the top tier becomes the primary match. When several
// records tie on a top tier of TierExists or more, no primary is chosen,
// NeedsReview is set and the tied records plus the next tier are returned.
func Select(t Target, records []Record) Result {
	var kept []Scored
	for _, s := range Score(t, records) {
		if s.Tier >= TierMin {
			kept = append(kept, s)
		}
	}
	res := Result{Pool: len(records)}
	if len(kept) == 0 {
		return res
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Tier != b.Tier {
			return a.Tier > b.Tier
		}
		if a.Completeness != b.Completeness {
			return a.Completeness > b.Completeness
		}
		return a.Record.ID < b.Record.ID
	})

	top := kept[0].Tier
	res.BestTier = top
	res.Exists = top >= TierExists

	tied := 0
	for tied < len(kept) && kept[tied].Tier == top {
		tied++
	}

	switch {
	case tied == 1:
		res.PrimaryID = kept[0].Record.ID
		res.Candidates = kept[:1]
	case top >= TierExists:
		res.NeedsReview = true
		end := tied
		if end < len(kept) {
			next := kept[end].Tier
			for end < len(kept) && kept[end].Tier == next {
				end++
			}
		}
		res.Candidates = kept[:end]
	default:
		res.Candidates = kept[:tied]
	}
	return res
}
