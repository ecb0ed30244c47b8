package identity

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nip-resolver/internal/nip"
)

// Store is a read-only contact store queried by independent, widened lookups.
type Store interface {
	ContactsByEmail(ctx context.Context, email string) ([]Record, error)
	ContactsByPhone(ctx context.Context, phone string) ([]Record, error)
	ContactsByName(ctx context.Context, first, last string) ([]Record, error)
	ContactsByParent(ctx context.Context, last, parentID string) ([]Record, error)
}

// Matcher gathers candidate records from a Store and selects the match.
type Matcher struct {
	store Store
}

// NewMatcher creates a matcher over store.
func NewMatcher(store Store) *Matcher {
	return &Matcher{store: store}
}

type lookup struct {
	name string
	run  func(ctx context.Context) ([]Record, error)
}

func (m *Matcher) lookups(t Target) []lookup {
	var ls []lookup
	if e := nip.NormalizeEmail(t.Email); e != "" {
		ls = append(ls, lookup{"email", func(ctx context.Context) ([]Record, error) {
			return m.store.ContactsByEmail(ctx, e)
		}})
	}
	if p := nip.Last9(t.Phone); p != "" {
		ls = append(ls, lookup{"phone", func(ctx context.Context) ([]Record, error) {
			return m.store.ContactsByPhone(ctx, p)
		}})
	}
	if t.FirstName != "" && t.LastName != "" {
		ls = append(ls, lookup{"name", func(ctx context.Context) ([]Record, error) {
			return m.store.ContactsByName(ctx, t.FirstName, t.LastName)
		}})
	}
	if t.LastName != "" && t.ParentID != "" {
		ls = append(ls, lookup{"parent", func(ctx context.Context) ([]Record, error) {
			return m.store.ContactsByParent(ctx, t.LastName, t.ParentID)
		}})
	}
	return ls
}

// Match runs every applicable lookup concurrently, unions the results by
// record id and selects the candidate set. A failing lookup is reported as
// a warning on the result and never fails the match.
func (m *Matcher) Match(ctx context.Context, t Target) Result {
	ls := m.lookups(t)
	if len(ls) == 0 {
		return Result{Warnings: []string{"no usable signals"}}
	}

	found := make([][]Record, len(ls))
	errs := make([]error, len(ls))

	g, gctx := errgroup.WithContext(ctx)
	for i, l := range ls {
		g.Go(func() error {
			recs, err := l.run(gctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			found[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var warnings []string
	for i, err := range errs {
		if err != nil {
			zap.L().Warn("identity: lookup failed",
				zap.String("lookup", ls[i].name),
				zap.Error(err),
			)
			warnings = append(warnings, fmt.Sprintf("%s lookup failed: %v", ls[i].name, err))
		}
	}

	res := Select(t, mergeByID(found))
	res.Warnings = warnings
	zap.L().Debug("identity: match",
		zap.Int("pool", res.Pool),
		zap.Int("best_tier", res.BestTier),
		zap.Bool("exists", res.Exists),
		zap.Bool("needs_review", res.NeedsReview),
	)
	return res
}

// mergeByID unions record sets, keeping the first copy of each id, and
// returns them sorted by id. Records without an id are dropped.
func mergeByID(sets [][]Record) []Record {
	seen := make(map[string]bool)
	var out []Record
	for _, set := range sets {
		for _, r := range set {
			if r.ID == "" || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
