// Package batch resolves a spreadsheet column of raw leads with bounded
// concurrency and writes one result row per input row.
package batch

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
)

// ResolveFunc resolves one raw lead. It never fails; see router.Router.
type ResolveFunc func(ctx context.Context, raw string) *model.Trace

// TraceSaver persists traces.
type TraceSaver interface {
	SaveTrace(ctx context.Context, t *model.Trace) error
}

// Result is the outcome for one row. Trace is nil for blank rows.
type Result struct {
	Row   int
	Raw   string
	Trace *model.Trace
}

// Columns renders the result cells in ResultColumns order.
func (r Result) Columns() []string {
	t := r.Trace
	if t == nil {
		return make([]string, len(ResultColumns))
	}
	formatted := ""
	if t.NIP != "" {
		formatted = nip.Format(t.NIP)
	}
	return []string{
		t.NIP,
		formatted,
		string(t.Decision),
		t.Reason,
		t.Website,
		strconv.FormatFloat(t.CostUSD, 'f', 4, 64),
		t.ID.String(),
	}
}

// Options tunes Process.
type Options struct {
	Concurrency int
	Limit       int        // max rows to resolve, 0 for all
	Saver       TraceSaver // optional
}

// Summary counts outcomes across a batch.
type Summary struct {
	Resolved int64   `json:"resolved"`
	Suspect  int64   `json:"suspect"`
	NotFound int64   `json:"not_found"`
	Skipped  int64   `json:"skipped"`
	CostUSD  float64 `json:"cost_usd"`
}

// Process resolves rows concurrently. Results are index-aligned with rows;
// a cancelled context leaves the remaining results without a trace.
func Process(ctx context.Context, rows []Row, resolve ResolveFunc, opts Options) ([]Result, Summary, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Result, len(rows))
	for i, r := range rows {
		results[i] = Result{Row: r.Index, Raw: r.Raw}
	}

	zap.L().Info("batch: processing",
		zap.Int("rows", len(rows)),
		zap.Int("concurrency", concurrency),
	)

	var resolved, suspect, notFound, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, r := range rows {
		if r.Raw == "" || (opts.Limit > 0 && i >= opts.Limit) {
			skipped.Add(1)
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t := resolve(gctx, r.Raw)
			results[i].Trace = t

			switch t.Outcome {
			case model.OutcomeResolved:
				resolved.Add(1)
			case model.OutcomeSuspect:
				suspect.Add(1)
			default:
				notFound.Add(1)
			}

			if opts.Saver != nil {
				if err := opts.Saver.SaveTrace(gctx, t); err != nil {
					zap.L().Warn("batch: save trace failed",
						zap.Int("row", r.Index),
						zap.String("trace_id", t.ID.String()),
						zap.Error(err),
					)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, Summary{}, eris.Wrap(err, "batch: process")
	}

	sum := Summary{
		Resolved: resolved.Load(),
		Suspect:  suspect.Load(),
		NotFound: notFound.Load(),
		Skipped:  skipped.Load(),
	}
	for _, r := range results {
		if r.Trace != nil {
			sum.CostUSD += r.Trace.CostUSD
		}
	}
	if err := ctx.Err(); err != nil {
		return results, sum, eris.Wrap(err, "batch: cancelled")
	}

	zap.L().Info("batch: complete",
		zap.Int64("resolved", sum.Resolved),
		zap.Int64("suspect", sum.Suspect),
		zap.Int64("not_found", sum.NotFound),
		zap.Int64("skipped", sum.Skipped),
		zap.Float64("cost_usd", sum.CostUSD),
	)
	return results, sum, nil
}
