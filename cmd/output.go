package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/nip-resolver/internal/store"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatTraceList writes one tab-aligned row per persisted trace.
func formatTraceList(w io.Writer, list []store.TraceSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tOUTCOME\tNIP\tCOST\tINPUT")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%s\n",
			t.ID, t.CreatedAt.Format("2006-01-02 15:04"), t.Outcome, t.NIP, t.CostUSD, clip(t.Raw, 50))
	}
	return tw.Flush()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
