package main

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/store"
)

var (
	tracesLimit   int
	tracesOutcome string
	tracesNIP     string
	tracesID      string
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List persisted decision traces, or print one with --id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("traces"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if tracesID != "" {
			id, err := uuid.Parse(tracesID)
			if err != nil {
				return eris.Wrapf(err, "traces: invalid id %q", tracesID)
			}
			t, err := st.GetTrace(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		}

		list, err := st.ListTraces(ctx, store.TraceFilter{
			Outcome: model.TraceOutcome(tracesOutcome),
			NIP:     tracesNIP,
			Limit:   tracesLimit,
		})
		if err != nil {
			return err
		}
		return formatTraceList(cmd.OutOrStdout(), list)
	},
}

func init() {
	f := tracesCmd.Flags()
	f.IntVar(&tracesLimit, "limit", 20, "max traces to list")
	f.StringVar(&tracesOutcome, "outcome", "", "filter by outcome (resolved, suspect, not_found)")
	f.StringVar(&tracesNIP, "nip", "", "filter by resolved NIP")
	f.StringVar(&tracesID, "id", "", "print the full trace with this id")
	rootCmd.AddCommand(tracesCmd)
}
