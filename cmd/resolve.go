package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/router"
)

var (
	resolveSkipCRM    bool
	resolveSkipSearch bool
	resolveSave       bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <raw text>",
	Short: "Resolve one raw lead to a NIP and print its decision trace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		env, err := initResolver(ctx, cfg, resolveSave)
		if err != nil {
			return err
		}
		defer env.Close()

		raw := strings.Join(args, " ")
		trace := env.Router.Resolve(ctx, raw,
			router.SkipCRM(resolveSkipCRM),
			router.SkipSearch(resolveSkipSearch),
		)

		if resolveSave {
			if err := env.Store.SaveTrace(ctx, trace); err != nil {
				return eris.Wrap(err, "resolve: save trace")
			}
			zap.L().Info("resolve: trace saved", zap.String("trace_id", trace.ID.String()))
		}

		return printJSON(cmd.OutOrStdout(), trace)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveSkipCRM, "skip-crm", false, "skip the CRM lookup step")
	resolveCmd.Flags().BoolVar(&resolveSkipSearch, "skip-search", false, "skip the web search step")
	resolveCmd.Flags().BoolVar(&resolveSave, "save", false, "persist the trace to the configured store")
	rootCmd.AddCommand(resolveCmd)
}
