package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nip-resolver/internal/identity"
)

var matchTarget identity.Target

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the existing CRM contact for a person by tiered identity matching",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("match"); err != nil {
			return err
		}
		if matchTarget.Empty() {
			return eris.New("match: at least one of --email, --phone, --first, --last, --parent is required")
		}

		env, err := initResolver(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res := identity.NewMatcher(env.CRM).Match(ctx, matchTarget)

		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	f := matchCmd.Flags()
	f.StringVar(&matchTarget.Email, "email", "", "contact email")
	f.StringVar(&matchTarget.Phone, "phone", "", "contact phone")
	f.StringVar(&matchTarget.FirstName, "first", "", "first name")
	f.StringVar(&matchTarget.LastName, "last", "", "last name")
	f.StringVar(&matchTarget.ParentID, "parent", "", "parent account id")
	rootCmd.AddCommand(matchCmd)
}
