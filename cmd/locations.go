package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/location"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/pkg/google"
)

var (
	locNames   []string
	locAlt     []string
	locCity    string
	locWebsite string
	locMax     int
	locGeoJSON bool
)

// locationsReport is the output of the locations command.
type locationsReport struct {
	*location.Result
	SiteContacts []model.Contact  `json:"site_contacts,omitempty"`
	Validation   model.Validation `json:"validation"`
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Discover a company's places of business and cross-check contacts with its website",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if err := cfg.Validate("locations"); err != nil {
			return err
		}

		var gopts []google.Option
		if cfg.Google.BaseURL != "" {
			gopts = append(gopts, google.WithBaseURL(cfg.Google.BaseURL))
		}
		d := location.NewDiscoverer(google.NewClient(cfg.Google.Key, gopts...))

		res, err := d.Discover(ctx, location.Request{
			Names:     append(append([]string(nil), locNames...), locAlt...),
			City:      locCity,
			Website:   locWebsite,
			MaxPlaces: locMax,
		})
		if err != nil {
			return err
		}

		if locGeoJSON {
			data, err := location.GeoJSON(res.Locations)
			if err != nil {
				return err
			}
			_, err = out.Write(append(data, '\n'))
			return err
		}

		report := locationsReport{Result: res}
		if locWebsite != "" {
			env, err := initResolver(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer env.Close()

			pages, err := env.Scraper.ReadSite(ctx, locWebsite)
			if err != nil {
				zap.L().Warn("locations: website unreadable, skipping cross-validation",
					zap.String("website", locWebsite), zap.Error(err))
			} else {
				report.SiteContacts = location.SiteContacts(pages)
				report.Validation = location.CrossValidate(report.SiteContacts, location.Contacts(res.Locations))
			}
		}

		return printJSON(out, report)
	},
}

func init() {
	f := locationsCmd.Flags()
	f.StringSliceVar(&locNames, "name", nil, "company name to search (repeatable)")
	f.StringSliceVar(&locAlt, "alt-name", nil, "alternative or brand name (repeatable)")
	f.StringVar(&locCity, "city", "", "city to search in")
	f.StringVar(&locWebsite, "website", "", "company website, filters places and enables contact cross-validation")
	f.IntVar(&locMax, "max", 5, "max places per name search")
	f.BoolVar(&locGeoJSON, "geojson", false, "print locations as a GeoJSON FeatureCollection")
	_ = locationsCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(locationsCmd)
}
