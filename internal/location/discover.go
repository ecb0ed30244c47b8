package location

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/pkg/google"
)

// Request describes a location discovery run.
type Request struct {
	// Names are searched independently, e.g. the registered and the brand name.
	Names []string
	City  string
	// Website, when set, keeps only places linking to the same domain,
	// unless none does.
	Website string
	// MaxPlaces caps results per name search. Zero means 5.
	MaxPlaces int
}

// Result is the deduplicated outcome of a discovery run.
type Result struct {
	Locations []model.Location `json:"locations"`
	Raw       int              `json:"raw"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// Discoverer finds places of business through Google Places.
type Discoverer struct {
	places google.Client
}

// NewDiscoverer creates a discoverer over a Places client.
func NewDiscoverer(places google.Client) *Discoverer {
	return &Discoverer{places: places}
}

// Discover searches every distinct name concurrently, unions the places by
// place id in name order, optionally filters by website domain and
// deduplicates by address. Failed searches become warnings; an error is
// returned only when every search fails.
func (d *Discoverer) Discover(ctx context.Context, req Request) (*Result, error) {
	names := distinct(req.Names)
	if len(names) == 0 {
		return nil, eris.New("location: no name to search")
	}
	size := req.MaxPlaces
	if size <= 0 {
		size = 5
	}

	found := make([][]google.Place, len(names))
	errs := make([]error, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			q := name
			if req.City != "" {
				q += " " + req.City
			}
			resp, err := d.places.TextSearch(gctx, google.TextSearchRequest{TextQuery: q, PageSize: size})
			if err != nil {
				errs[i] = err
				return nil
			}
			found[i] = resp.Places
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			zap.L().Warn("location: places search failed", zap.String("name", names[i]), zap.Error(err))
			res.Warnings = append(res.Warnings, "search failed for "+names[i]+": "+err.Error())
		}
	}
	if failed == len(names) {
		return nil, eris.Wrap(errs[0], "location: all places searches failed")
	}

	seen := make(map[string]bool)
	var places []google.Place
	for _, set := range found {
		for _, p := range set {
			if p.ID != "" && seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			places = append(places, p)
		}
	}
	places = filterByWebsite(places, req.Website)

	locs := make([]model.Location, len(places))
	for i, p := range places {
		locs[i] = FromPlace(p)
	}
	res.Raw = len(locs)
	res.Locations = Dedupe(locs)

	zap.L().Info("location: discovered",
		zap.Strings("names", names),
		zap.String("city", req.City),
		zap.Int("raw", res.Raw),
		zap.Int("unique", len(res.Locations)),
	)
	return res, nil
}

func filterByWebsite(places []google.Place, website string) []google.Place {
	domain := nip.NormalizeDomain(website)
	if domain == "" {
		return places
	}
	var kept []google.Place
	for _, p := range places {
		if p.WebsiteURI != "" && nip.NormalizeDomain(p.WebsiteURI) == domain {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return places
	}
	return kept
}

// FromPlace converts a Places result into a location.
func FromPlace(p google.Place) model.Location {
	loc := model.Location{
		PlaceID: p.ID,
		Name:    p.DisplayName.Text,
		Address: model.Address{
			Street:     p.Component("route"),
			Number:     p.Component("street_number"),
			PostalCode: p.Component("postal_code"),
			City:       firstNonEmpty(p.Component("locality"), p.Component("postal_town")),
			Formatted:  p.FormattedAddress,
		},
		Rating:  p.Rating,
		Reviews: p.UserRatingCount,
	}
	if p.Location != nil {
		loc.Coordinates = &model.Coordinates{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	if p.RegularOpeningHours != nil {
		loc.Hours = p.RegularOpeningHours.WeekdayDescriptions
	}
	phone := firstNonEmpty(p.InternationalPhoneNumber, p.NationalPhoneNumber)
	if n := nip.NormalizePhone(phone); n != "" {
		loc.Contacts = append(loc.Contacts, model.Contact{Kind: model.ContactPhone, Value: n, Source: "google_maps"})
	}
	if p.WebsiteURI != "" {
		loc.Contacts = append(loc.Contacts, model.Contact{Kind: model.ContactWebsite, Value: p.WebsiteURI, Source: "google_maps"})
	}
	return loc
}

// GeoJSON renders locations with coordinates as a FeatureCollection of
// points. Locations without coordinates are skipped.
func GeoJSON(locs []model.Location) ([]byte, error) {
	fc := geojson.FeatureCollection{}
	for _, l := range locs {
		if l.Coordinates == nil {
			continue
		}
		var g geom.T = l.Coordinates.Point()
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       l.PlaceID,
			Geometry: g,
			Properties: map[string]any{
				"name":     l.Name,
				"address":  l.Address.Formatted,
				"city":     l.Address.City,
				"rating":   l.Rating,
				"reviews":  l.Reviews,
				"contacts": len(l.Contacts),
			},
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "location: encode geojson")
	}
	return data, nil
}

func distinct(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		k := strings.ToLower(n)
		if n == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
