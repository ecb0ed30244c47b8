package location

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/pkg/google"
	"github.com/sells-group/nip-resolver/pkg/google/mocks"
)

func place(id, route, number string, reviews int, phone, site string) google.Place {
	return google.Place{
		ID:          id,
		DisplayName: google.DisplayName{Text: "Aldent"},
		AddressComponents: []google.AddressComponent{
			{LongText: route, Types: []string{"route"}},
			{LongText: number, Types: []string{"street_number"}},
			{LongText: "Wrocław", Types: []string{"locality"}},
		},
		Location:            &google.LatLng{Latitude: 51.1, Longitude: 17.0},
		NationalPhoneNumber: phone,
		WebsiteURI:          site,
		UserRatingCount:     reviews,
	}
}

func byQuery(q string) any {
	return mock.MatchedBy(func(r google.TextSearchRequest) bool { return r.TextQuery == q })
}

func TestDiscover_UnionsNamesAndDedupes(t *testing.T) {
	places := mocks.NewMockClient(t)
	places.On("TextSearch", mock.Anything, byQuery("ALDENT SP Z O O Wrocław")).Return(&google.TextSearchResponse{
		Places: []google.Place{
			place("p1", "Kasprowicza", "12", 300, "71 123 45 67", "https://aldent.pl"),
			place("p2", "Legnicka", "5", 20, "71 765 43 21", "https://aldent.pl/legnicka"),
		},
	}, nil)
	places.On("TextSearch", mock.Anything, byQuery("Aldent Wrocław")).Return(&google.TextSearchResponse{
		Places: []google.Place{
			place("p1", "Kasprowicza", "12", 300, "71 123 45 67", "https://aldent.pl"),
			place("p3", "Kasprowicza", "12", 2, "600 100 200", "https://aldent.pl"),
		},
	}, nil)

	res, err := NewDiscoverer(places).Discover(context.Background(), Request{
		Names: []string{"ALDENT SP Z O O", "Aldent", "aldent"},
		City:  "Wrocław",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Raw)
	require.Len(t, res.Locations, 2)
	assert.Equal(t, "p1", res.Locations[0].PlaceID)
	assert.Equal(t, 1, res.Locations[0].Merged)
	assert.ElementsMatch(t, []string{"+48711234567", "+48600100200"}, res.Locations[0].ContactValues("phone"))
	assert.Empty(t, res.Warnings)
}

func TestDiscover_WebsiteFilter(t *testing.T) {
	places := mocks.NewMockClient(t)
	places.On("TextSearch", mock.Anything, mock.Anything).Return(&google.TextSearchResponse{
		Places: []google.Place{
			place("p1", "Kasprowicza", "12", 300, "", "https://other.pl"),
			place("p2", "Legnicka", "5", 20, "", "https://www.aldent.pl/"),
		},
	}, nil)

	res, err := NewDiscoverer(places).Discover(context.Background(), Request{Names: []string{"Aldent"}, Website: "aldent.pl"})
	require.NoError(t, err)
	require.Len(t, res.Locations, 1)
	assert.Equal(t, "p2", res.Locations[0].PlaceID)
}

func TestDiscover_PartialFailureIsWarning(t *testing.T) {
	places := mocks.NewMockClient(t)
	places.On("TextSearch", mock.Anything, byQuery("A")).Return(nil, errors.New("quota"))
	places.On("TextSearch", mock.Anything, byQuery("B")).Return(&google.TextSearchResponse{
		Places: []google.Place{place("p1", "Rynek", "1", 1, "", "")},
	}, nil)

	res, err := NewDiscoverer(places).Discover(context.Background(), Request{Names: []string{"A", "B"}})
	require.NoError(t, err)
	assert.Len(t, res.Locations, 1)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "quota")
}

func TestDiscover_AllFail(t *testing.T) {
	places := mocks.NewMockClient(t)
	places.On("TextSearch", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	_, err := NewDiscoverer(places).Discover(context.Background(), Request{Names: []string{"A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all places searches failed")
}

func TestDiscover_NoNames(t *testing.T) {
	_, err := NewDiscoverer(nil).Discover(context.Background(), Request{Names: []string{" "}})
	require.Error(t, err)
}

func TestGeoJSON(t *testing.T) {
	locs := []google.Place{place("p1", "Kasprowicza", "12", 3, "", "")}
	data, err := GeoJSON([]model.Location{FromPlace(locs[0]), {PlaceID: "no-coords"}})
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, "p1", doc.Features[0].ID)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	assert.InDeltaSlice(t, []float64{17.0, 51.1}, doc.Features[0].Geometry.Coordinates, 1e-9)
}
