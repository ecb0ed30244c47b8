package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.nationalPhoneNumber")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.addressComponents")

		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Aldent Wrocław", body.TextQuery)
		assert.Equal(t, "pl", body.LanguageCode)
		assert.Equal(t, "PL", body.RegionCode)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TextSearchResponse{
			Places: []Place{
				{
					ID:                  "ChIJ-aldent",
					DisplayName:         DisplayName{Text: "Aldent"},
					FormattedAddress:    "Kasprowicza 12, 51-137 Wrocław, Polska",
					NationalPhoneNumber: "71 123 45 67",
					Location:            &LatLng{Latitude: 51.14, Longitude: 17.05},
					AddressComponents: []AddressComponent{
						{LongText: "Kasprowicza", Types: []string{"route"}},
						{LongText: "12", Types: []string{"street_number"}},
						{LongText: "Wrocław", Types: []string{"locality", "political"}},
					},
					Rating:          4.8,
					UserRatingCount: 312,
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "Aldent Wrocław"})

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	p := resp.Places[0]
	assert.Equal(t, "Aldent", p.DisplayName.Text)
	assert.Equal(t, "Kasprowicza", p.Component("route"))
	assert.Equal(t, "Wrocław", p.Component("locality"))
	assert.Empty(t, p.Component("postal_code"))
	assert.InDelta(t, 4.8, p.Rating, 0.001)
	assert.Equal(t, 312, p.UserRatingCount)
}

func TestTextSearch_KeepsExplicitLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "en", body.LanguageCode)
		assert.Equal(t, "next", body.PageToken)
		_ = json.NewEncoder(w).Encode(TextSearchResponse{})
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "x", LanguageCode: "en", PageToken: "next"})
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestTextSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "test query"})

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
}

func TestTextSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(ctx, TextSearchRequest{TextQuery: "test"})
	assert.Error(t, err)
}
