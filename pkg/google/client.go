package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask lists the place fields requested from Text Search.
var fieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.addressComponents",
	"places.location",
	"places.nationalPhoneNumber",
	"places.internationalPhoneNumber",
	"places.websiteUri",
	"places.rating",
	"places.userRatingCount",
	"places.regularOpeningHours.weekdayDescriptions",
	"nextPageToken",
}, ",")

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body of a Places Text Search call.
type TextSearchRequest struct {
	TextQuery      string `json:"textQuery"`
	LanguageCode   string `json:"languageCode,omitempty"`
	RegionCode     string `json:"regionCode,omitempty"`
	PageSize       int    `json:"pageSize,omitempty"`
	PageToken      string `json:"pageToken,omitempty"`
	IncludedType   string `json:"includedType,omitempty"`
	Strict         bool   `json:"strictTypeFiltering,omitempty"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a place returned by the API.
type Place struct {
	ID                       string             `json:"id"`
	DisplayName              DisplayName        `json:"displayName"`
	FormattedAddress         string             `json:"formattedAddress,omitempty"`
	AddressComponents        []AddressComponent `json:"addressComponents,omitempty"`
	Location                 *LatLng            `json:"location,omitempty"`
	NationalPhoneNumber      string             `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string             `json:"internationalPhoneNumber,omitempty"`
	WebsiteURI               string             `json:"websiteUri,omitempty"`
	Rating                   float64            `json:"rating"`
	UserRatingCount          int                `json:"userRatingCount"`
	RegularOpeningHours      *OpeningHours      `json:"regularOpeningHours,omitempty"`
}

// Component returns the long text of the first address component of the
// given type, or "".
func (p Place) Component(typ string) string {
	for _, c := range p.AddressComponents {
		for _, t := range c.Types {
			if t == typ {
				return c.LongText
			}
		}
	}
	return ""
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// AddressComponent is one structured part of a place's address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText,omitempty"`
	Types     []string `json:"types"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpeningHours holds human-readable weekly hours.
type OpeningHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, in TextSearchRequest) (*TextSearchResponse, error) {
	if in.LanguageCode == "" {
		in.LanguageCode = "pl"
	}
	if in.RegionCode == "" {
		in.RegionCode = "PL"
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("google: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	return &result, nil
}
