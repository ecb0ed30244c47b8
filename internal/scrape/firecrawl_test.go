package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/pkg/firecrawl"
)

type mockFirecrawl struct {
	mock.Mock
}

func (m *mockFirecrawl) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*firecrawl.ScrapeResponse)
	return resp, args.Error(1)
}

func TestFirecrawlFetcher_Fetch(t *testing.T) {
	client := &mockFirecrawl{}
	client.On("Scrape", mock.Anything, firecrawl.ScrapeRequest{
		URL:     "https://aldent.pl/",
		Formats: []string{"markdown", "links"},
	}).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			Markdown: "# **ALDENT** Sp. z o.o.\n\n[Kontakt](https://aldent.pl/kontakt)\n\n> NIP: 894-186-49-49",
			Links:    []string{"https://aldent.pl/kontakt", "https://aldent.pl/o-nas"},
			Metadata: firecrawl.Metadata{Title: "Aldent", SourceURL: "https://aldent.pl/"},
		},
	}, nil).Once()

	result, err := NewFirecrawlFetcher(client).Fetch(context.Background(), "https://aldent.pl/")
	require.NoError(t, err)

	assert.Equal(t, "firecrawl", result.Source)
	assert.Equal(t, "Aldent", result.Page.Title)
	assert.Equal(t, 200, result.Page.StatusCode)
	assert.Equal(t, "ALDENT Sp. z o.o. Kontakt NIP: 894-186-49-49", result.Page.Text)
	assert.Equal(t, []Link{{Href: "https://aldent.pl/kontakt"}, {Href: "https://aldent.pl/o-nas"}}, result.Page.Links)
	client.AssertExpectations(t)
}

func TestFirecrawlFetcher_UnsuccessfulIsFailure(t *testing.T) {
	client := &mockFirecrawl{}
	client.On("Scrape", mock.Anything, mock.Anything).
		Return(&firecrawl.ScrapeResponse{Success: false, Error: "blocked"}, nil).Once()

	_, err := NewFirecrawlFetcher(client).Fetch(context.Background(), "https://aldent.pl/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not successful")
}

func TestFirecrawlFetcher_BreakerOpensAfterThreeFailures(t *testing.T) {
	client := &mockFirecrawl{}
	client.On("Scrape", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Times(3)

	f := NewFirecrawlFetcher(client)
	for range 3 {
		assert.True(t, f.Supports("https://aldent.pl/"))
		_, err := f.Fetch(context.Background(), "https://aldent.pl/")
		require.Error(t, err)
	}
	assert.False(t, f.Supports("https://aldent.pl/"))
	client.AssertExpectations(t)
}

func TestMarkdownText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"## Dane firmy\n\n**NIP:** 5260250995", "Dane firmy NIP: 5260250995"},
		{"![logo](/img/logo.png) [Strona główna](/)", "logo Strona główna"},
		{"| REGON | 123456785 |", "REGON 123456785"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markdownText(tt.in), tt.in)
	}
}
