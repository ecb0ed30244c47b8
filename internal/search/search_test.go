package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/jina"
	jinamocks "github.com/sells-group/nip-resolver/pkg/jina/mocks"
	"github.com/sells-group/nip-resolver/pkg/perplexity"
	pplxmocks "github.com/sells-group/nip-resolver/pkg/perplexity/mocks"
)

type fakeRegistry map[string]model.Outcome[model.RegistryRecord]

func (f fakeRegistry) Lookup(_ context.Context, id string) model.Outcome[model.RegistryRecord] {
	if out, ok := f[id]; ok {
		return out
	}
	return model.Ok(model.RegistryRecord{NIP: id, Found: true})
}

func noRetry() Option {
	return WithGuards(resilience.NewGuards(resilience.BreakerConfig{}, resilience.RetryPolicy{Attempts: 1}))
}

func results(rs ...jina.SearchResult) *jina.SearchResponse {
	return &jina.SearchResponse{Code: 200, Data: rs}
}

func TestFindIdentifier_PrefersRegistrySource(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	web.On("Search", mock.Anything, `"Aldent" "Wrocław" nip`).Return(results(
		jina.SearchResult{Title: "Aldent na Facebooku", URL: "https://facebook.com/aldent", Description: "NIP 5260250995"},
		jina.SearchResult{Title: "Aldent - katalog", URL: "https://panoramafirm.pl/aldent", Description: "NIP: 894-186-49-49"},
		jina.SearchResult{Title: "ALDENT SP. Z O.O.", URL: "https://rejestr.io/krs/1/aldent", Description: "NIP 8941864949, REGON 020000000"},
	), nil).Once()

	c := New(web, noRetry())
	out := c.FindIdentifier(context.Background(), Request{Name: "Aldent", City: "Wrocław"})

	require.True(t, out.OK, out.Reason)
	assert.Equal(t, "8941864949", out.Value.NIP)
	assert.Equal(t, ConfidenceRegistry, out.Value.Confidence)
	assert.Equal(t, "https://rejestr.io/krs/1/aldent", out.Value.SourceURL)
	assert.Equal(t, `"Aldent" "Wrocław" nip`, out.Value.Query)
}

func TestFindIdentifier_DomainHintBeatsUnknown(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	web.On("Search", mock.Anything, mock.Anything).Return(results(
		jina.SearchResult{URL: "https://blog.example.com/x", Description: "NIP 5260250995"},
		jina.SearchResult{URL: "https://www.aldent.pl/kontakt", Description: "NIP 8941864949"},
	), nil).Once()

	c := New(web, noRetry())
	out := c.FindIdentifier(context.Background(), Request{
		DomainHint: "aldent.pl",
		Queries:    []query.Query{{Text: "q1"}},
	})

	require.True(t, out.OK)
	assert.Equal(t, "8941864949", out.Value.NIP)
	assert.Equal(t, ConfidenceOwnSite, out.Value.Confidence)
}

func TestFindIdentifier_RegistryFiltersUnknownNIP(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	web.On("Search", mock.Anything, "q1").Return(results(
		jina.SearchResult{URL: "https://aleo.com/a", Description: "NIP 5260250995"},
	), nil).Once()
	web.On("Search", mock.Anything, "q2").Return(results(
		jina.SearchResult{URL: "https://aleo.com/b", Description: "NIP 8941864949"},
	), nil).Once()

	reg := fakeRegistry{"5260250995": model.Ok(model.RegistryRecord{NIP: "5260250995", Found: false})}
	c := New(web, noRetry(), WithRegistry(reg))
	out := c.FindIdentifier(context.Background(), Request{Queries: []query.Query{{Text: "q1"}, {Text: "q2"}}})

	require.True(t, out.OK)
	assert.Equal(t, "8941864949", out.Value.NIP)
	assert.Equal(t, "q2", out.Value.Query)
}

func TestFindIdentifier_NothingFound(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	web.On("Search", mock.Anything, mock.Anything).Return(results(
		jina.SearchResult{URL: "https://probody.pl", Description: "Studio treningu w Gdyni"},
	), nil)

	out := New(web, noRetry()).FindIdentifier(context.Background(), Request{Name: "ProBody", City: "Gdynia"})
	require.True(t, out.OK)
	assert.Empty(t, out.Value.NIP)
}

func TestFindIdentifier_AllQueriesFail(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	web.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("jina: search status 503"))

	out := New(web, noRetry()).FindIdentifier(context.Background(), Request{Name: "ProBody"})
	assert.False(t, out.OK)
	assert.Contains(t, out.Reason, "503")
}

func TestFindIdentifier_AnswerEngineFallback(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	web.On("Search", mock.Anything, mock.Anything).Return(results(), nil)

	answers := pplxmocks.NewMockClient(t)
	answers.On("Ask", mock.Anything, mock.MatchedBy(func(q perplexity.Question) bool {
		return strings.Contains(q.Prompt, `"Fabskin"`) && strings.Contains(q.Prompt, "Warszawa") &&
			len(q.Exclude) > 0
	})).Return(&perplexity.Answer{
		Text:      "5223210470",
		Citations: []string{"https://facebook.com/fabskin", "https://aleo.com/fabskin"},
	}, nil).Once()

	c := New(web, noRetry(), WithPerplexity(answers))
	out := c.FindIdentifier(context.Background(), Request{Name: "Fabskin", City: "Warszawa"})

	require.True(t, out.OK)
	assert.Equal(t, "5223210470", out.Value.NIP)
	assert.Equal(t, ConfidenceAnswer, out.Value.Confidence)
	assert.Equal(t, "https://aleo.com/fabskin", out.Value.SourceURL)
}

func TestFindIdentifier_AnswerEngineOnly(t *testing.T) {
	answers := pplxmocks.NewMockClient(t)
	answers.On("Ask", mock.Anything, mock.Anything).Return(&perplexity.Answer{Text: "BRAK"}, nil).Once()

	out := New(nil, noRetry(), WithPerplexity(answers)).FindIdentifier(context.Background(), Request{Name: "ProBody"})
	require.True(t, out.OK)
	assert.Empty(t, out.Value.NIP)
}

func TestFindIdentifier_Unconfigured(t *testing.T) {
	out := New(nil).FindIdentifier(context.Background(), Request{Name: "ProBody"})
	assert.False(t, out.OK)
	assert.Contains(t, out.Reason, "no provider")
}

func TestFindIdentifier_NoName(t *testing.T) {
	web := jinamocks.NewMockClient(t)
	out := New(web).FindIdentifier(context.Background(), Request{City: "Gdynia"})
	assert.False(t, out.OK)
}

func TestConfidence(t *testing.T) {
	c := New(nil)
	assert.Equal(t, ConfidenceRegistry, c.confidence("rejestr.io", ""))
	assert.Equal(t, ConfidenceGreylist, c.confidence("www.panoramafirm.pl", ""))
	assert.Equal(t, ConfidenceUnknown, c.confidence("blog.pl", ""))
	assert.Equal(t, ConfidenceOwnSite, c.confidence("www.aldent.pl", "https://aldent.pl"))
	assert.Zero(t, c.confidence("m.facebook.com", ""))
	assert.Zero(t, c.confidence("", ""))
}
