package router

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/parse"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/scrape"
	"github.com/sells-group/nip-resolver/internal/search"
)

// --- Parser Mock ---

type mockParser struct {
	mock.Mock
}

func (m *mockParser) Parse(ctx context.Context, raw string) model.Outcome[parse.Result] {
	args := m.Called(ctx, raw)
	return args.Get(0).(model.Outcome[parse.Result])
}

// --- Registry Mock ---

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Lookup(ctx context.Context, id string) model.Outcome[model.RegistryRecord] {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Outcome[model.RegistryRecord])
}

// --- CRM Mock ---

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) FindAccountID(ctx context.Context, keys query.CRMKeys) model.Outcome[string] {
	args := m.Called(ctx, keys)
	return args.Get(0).(model.Outcome[string])
}

func (m *mockCRM) LookupByID(ctx context.Context, id string) model.Outcome[[]model.CRMAccount] {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Outcome[[]model.CRMAccount])
}

// --- Scraper Mock ---

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) ScrapeForIdentifier(ctx context.Context, site string) model.Outcome[scrape.Hit] {
	args := m.Called(ctx, site)
	return args.Get(0).(model.Outcome[scrape.Hit])
}

// --- Search Mocks ---

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) FindIdentifier(ctx context.Context, req search.Request) model.Outcome[model.SearchHit] {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Outcome[model.SearchHit])
}

type mockWebsites struct {
	mock.Mock
}

func (m *mockWebsites) FindWebsite(ctx context.Context, queries []query.Query) model.Outcome[string] {
	args := m.Called(ctx, queries)
	return args.Get(0).(model.Outcome[string])
}

// mocks bundles one of each collaborator mock.
type mocks struct {
	parser   *mockParser
	registry *mockRegistry
	crm      *mockCRM
	scraper  *mockScraper
	search   *mockSearch
	websites *mockWebsites
}

func newMocks() *mocks {
	return &mocks{
		parser:   &mockParser{},
		registry: &mockRegistry{},
		crm:      &mockCRM{},
		scraper:  &mockScraper{},
		search:   &mockSearch{},
		websites: &mockWebsites{},
	}
}

func (m *mocks) deps() Deps {
	return Deps{
		Parser:   m.parser,
		Registry: m.registry,
		CRM:      m.crm,
		Scraper:  m.scraper,
		Search:   m.search,
		Websites: m.websites,
	}
}

func (m *mocks) lead(raw string, lead model.Lead) {
	m.parser.On("Parse", mock.Anything, raw).
		Return(model.Ok(parse.Result{Lead: lead, Method: parse.MethodLLM}))
}

func (m *mocks) registered(id, name, city string) {
	m.registry.On("Lookup", mock.Anything, id).
		Return(model.Ok(model.RegistryRecord{Found: true, NIP: id, Name: name, City: city}))
}
