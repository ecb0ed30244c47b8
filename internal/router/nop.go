package router

import (
	"context"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/scrape"
	"github.com/sells-group/nip-resolver/internal/search"
)

type nopRegistry struct{}

func (nopRegistry) Lookup(context.Context, string) model.Outcome[model.RegistryRecord] {
	return model.Unavailable[model.RegistryRecord]("registry not configured")
}

type nopCRM struct{}

func (nopCRM) FindAccountID(context.Context, query.CRMKeys) model.Outcome[string] {
	return model.Unavailable[string]("crm not configured")
}

func (nopCRM) LookupByID(context.Context, string) model.Outcome[[]model.CRMAccount] {
	return model.Unavailable[[]model.CRMAccount]("crm not configured")
}

type nopScraper struct{}

func (nopScraper) ScrapeForIdentifier(context.Context, string) model.Outcome[scrape.Hit] {
	return model.Unavailable[scrape.Hit]("scraper not configured")
}

type nopSearch struct{}

func (nopSearch) FindIdentifier(context.Context, search.Request) model.Outcome[model.SearchHit] {
	return model.Unavailable[model.SearchHit]("search not configured")
}

type nopWebsites struct{}

func (nopWebsites) FindWebsite(context.Context, []query.Query) model.Outcome[string] {
	return model.Unavailable[string]("website search not configured")
}
