// Package crm finds known companies and contacts in the CRM.
package crm

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/identity"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/salesforce"
)

// Lookup finds accounts by contact keys.
type Lookup interface {
	// FindAccountID returns the id of the first account matching keys, or
	// an empty id when none matches.
	FindAccountID(ctx context.Context, keys query.CRMKeys) model.Outcome[string]
	// LookupByID returns the account and its parent, headquarters first.
	LookupByID(ctx context.Context, id string) model.Outcome[[]model.CRMAccount]
}

// Option configures a Client.
type Option func(*Client)

// WithFields overrides the org-specific account field names.
func WithFields(f salesforce.Fields) Option {
	return func(c *Client) { c.fields = f }
}

// WithGuard runs CRM queries under g.
func WithGuard(g *resilience.Guard) Option {
	return func(c *Client) { c.guard = g }
}

// Client implements Lookup and identity.Store over Salesforce. A nil
// Salesforce client answers every query with no results.
type Client struct {
	sf     salesforce.Client
	fields salesforce.Fields
	guard  *resilience.Guard
}

var (
	_ Lookup         = (*Client)(nil)
	_ identity.Store = (*Client)(nil)
)

// New creates a CRM client. sf may be nil when no credentials are configured.
func New(sf salesforce.Client, opts ...Option) *Client {
	c := &Client{
		sf:     sf,
		fields: salesforce.DefaultFields,
		guard:  resilience.NewGuard("salesforce", resilience.BreakerConfig{}, resilience.DefaultRetryPolicy()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Configured reports whether a Salesforce client is present.
func (c *Client) Configured() bool {
	return c.sf != nil
}

func guarded[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.Do(ctx, c.guard, op, fn)
}

// FindAccountID tries the website domain, then email domains, then phones.
func (c *Client) FindAccountID(ctx context.Context, keys query.CRMKeys) model.Outcome[string] {
	if c.sf == nil || keys.Empty() {
		return model.Ok("")
	}

	if keys.Domain != "" {
		accts, err := guarded(ctx, c, "sf accounts by website", func(ctx context.Context) ([]salesforce.Account, error) {
			return salesforce.FindAccountsByWebsite(ctx, c.sf, c.fields, keys.Domain)
		})
		if err != nil {
			return model.Unavailable[string]("crm: " + err.Error())
		}
		for _, a := range accts {
			if nip.SameDomain(a.Website, keys.Domain) {
				zap.L().Debug("crm: account by domain", zap.String("domain", keys.Domain), zap.String("id", a.ID))
				return model.Ok(a.ID)
			}
		}
	}

	for _, d := range keys.EmailDomains {
		contacts, err := guarded(ctx, c, "sf contacts by email domain", func(ctx context.Context) ([]salesforce.Contact, error) {
			return salesforce.FindContacts(ctx, c.sf, salesforce.ContactFilter{EmailDomain: d}, 10)
		})
		if err != nil {
			return model.Unavailable[string]("crm: " + err.Error())
		}
		if id := firstAccount(contacts); id != "" {
			zap.L().Debug("crm: account by email domain", zap.String("domain", d), zap.String("id", id))
			return model.Ok(id)
		}
	}

	for _, p := range keys.Phones {
		accts, err := guarded(ctx, c, "sf accounts by phone", func(ctx context.Context) ([]salesforce.Account, error) {
			return salesforce.FindAccountsByPhone(ctx, c.sf, c.fields, p)
		})
		if err != nil {
			return model.Unavailable[string]("crm: " + err.Error())
		}
		for _, a := range accts {
			if nip.Last9(a.Phone) == p {
				zap.L().Debug("crm: account by phone", zap.String("id", a.ID))
				return model.Ok(a.ID)
			}
		}
		contacts, err := guarded(ctx, c, "sf contacts by phone", func(ctx context.Context) ([]salesforce.Contact, error) {
			return salesforce.FindContacts(ctx, c.sf, salesforce.ContactFilter{Phone: p}, 10)
		})
		if err != nil {
			return model.Unavailable[string]("crm: " + err.Error())
		}
		if id := firstAccount(contacts); id != "" {
			zap.L().Debug("crm: account by contact phone", zap.String("id", id))
			return model.Ok(id)
		}
	}
	return model.Ok("")
}

func firstAccount(contacts []salesforce.Contact) string {
	for _, ct := range contacts {
		if ct.AccountID != "" {
			return ct.AccountID
		}
	}
	return ""
}

// LookupByID returns the account and, for a branch, its parent. Records
// are ordered headquarters first.
func (c *Client) LookupByID(ctx context.Context, id string) model.Outcome[[]model.CRMAccount] {
	if c.sf == nil || id == "" {
		return model.Ok[[]model.CRMAccount](nil)
	}

	acct, err := guarded(ctx, c, "sf account by id", func(ctx context.Context) (*salesforce.Account, error) {
		return salesforce.FindAccountByID(ctx, c.sf, c.fields, id)
	})
	if err != nil {
		return model.Unavailable[[]model.CRMAccount]("crm: " + err.Error())
	}
	if acct == nil {
		return model.Ok[[]model.CRMAccount](nil)
	}

	out := []model.CRMAccount{toModel(*acct)}
	if acct.ParentID != "" {
		parent, err := guarded(ctx, c, "sf parent account", func(ctx context.Context) (*salesforce.Account, error) {
			return salesforce.FindAccountByID(ctx, c.sf, c.fields, acct.ParentID)
		})
		if err != nil {
			zap.L().Warn("crm: parent lookup failed", zap.String("id", acct.ParentID), zap.Error(err))
		} else if parent != nil {
			out = append(out, toModel(*parent))
		}
	} else if acct.NIP == "" {
		out = append(out, c.branches(ctx, acct.ID)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsHeadquarters && !out[j].IsHeadquarters
	})
	return model.Ok(out)
}

// branches lists the child accounts of a headquarters that carries no NIP
// itself. A failed query only costs the fallback.
func (c *Client) branches(ctx context.Context, id string) []model.CRMAccount {
	children, err := guarded(ctx, c, "sf child accounts", func(ctx context.Context) ([]salesforce.Account, error) {
		return salesforce.FindChildAccounts(ctx, c.sf, c.fields, id)
	})
	if err != nil {
		zap.L().Warn("crm: child lookup failed", zap.String("id", id), zap.Error(err))
		return nil
	}
	out := make([]model.CRMAccount, 0, len(children))
	for _, ch := range children {
		out = append(out, toModel(ch))
	}
	return out
}

func toModel(a salesforce.Account) model.CRMAccount {
	hq := a.ParentID == "" && a.Type != "Branch"
	return model.CRMAccount{
		ID:             a.ID,
		Name:           a.Name,
		NIP:            a.NIP,
		Website:        a.Website,
		IsHeadquarters: hq,
		IsBranch:       !hq,
		ParentID:       a.ParentID,
	}
}

// PreferredNIP returns the tax id of the first headquarters record that
// carries one, falling back to any record with a tax id.
func PreferredNIP(accts []model.CRMAccount) (model.CRMAccount, bool) {
	for _, a := range accts {
		if a.IsHeadquarters && a.NIP != "" {
			return a, true
		}
	}
	for _, a := range accts {
		if a.NIP != "" {
			return a, true
		}
	}
	return model.CRMAccount{}, false
}
