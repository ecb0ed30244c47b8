package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Fields names the org-specific account fields.
type Fields struct {
	NIP     string
	Website string
}

// DefaultFields matches a stock org with a NIP__c custom field.
var DefaultFields = Fields{NIP: "NIP__c", Website: "Website"}

func (f Fields) withDefaults() Fields {
	if f.NIP == "" {
		f.NIP = DefaultFields.NIP
	}
	if f.Website == "" {
		f.Website = DefaultFields.Website
	}
	return f
}

// Account represents a Salesforce Account record.
type Account struct {
	ID       string
	Name     string
	Website  string
	Phone    string
	NIP      string
	ParentID string
	Type     string
}

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	MobilePhone string
	AccountID   string
}

type record map[string]any

func (r record) str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func (f Fields) accountColumns() string {
	return strings.Join([]string{"Id", "Name", f.Website, "Phone", f.NIP, "ParentId", "Type"}, ", ")
}

func (f Fields) account(r record) Account {
	return Account{
		ID:       r.str("Id"),
		Name:     r.str("Name"),
		Website:  r.str(f.Website),
		Phone:    r.str("Phone"),
		NIP:      r.str(f.NIP),
		ParentID: r.str("ParentId"),
		Type:     r.str("Type"),
	}
}

const contactColumns = "Id, FirstName, LastName, Email, Phone, MobilePhone, AccountId"

func contact(r record) Contact {
	return Contact{
		ID:          r.str("Id"),
		FirstName:   r.str("FirstName"),
		LastName:    r.str("LastName"),
		Email:       r.str("Email"),
		Phone:       r.str("Phone"),
		MobilePhone: r.str("MobilePhone"),
		AccountID:   r.str("AccountId"),
	}
}

func queryAccounts(ctx context.Context, c Client, f Fields, where string, limit int) ([]Account, error) {
	f = f.withDefaults()
	soql := fmt.Sprintf("SELECT %s FROM Account WHERE %s LIMIT %d", f.accountColumns(), where, limit)
	var rows []map[string]any
	if err := c.Query(ctx, soql, &rows); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, f.account(r))
	}
	return out, nil
}

// FindAccountsByWebsite returns accounts whose website contains domain.
func FindAccountsByWebsite(ctx context.Context, c Client, f Fields, domain string) ([]Account, error) {
	f = f.withDefaults()
	accts, err := queryAccounts(ctx, c, f, fmt.Sprintf("%s LIKE '%%%s%%'", f.Website, escapeLike(domain)), 10)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find accounts by website %s", domain))
	}
	return accts, nil
}

// FindAccountsByPhone returns accounts whose phone ends with the national
// number, written either contiguous or in 3-3-3 groups.
func FindAccountsByPhone(ctx context.Context, c Client, f Fields, national string) ([]Account, error) {
	accts, err := queryAccounts(ctx, c, f, PhoneClause("Phone", national), 10)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find accounts by phone %s", national))
	}
	return accts, nil
}

// FindAccountByID queries Salesforce for an Account by its ID.
// Returns nil if no account is found.
func FindAccountByID(ctx context.Context, c Client, f Fields, id string) (*Account, error) {
	accts, err := queryAccounts(ctx, c, f, fmt.Sprintf("Id = '%s'", escapeSoql(id)), 1)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find account by id %s", id))
	}
	if len(accts) == 0 {
		return nil, nil
	}
	return &accts[0], nil
}

// FindChildAccounts returns the accounts whose parent is id.
func FindChildAccounts(ctx context.Context, c Client, f Fields, id string) ([]Account, error) {
	accts, err := queryAccounts(ctx, c, f, fmt.Sprintf("ParentId = '%s'", escapeSoql(id)), 50)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find child accounts %s", id))
	}
	return accts, nil
}

// ContactFilter selects contacts. Set fields are ANDed.
type ContactFilter struct {
	Email     string
	Phone     string // national number
	FirstName string
	LastName  string
	AccountID string
	// EmailDomain matches contacts whose email is at this domain.
	EmailDomain string
}

func (cf ContactFilter) where() string {
	var parts []string
	if cf.Email != "" {
		parts = append(parts, fmt.Sprintf("Email = '%s'", escapeSoql(cf.Email)))
	}
	if cf.EmailDomain != "" {
		parts = append(parts, fmt.Sprintf("Email LIKE '%%@%s'", escapeLike(cf.EmailDomain)))
	}
	if cf.Phone != "" {
		parts = append(parts, "("+PhoneClause("Phone", cf.Phone)+" OR "+PhoneClause("MobilePhone", cf.Phone)+")")
	}
	if cf.FirstName != "" {
		parts = append(parts, fmt.Sprintf("FirstName = '%s'", escapeSoql(cf.FirstName)))
	}
	if cf.LastName != "" {
		parts = append(parts, fmt.Sprintf("LastName = '%s'", escapeSoql(cf.LastName)))
	}
	if cf.AccountID != "" {
		parts = append(parts, fmt.Sprintf("AccountId = '%s'", escapeSoql(cf.AccountID)))
	}
	return strings.Join(parts, " AND ")
}

// FindContacts returns up to limit contacts matching cf.
func FindContacts(ctx context.Context, c Client, cf ContactFilter, limit int) ([]Contact, error) {
	where := cf.where()
	if where == "" {
		return nil, eris.New("sf: empty contact filter")
	}
	soql := fmt.Sprintf("SELECT %s FROM Contact WHERE %s LIMIT %d", contactColumns, where, limit)
	var rows []map[string]any
	if err := c.Query(ctx, soql, &rows); err != nil {
		return nil, eris.Wrap(err, "sf: find contacts")
	}
	out := make([]Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, contact(r))
	}
	return out, nil
}

// PhoneClause matches field against a 9-digit national number stored
// either contiguous or grouped 3-3-3.
func PhoneClause(field, national string) string {
	n := escapeLike(national)
	if len(national) != 9 {
		return fmt.Sprintf("%s LIKE '%%%s'", field, n)
	}
	grouped := national[:3] + " " + national[3:6] + " " + national[6:]
	return fmt.Sprintf("(%s LIKE '%%%s' OR %s LIKE '%%%s')", field, n, field, escapeLike(grouped))
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

// escapeLike additionally escapes LIKE wildcards.
func escapeLike(s string) string {
	s = escapeSoql(s)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
