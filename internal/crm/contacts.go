package crm

import (
	"context"

	"github.com/sells-group/nip-resolver/internal/identity"
	"github.com/sells-group/nip-resolver/pkg/salesforce"
)

const contactLimit = 50

func (c *Client) contacts(ctx context.Context, op string, f salesforce.ContactFilter) ([]identity.Record, error) {
	if c.sf == nil {
		return nil, nil
	}
	found, err := guarded(ctx, c, op, func(ctx context.Context) ([]salesforce.Contact, error) {
		return salesforce.FindContacts(ctx, c.sf, f, contactLimit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]identity.Record, 0, len(found))
	for _, ct := range found {
		phone := ct.Phone
		if phone == "" {
			phone = ct.MobilePhone
		}
		out = append(out, identity.Record{
			ID:        ct.ID,
			FirstName: ct.FirstName,
			LastName:  ct.LastName,
			Email:     ct.Email,
			Phone:     phone,
			ParentID:  ct.AccountID,
		})
	}
	return out, nil
}

// ContactsByEmail implements identity.Store.
func (c *Client) ContactsByEmail(ctx context.Context, email string) ([]identity.Record, error) {
	return c.contacts(ctx, "sf contacts by email", salesforce.ContactFilter{Email: email})
}

// ContactsByPhone implements identity.Store.
func (c *Client) ContactsByPhone(ctx context.Context, phone string) ([]identity.Record, error) {
	return c.contacts(ctx, "sf contacts by phone", salesforce.ContactFilter{Phone: phone})
}

// ContactsByName implements identity.Store.
func (c *Client) ContactsByName(ctx context.Context, first, last string) ([]identity.Record, error) {
	return c.contacts(ctx, "sf contacts by name", salesforce.ContactFilter{FirstName: first, LastName: last})
}

// ContactsByParent implements identity.Store.
func (c *Client) ContactsByParent(ctx context.Context, last, parentID string) ([]identity.Record, error) {
	return c.contacts(ctx, "sf contacts by parent", salesforce.ContactFilter{LastName: last, AccountID: parentID})
}
