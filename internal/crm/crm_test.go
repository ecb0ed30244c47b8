package crm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/identity"
	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/query"
	"github.com/sells-group/nip-resolver/internal/resilience"
)

// fakeSF answers SOQL by the first matching substring rule.
type fakeSF struct {
	rules   []rule
	queries []string
}

type rule struct {
	contains string
	rows     []map[string]any
	err      error
}

func (f *fakeSF) on(contains string, rows ...map[string]any) *fakeSF {
	f.rules = append(f.rules, rule{contains: contains, rows: rows})
	return f
}

func (f *fakeSF) fail(contains string, err error) *fakeSF {
	f.rules = append(f.rules, rule{contains: contains, err: err})
	return f
}

func (f *fakeSF) Query(_ context.Context, soql string, out any) error {
	f.queries = append(f.queries, soql)
	for _, r := range f.rules {
		if strings.Contains(soql, r.contains) {
			if r.err != nil {
				return r.err
			}
			*(out.(*[]map[string]any)) = r.rows
			return nil
		}
	}
	*(out.(*[]map[string]any)) = nil
	return nil
}

func noRetry() *resilience.Guard {
	rp := resilience.DefaultRetryPolicy()
	rp.Attempts = 1
	return resilience.NewGuard("sf-test", resilience.BreakerConfig{}, rp)
}

func TestFindAccountID_Order(t *testing.T) {
	tests := []struct {
		name   string
		keys   query.CRMKeys
		sf     *fakeSF
		wantID string
	}{
		{
			name:   "domain wins",
			keys:   query.CRMKeys{Domain: "aldent.pl", EmailDomains: []string{"aldent.pl"}, Phones: []string{"713456789"}},
			sf:     (&fakeSF{}).on("Website LIKE", map[string]any{"Id": "001D", "Website": "https://www.aldent.pl/"}),
			wantID: "001D",
		},
		{
			name: "website substring that is another domain is ignored",
			keys: query.CRMKeys{Domain: "aldent.pl", EmailDomains: []string{"aldent.pl"}},
			sf: (&fakeSF{}).
				on("Website LIKE", map[string]any{"Id": "001X", "Website": "superaldent.pl"}).
				on("Email LIKE '%@aldent.pl'", map[string]any{"Id": "003A", "AccountId": "001E"}),
			wantID: "001E",
		},
		{
			name: "phone via account",
			keys: query.CRMKeys{Phones: []string{"713456789"}},
			sf: (&fakeSF{}).
				on("FROM Account WHERE (Phone LIKE", map[string]any{"Id": "001P", "Phone": "+48 71 345 67 89"}),
			wantID: "001P",
		},
		{
			name: "phone via contact",
			keys: query.CRMKeys{Phones: []string{"713456789"}},
			sf: (&fakeSF{}).
				on("FROM Contact", map[string]any{"Id": "003B", "AccountId": "001C"}),
			wantID: "001C",
		},
		{
			name:   "nothing matches",
			keys:   query.CRMKeys{Domain: "nowhere.pl"},
			sf:     &fakeSF{},
			wantID: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New(tt.sf, WithGuard(noRetry())).FindAccountID(context.Background(), tt.keys)
			require.True(t, out.OK, out.Reason)
			assert.Equal(t, tt.wantID, out.Value)
		})
	}
}

func TestFindAccountID_NoCredentials(t *testing.T) {
	c := New(nil)
	assert.False(t, c.Configured())

	out := c.FindAccountID(context.Background(), query.CRMKeys{Domain: "aldent.pl"})
	require.True(t, out.OK)
	assert.Empty(t, out.Value)

	accts := c.LookupByID(context.Background(), "001A")
	require.True(t, accts.OK)
	assert.Empty(t, accts.Value)

	recs, err := c.ContactsByEmail(context.Background(), "jan@aldent.pl")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFindAccountID_EmptyKeysSkipsQueries(t *testing.T) {
	sf := &fakeSF{}
	out := New(sf).FindAccountID(context.Background(), query.CRMKeys{Name: "Aldent", City: "Wrocław"})
	require.True(t, out.OK)
	assert.Empty(t, sf.queries)
}

func TestFindAccountID_FailureIsUnavailable(t *testing.T) {
	sf := (&fakeSF{}).fail("FROM Account", errors.New("INVALID_SESSION_ID"))
	out := New(sf, WithGuard(noRetry())).FindAccountID(context.Background(), query.CRMKeys{Domain: "aldent.pl"})
	assert.False(t, out.OK)
	assert.Contains(t, out.Reason, "INVALID_SESSION_ID")
}

func TestLookupByID_BranchReturnsHeadquartersFirst(t *testing.T) {
	sf := (&fakeSF{}).
		on("Id = '001B'", map[string]any{"Id": "001B", "Name": "Aldent Oddział Oleśnica", "ParentId": "001H"}).
		on("Id = '001H'", map[string]any{"Id": "001H", "Name": "Aldent", "NIP__c": "8941864949"})

	out := New(sf, WithGuard(noRetry())).LookupByID(context.Background(), "001B")
	require.True(t, out.OK)
	require.Len(t, out.Value, 2)
	assert.Equal(t, "001H", out.Value[0].ID)
	assert.True(t, out.Value[0].IsHeadquarters)
	assert.True(t, out.Value[1].IsBranch)
	assert.Equal(t, "001H", out.Value[1].ParentID)

	best, ok := PreferredNIP(out.Value)
	require.True(t, ok)
	assert.Equal(t, "8941864949", best.NIP)
}

func TestLookupByID_HeadquartersWithoutNIPListsBranches(t *testing.T) {
	sf := (&fakeSF{}).
		on("ParentId = '001P'",
			map[string]any{"Id": "001C", "Name": "Dentica Mokotów", "ParentId": "001P", "NIP__c": "5260250995"},
			map[string]any{"Id": "001D", "Name": "Dentica Wola", "ParentId": "001P"}).
		on("Id = '001P'", map[string]any{"Id": "001P", "Name": "Dentica"})

	out := New(sf, WithGuard(noRetry())).LookupByID(context.Background(), "001P")
	require.True(t, out.OK)
	require.Len(t, out.Value, 3)
	assert.Equal(t, "001P", out.Value[0].ID)
	assert.True(t, out.Value[0].IsHeadquarters)
	assert.True(t, out.Value[1].IsBranch)

	best, ok := PreferredNIP(out.Value)
	require.True(t, ok)
	assert.Equal(t, "001C", best.ID)
	assert.Equal(t, "5260250995", best.NIP)
}

func TestLookupByID_HeadquartersWithNIPSkipsBranches(t *testing.T) {
	sf := (&fakeSF{}).on("Id = '001H'", map[string]any{"Id": "001H", "Name": "Aldent", "NIP__c": "8941864949"})

	out := New(sf, WithGuard(noRetry())).LookupByID(context.Background(), "001H")
	require.True(t, out.OK)
	require.Len(t, out.Value, 1)
	assert.Len(t, sf.queries, 1)
}

func TestLookupByID_BranchFailureKeepsHeadquarters(t *testing.T) {
	sf := (&fakeSF{}).
		fail("ParentId = '001P'", errors.New("QUERY_TIMEOUT")).
		on("Id = '001P'", map[string]any{"Id": "001P", "Name": "Dentica"})

	out := New(sf, WithGuard(noRetry())).LookupByID(context.Background(), "001P")
	require.True(t, out.OK)
	require.Len(t, out.Value, 1)
	assert.Equal(t, "001P", out.Value[0].ID)
}

func TestLookupByID_NotFound(t *testing.T) {
	out := New(&fakeSF{}, WithGuard(noRetry())).LookupByID(context.Background(), "001Z")
	require.True(t, out.OK)
	assert.Empty(t, out.Value)
}

func TestPreferredNIP(t *testing.T) {
	branchOnly := []model.CRMAccount{
		{ID: "b", IsBranch: true, NIP: "5260250995"},
		{ID: "h", IsHeadquarters: true},
	}
	best, ok := PreferredNIP(branchOnly)
	require.True(t, ok)
	assert.Equal(t, "b", best.ID)

	_, ok = PreferredNIP([]model.CRMAccount{{ID: "x"}})
	assert.False(t, ok)
}

func TestContactStore_FeedsMatcher(t *testing.T) {
	sf := (&fakeSF{}).
		on("Email = 'anna@aldent.pl'", map[string]any{
			"Id": "003A", "FirstName": "Anna", "LastName": "Nowak", "Email": "anna@aldent.pl",
			"MobilePhone": "+48 501 234 567", "AccountId": "001H",
		})

	m := identity.NewMatcher(New(sf, WithGuard(noRetry())))
	res := m.Match(context.Background(), identity.Target{Email: "Anna@Aldent.pl", Phone: "501234567", LastName: "Nowak"})

	assert.True(t, res.Exists)
	assert.Equal(t, "003A", res.PrimaryID)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, identity.TierMax, res.Candidates[0].Tier)
	assert.Equal(t, "001H", res.Candidates[0].Record.ParentID)

	// email and phone without a last name is below the minimum tier
	res = m.Match(context.Background(), identity.Target{Email: "Anna@Aldent.pl", Phone: "501234567"})
	assert.False(t, res.Exists)
	assert.Empty(t, res.PrimaryID)
	assert.Empty(t, res.Candidates)
}

func TestContactStore_Filters(t *testing.T) {
	sf := &fakeSF{}
	c := New(sf, WithGuard(noRetry()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _ = c.ContactsByName(ctx, "Jan", "Kowalski")
	_, _ = c.ContactsByParent(ctx, "Kowalski", "001H")
	_, _ = c.ContactsByPhone(ctx, "501234567")
	require.Len(t, sf.queries, 3)
	assert.Contains(t, sf.queries[0], "FirstName = 'Jan' AND LastName = 'Kowalski'")
	assert.Contains(t, sf.queries[1], "LastName = 'Kowalski' AND AccountId = '001H'")
	assert.Contains(t, sf.queries[2], "MobilePhone LIKE '%501234567'")
}
