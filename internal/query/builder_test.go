package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/model"
)

func texts(qs []Query) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}
	return out
}

func TestNIPQueries_FullLeadOrder(t *testing.T) {
	b := New(10)
	lead := &model.Lead{
		Name:      "Aldent Sp. z o.o.",
		ShortName: "Aldent",
		City:      "Wrocław",
		Street:    "ul. Kasprowicza 12",
		Keywords:  []string{"stomatolog", "implanty", "ortodoncja"},
	}

	qs := b.NIPQueries(lead, "", "")
	assert.Equal(t, []string{
		`"Aldent Sp. z o.o." "ul. Kasprowicza 12" "Wrocław" nip`,
		`"Aldent Sp. z o.o." "Wrocław" nip`,
		`"Aldent" "Wrocław" nip`,
		`"Aldent Sp. z o.o." nip`,
		`"Aldent" nip`,
		`"Aldent Sp. z o.o." "Wrocław" stomatolog implanty nip`,
	}, texts(qs))

	for i, q := range qs {
		assert.Equal(t, i+1, q.Priority)
	}
	assert.Equal(t, []string{"name", "street", "city"}, qs[0].Elements)
}

func TestNIPQueries_DefaultCap(t *testing.T) {
	lead := &model.Lead{
		Name:      "Aldent Sp. z o.o.",
		ShortName: "Aldent",
		City:      "Wrocław",
		Street:    "Kasprowicza 12",
		Keywords:  []string{"stomatolog"},
	}
	qs := New(0).NIPQueries(lead, "ALDENT SPÓŁKA Z O.O.", "")
	require.Len(t, qs, DefaultMax)
	assert.Equal(t, "registry_name + city + nip", qs[0].Strategy)
}

func TestNIPQueries_CapAlwaysHolds(t *testing.T) {
	lead := &model.Lead{Name: "A", ShortName: "B", City: "C", Street: "D", Keywords: []string{"k"}}
	for limit := 1; limit <= 8; limit++ {
		qs := New(limit).NIPQueries(lead, "R", "")
		assert.LessOrEqual(t, len(qs), limit)
	}
}

func TestNIPQueries_Deterministic(t *testing.T) {
	b := New(5)
	lead := &model.Lead{Name: "Dentart", City: "Kraków", Keywords: []string{"dentysta"}}
	first := b.NIPQueries(lead, "DENTART S.C.", "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.NIPQueries(lead, "DENTART S.C.", ""))
	}
}

func TestNIPQueries_SparseLeads(t *testing.T) {
	tests := []struct {
		name string
		lead model.Lead
		regN string
		regC string
		want []string
	}{
		{
			name: "empty lead",
			lead: model.Lead{},
			want: []string{},
		},
		{
			name: "name only",
			lead: model.Lead{Name: "Otco"},
			want: []string{`"Otco" nip`},
		},
		{
			name: "short name stands in for name",
			lead: model.Lead{ShortName: "Otco", City: "Gdańsk"},
			want: []string{`"Otco" "Gdańsk" nip`, `"Otco" nip`},
		},
		{
			name: "registry city fills missing city",
			lead: model.Lead{Name: "Otco"},
			regC: "Gdańsk",
			want: []string{`"Otco" "Gdańsk" nip`, `"Otco" nip`},
		},
		{
			name: "registry name equal to lead name adds nothing",
			lead: model.Lead{Name: "Otco", City: "Gdańsk"},
			regN: "Otco",
			want: []string{`"Otco" "Gdańsk" nip`, `"Otco" nip`},
		},
		{
			name: "keywords need a city",
			lead: model.Lead{Name: "Otco", Keywords: []string{"meble"}},
			want: []string{`"Otco" nip`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := texts(New(10).NIPQueries(&tt.lead, tt.regN, tt.regC))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebsiteQueries(t *testing.T) {
	lead := &model.Lead{Name: "Aldent", ShortName: "Al", City: "Wrocław"}
	qs := New(10).WebsiteQueries(lead, "ALDENT SP Z O O", "")
	assert.Equal(t, []string{
		`"Aldent" "Wrocław" strona internetowa`,
		`"Aldent" "Wrocław"`,
		`"ALDENT SP Z O O" "Wrocław"`,
		`"Al" "Wrocław"`,
		`"Aldent"`,
	}, texts(qs))
	for _, q := range qs {
		assert.NotContains(t, q.Text, " nip")
	}
}

func TestWebsiteQueries_RegistryOnly(t *testing.T) {
	qs := New(5).WebsiteQueries(&model.Lead{NIP: "8941864949"}, "ALDENT", "Wrocław")
	assert.Equal(t, []string{
		`"ALDENT" "Wrocław" strona internetowa`,
		`"ALDENT" "Wrocław"`,
		`"ALDENT"`,
	}, texts(qs))
}

func TestBuildCRMKeys(t *testing.T) {
	k := BuildCRMKeys(&model.Lead{
		Name:    "Aldent",
		City:    "Wrocław",
		Phone:   "+48 601-234-567",
		Email:   "Biuro@Aldent.PL",
		Website: "https://www.aldent.pl/kontakt",
	})
	assert.Equal(t, "aldent.pl", k.Domain)
	assert.Equal(t, []string{"601234567"}, k.Phones)
	assert.Equal(t, []string{"aldent.pl"}, k.EmailDomains)
	assert.Equal(t, "biuro@aldent.pl", k.Email)
	assert.False(t, k.Empty())
}

func TestBuildCRMKeys_PublicMailboxIgnored(t *testing.T) {
	k := BuildCRMKeys(&model.Lead{Name: "Aldent", Email: "aldent@gmail.com", Phone: "12"})
	assert.Empty(t, k.EmailDomains)
	assert.Empty(t, k.Phones)
	assert.True(t, k.Empty())
}
