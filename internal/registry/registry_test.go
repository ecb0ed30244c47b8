package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/gus"
	"github.com/sells-group/nip-resolver/pkg/gus/mocks"
)

type memCache struct {
	recs map[string]model.RegistryRecord
	ttls map[string]time.Duration
	err  error
}

func newMemCache() *memCache {
	return &memCache{recs: map[string]model.RegistryRecord{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) GetCachedRegistry(_ context.Context, nip string) (*model.RegistryRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.recs[nip]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memCache) SetCachedRegistry(_ context.Context, rec model.RegistryRecord, ttl time.Duration) error {
	m.recs[rec.NIP] = rec
	m.ttls[rec.NIP] = ttl
	return nil
}

func fastGuard() *resilience.Guard {
	rp := resilience.DefaultRetryPolicy()
	rp.Base = time.Millisecond
	rp.Max = time.Millisecond
	return resilience.NewGuard("gus-test", resilience.BreakerConfig{}, rp)
}

var aldent = gus.Entity{
	REGON: "021234567", NIP: "8941864949", Name: "ALDENT SP. Z O.O.",
	City: "Wrocław", Street: "ul. Krucza", Building: "12", Type: "P", Voivodeship: "DOLNOŚLĄSKIE",
}

func TestLookup_FoundAndCached(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("SearchNIP", mock.Anything, "8941864949").Return([]gus.Entity{aldent}, nil).Once()
	cache := newMemCache()

	r := New(client, WithCache(cache, 48*time.Hour), WithGuard(fastGuard()))

	out := r.Lookup(context.Background(), "894-186-49-49")
	require.True(t, out.OK)
	assert.True(t, out.Value.Found)
	assert.Equal(t, "ALDENT SP. Z O.O.", out.Value.Name)
	assert.Equal(t, "ul. Krucza 12", out.Value.Address())
	assert.Equal(t, 48*time.Hour, cache.ttls["8941864949"])

	// second call is served from cache; the mock allows one call only
	out = r.Lookup(context.Background(), "8941864949")
	require.True(t, out.OK)
	assert.Equal(t, "Wrocław", out.Value.City)
}

func TestLookup_NotFoundIsCachedBriefly(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("SearchNIP", mock.Anything, "5260250995").Return([]gus.Entity{}, nil).Once()
	cache := newMemCache()

	out := New(client, WithCache(cache, 0), WithGuard(fastGuard())).Lookup(context.Background(), "5260250995")
	require.True(t, out.OK)
	assert.False(t, out.Value.Found)
	assert.Equal(t, "5260250995", out.Value.NIP)
	assert.Equal(t, NegativeTTL, cache.ttls["5260250995"])
}

func TestLookup_NoKeyIsUnavailable(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("SearchNIP", mock.Anything, "8941864949").Return(nil, gus.ErrNoKey).Once()

	out := New(client, WithGuard(fastGuard())).Lookup(context.Background(), "8941864949")
	assert.False(t, out.OK)
	assert.Equal(t, "registry: api key not configured", out.Reason)
}

func TestLookup_TransientRetriedThenUnavailable(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("SearchNIP", mock.Anything, "8941864949").
		Return(nil, resilience.Transient(errors.New("gus: 503"), 503)).Times(3)

	out := New(client, WithGuard(fastGuard())).Lookup(context.Background(), "8941864949")
	assert.False(t, out.OK)
	assert.Contains(t, out.Reason, "503")
}

func TestLookup_CacheErrorFallsThrough(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("SearchNIP", mock.Anything, "8941864949").Return([]gus.Entity{aldent}, nil).Once()
	cache := newMemCache()
	cache.err = errors.New("disk full")

	out := New(client, WithCache(cache, time.Hour), WithGuard(fastGuard())).Lookup(context.Background(), "8941864949")
	require.True(t, out.OK)
	assert.True(t, out.Value.Found)
}

func TestLookup_Malformed(t *testing.T) {
	client := mocks.NewMockClient(t)
	out := New(client).Lookup(context.Background(), "12345")
	assert.False(t, out.OK)
	client.AssertNotCalled(t, "SearchNIP", mock.Anything, mock.Anything)
}

func TestPick_PrefersLegalEntity(t *testing.T) {
	local := aldent
	local.Type = "LP"
	local.Name = "ALDENT ODDZIAŁ"

	e, ok := pick([]gus.Entity{local, aldent})
	require.True(t, ok)
	assert.Equal(t, "ALDENT SP. Z O.O.", e.Name)

	e, ok = pick([]gus.Entity{local})
	require.True(t, ok)
	assert.Equal(t, "ALDENT ODDZIAŁ", e.Name)

	_, ok = pick(nil)
	assert.False(t, ok)
}

func TestFromEntity_PostCityFallback(t *testing.T) {
	rec := FromEntity("8941864949", gus.Entity{Name: "X", PostCity: "Kraków"})
	assert.Equal(t, "Kraków", rec.City)
	assert.True(t, rec.Found)
}
