// Package registry looks NIPs up in the national business registry,
// serving repeated lookups from a TTL cache.
package registry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/nip-resolver/internal/model"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/resilience"
	"github.com/sells-group/nip-resolver/pkg/gus"
)

// NegativeTTL bounds how long a "no such entity" answer is cached.
const NegativeTTL = 24 * time.Hour

// Lookup fetches the registry record for a NIP.
type Lookup interface {
	Lookup(ctx context.Context, id string) model.Outcome[model.RegistryRecord]
}

// Cache is the registry slice of the store.
type Cache interface {
	GetCachedRegistry(ctx context.Context, nip string) (*model.RegistryRecord, error)
	SetCachedRegistry(ctx context.Context, rec model.RegistryRecord, ttl time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithCache serves lookups from c, storing fresh answers for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Client) {
		r.cache = c
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithGuard runs registry calls under g.
func WithGuard(g *resilience.Guard) Option {
	return func(r *Client) { r.guard = g }
}

// Client adapts the GUS client to Lookup.
type Client struct {
	gus   gus.Client
	cache Cache
	ttl   time.Duration
	guard *resilience.Guard
}

// New creates a registry lookup backed by g.
func New(g gus.Client, opts ...Option) *Client {
	c := &Client{
		gus:   g,
		ttl:   30 * 24 * time.Hour,
		guard: resilience.NewGuard("gus", resilience.BreakerConfig{}, resilience.DefaultRetryPolicy()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns the registry record for id. A record with Found=false
// means the registry answered and has no such entity; an unavailable
// outcome means no answer could be obtained.
func (c *Client) Lookup(ctx context.Context, id string) model.Outcome[model.RegistryRecord] {
	id, ok := nip.Normalize(id)
	if !ok {
		return model.Unavailable[model.RegistryRecord]("registry: malformed NIP")
	}

	if c.cache != nil {
		rec, err := c.cache.GetCachedRegistry(ctx, id)
		if err != nil {
			zap.L().Warn("registry: cache read failed", zap.String("nip", id), zap.Error(err))
		} else if rec != nil {
			zap.L().Debug("registry: cache hit", zap.String("nip", id), zap.Bool("found", rec.Found))
			return model.Ok(*rec)
		}
	}

	entities, err := resilience.Do(ctx, c.guard, "gus search", func(ctx context.Context) ([]gus.Entity, error) {
		return c.gus.SearchNIP(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gus.ErrNoKey) {
			return model.Unavailable[model.RegistryRecord]("registry: api key not configured")
		}
		zap.L().Warn("registry: lookup failed", zap.String("nip", id), zap.Error(err))
		return model.Unavailable[model.RegistryRecord]("registry: " + err.Error())
	}

	rec := model.RegistryRecord{NIP: id}
	ttl := NegativeTTL
	if e, ok := pick(entities); ok {
		rec = FromEntity(id, e)
		ttl = c.ttl
	}

	if c.cache != nil {
		if err := c.cache.SetCachedRegistry(ctx, rec, ttl); err != nil {
			zap.L().Warn("registry: cache write failed", zap.String("nip", id), zap.Error(err))
		}
	}
	zap.L().Debug("registry: lookup", zap.String("nip", id), zap.Bool("found", rec.Found), zap.String("name", rec.Name))
	return model.Ok(rec)
}

// pick prefers the legal-entity record ("P") over local units.
func pick(entities []gus.Entity) (gus.Entity, bool) {
	if len(entities) == 0 {
		return gus.Entity{}, false
	}
	for _, e := range entities {
		if e.Type == "P" {
			return e, true
		}
	}
	return entities[0], true
}

// FromEntity maps a GUS entity onto a registry record.
func FromEntity(id string, e gus.Entity) model.RegistryRecord {
	city := e.City
	if city == "" {
		city = e.PostCity
	}
	return model.RegistryRecord{
		Found:       true,
		NIP:         id,
		REGON:       e.REGON,
		Name:        e.Name,
		City:        city,
		Street:      e.Street,
		Building:    e.Building,
		Apartment:   e.Apartment,
		PostalCode:  e.PostalCode,
		Voivodeship: e.Voivodeship,
	}
}
