// Package store persists the registry cache and decision traces.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nip-resolver/internal/model"
)

// DefaultRegistryTTL is how long a registry answer is served from cache.
const DefaultRegistryTTL = 30 * 24 * time.Hour

// ErrTraceNotFound is returned by GetTrace for an unknown id.
var ErrTraceNotFound = eris.New("trace not found")

// TraceFilter specifies criteria for listing traces.
type TraceFilter struct {
	Outcome model.TraceOutcome `json:"outcome,omitempty"`
	NIP     string             `json:"nip,omitempty"`
	Limit   int                `json:"limit,omitempty"`
	Offset  int                `json:"offset,omitempty"`
}

// TraceSummary is one row of a trace listing.
type TraceSummary struct {
	ID        uuid.UUID          `json:"id"`
	Raw       string             `json:"raw"`
	Outcome   model.TraceOutcome `json:"outcome"`
	NIP       string             `json:"nip,omitempty"`
	CostUSD   float64            `json:"cost_usd"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store defines the persistence interface for the resolver.
type Store interface {
	// Registry cache. A miss or an expired entry returns nil without error.
	GetCachedRegistry(ctx context.Context, nip string) (*model.RegistryRecord, error)
	SetCachedRegistry(ctx context.Context, rec model.RegistryRecord, ttl time.Duration) error
	DeleteExpiredRegistry(ctx context.Context) (int, error)

	// Traces
	SaveTrace(ctx context.Context, t *model.Trace) error
	GetTrace(ctx context.Context, id uuid.UUID) (*model.Trace, error)
	ListTraces(ctx context.Context, filter TraceFilter) ([]TraceSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}
