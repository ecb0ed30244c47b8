package resilience

import (
	"context"
	"sync"
	"time"
)

// Guard combines a breaker and a retry policy for one collaborator. The
// breaker sees one result per guarded call, after retries.
type Guard struct {
	breaker *Breaker
	retry   RetryPolicy
}

// NewGuard creates a guard for the named service.
func NewGuard(service string, bc BreakerConfig, rp RetryPolicy) *Guard {
	return &Guard{breaker: NewBreaker(service, bc), retry: rp}
}

// Breaker exposes the guard's breaker.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Do runs fn under the guard.
func Do[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return Call(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return Retry(ctx, g.retry, op, fn)
	})
}

// Guards hands out one guard per service, sharing configuration.
type Guards struct {
	mu     sync.Mutex
	bc     BreakerConfig
	rp     RetryPolicy
	guards map[string]*Guard
}

// NewGuards creates a guard registry.
func NewGuards(bc BreakerConfig, rp RetryPolicy) *Guards {
	return &Guards{bc: bc, rp: rp, guards: make(map[string]*Guard)}
}

// Get returns the guard for service, creating it on first use.
func (gs *Guards) Get(service string) *Guard {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g, ok := gs.guards[service]
	if !ok {
		g = NewGuard(service, gs.bc, gs.rp)
		gs.guards[service] = g
	}
	return g
}

// States snapshots every breaker's state.
func (gs *Guards) States() map[string]string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := make(map[string]string, len(gs.guards))
	for name, g := range gs.guards {
		out[name] = g.breaker.State().String()
	}
	return out
}

// FromSettings builds breaker and retry settings from plain config values.
// Non-positive values keep the defaults.
func FromSettings(threshold, cooldownSecs, attempts, baseMs, maxMs int) (BreakerConfig, RetryPolicy) {
	bc := BreakerConfig{Threshold: threshold}
	if cooldownSecs > 0 {
		bc.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	rp := DefaultRetryPolicy()
	if attempts > 0 {
		rp.Attempts = attempts
	}
	if baseMs > 0 {
		rp.Base = time.Duration(baseMs) * time.Millisecond
	}
	if maxMs > 0 {
		rp.Max = time.Duration(maxMs) * time.Millisecond
	}
	return bc, rp
}
