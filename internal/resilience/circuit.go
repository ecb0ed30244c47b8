// Package resilience guards calls to external collaborators with a circuit
// breaker and retries with jittered exponential backoff.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is a breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned without calling the collaborator while a breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive counted failures that opens
	// the breaker. Default 5.
	Threshold int
	// Cooldown is how long an open breaker rejects calls before letting a
	// single probe through. Default 30s.
	Cooldown time.Duration
	// Counts decides whether an error counts as a failure. Default: any
	// non-nil error that is not a context cancellation.
	Counts func(err error) bool
}

// Breaker is a consecutive-failure circuit breaker for one collaborator.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Counts == nil {
		cfg.Counts = countsAsFailure
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

func countsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// State reports the current state. An open breaker whose cooldown elapsed
// reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(Closed)
	b.failures = 0
	b.probing = false
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.set(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if !b.cfg.Counts(err) {
		b.failures = 0
		if b.state == HalfOpen {
			b.set(Closed)
		}
		return
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.set(Open)
	}
}

func (b *Breaker) set(s State) {
	if b.state == s {
		return
	}
	zap.L().Info("resilience: breaker state change",
		zap.String("service", b.name),
		zap.String("from", b.state.String()),
		zap.String("to", s.String()),
	)
	b.state = s
}

// Call runs fn through the breaker.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}
