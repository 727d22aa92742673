package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ── Breaker ───────────────────────────────────────────────────────────────────
// Guards calls to an upstream collaborator (the tax-rate service). After
// MaxFailures consecutive failures the breaker opens and rejects calls for
// Cooldown; it then admits one probe at a time until ProbeSuccesses probes in
// a row succeed.

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling through while the breaker is
// open, or while a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerSettings struct {
	Name           string
	MaxFailures    int
	ProbeSuccesses int
	Cooldown       time.Duration
	// IsFailure decides which errors count against the upstream.
	// Defaults to every error except caller cancellation.
	IsFailure func(error) bool
}

// TaxServiceBreakerSettings are the defaults for the tax-rate client.
func TaxServiceBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:           "tax_service",
		MaxFailures:    5,
		ProbeSuccesses: 2,
		Cooldown:       30 * time.Second,
	}
}

type Breaker struct {
	mu       sync.Mutex
	settings BreakerSettings

	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	probing   bool

	now func() time.Time
}

func NewBreaker(s BreakerSettings) *Breaker {
	def := TaxServiceBreakerSettings()
	if s.Name == "" {
		s.Name = def.Name
	}
	if s.MaxFailures <= 0 {
		s.MaxFailures = def.MaxFailures
	}
	if s.ProbeSuccesses <= 0 {
		s.ProbeSuccesses = def.ProbeSuccesses
	}
	if s.Cooldown <= 0 {
		s.Cooldown = def.Cooldown
	}
	if s.IsFailure == nil {
		s.IsFailure = countsAgainstUpstream
	}
	b := &Breaker{settings: s, state: BreakerClosed, now: time.Now}
	metrics.BreakerState.WithLabelValues(s.Name).Set(float64(BreakerClosed))
	return b
}

func countsAgainstUpstream(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refresh()
}

// refresh moves an open breaker to half-open once the cooldown has elapsed.
// Caller holds mu.
func (b *Breaker) refresh() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(BreakerHalfOpen)
	}
	return b.state
}

// Do runs fn unless the breaker rejects the call.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.refresh() {
	case BreakerOpen:
		return ErrCircuitOpen
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == BreakerHalfOpen
	if wasProbe {
		b.probing = false
	}

	if err != nil && b.settings.IsFailure(err) {
		b.successes = 0
		if wasProbe {
			b.trip()
			return
		}
		b.failures++
		if b.failures >= b.settings.MaxFailures {
			b.trip()
		}
		return
	}

	if !wasProbe {
		b.failures = 0
		return
	}
	b.successes++
	if b.successes >= b.settings.ProbeSuccesses {
		b.transition(BreakerClosed)
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.transition(BreakerOpen)
}

func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	metrics.BreakerState.WithLabelValues(b.settings.Name).Set(float64(to))

	ev := log.Info()
	if to == BreakerOpen {
		ev = log.Warn()
	}
	ev.Str("breaker", b.settings.Name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state change")
}
