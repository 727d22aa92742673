package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, s BreakerSettings) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	s.Name = t.Name()
	b := NewBreaker(s)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b, now := newTestBreaker(t, BreakerSettings{MaxFailures: 2, ProbeSuccesses: 2, Cooldown: time.Minute})

	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, BreakerClosed, b.State())
	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, BreakerOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	*now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A failed probe re-opens for a full cooldown.
	assert.ErrorIs(t, b.Do(ctx, fail), boom)
	assert.Equal(t, BreakerOpen, b.State())
	*now = now.Add(30 * time.Second)
	assert.Equal(t, BreakerOpen, b.State())

	*now = now.Add(30 * time.Second)
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.NoError(t, b.Do(ctx, ok))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(t, BreakerSettings{MaxFailures: 2})
	boom := errors.New("boom")

	_ = b.Do(ctx, func(context.Context) error { return boom })
	_ = b.Do(ctx, func(context.Context) error { return nil })
	_ = b.Do(ctx, func(context.Context) error { return boom })
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBreaker(t, BreakerSettings{MaxFailures: 1})

	err := b.Do(ctx, func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	ctx := context.Background()
	b, now := newTestBreaker(t, BreakerSettings{MaxFailures: 1, ProbeSuccesses: 1, Cooldown: time.Minute})

	_ = b.Do(ctx, func(context.Context) error { return errors.New("down") })
	*now = now.Add(time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	assert.ErrorIs(t, b.Do(ctx, func(context.Context) error { return nil }), ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, BreakerClosed, b.State())
}
