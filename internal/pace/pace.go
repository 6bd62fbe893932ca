package pace

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer draws random durations and counts and sleeps between actions.
// It is safe for concurrent use.
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
	slept time.Duration
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithSeed fixes the random source.
func WithSeed(seed uint64) Option {
	return func(p *Pacer) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // timing jitter, not security
	}
}

// WithSleep replaces the sleep implementation.
func WithSleep(fn SleepFunc) Option {
	return func(p *Pacer) {
		p.sleep = fn
	}
}

// New returns a Pacer that sleeps on the wall clock.
func New(opts ...Option) *Pacer {
	p := &Pacer{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // timing jitter, not security
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Instant returns a seeded Pacer whose sleeps return immediately.
// The requested durations are still accumulated in Slept.
func Instant(seed uint64) *Pacer {
	return New(WithSeed(seed), WithSleep(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep waits for d or until ctx is cancelled.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.slept += d
	sleep := p.sleep
	p.mu.Unlock()
	return sleep(ctx, d)
}

// Wait sleeps for a random duration in [lo, hi] and returns it.
func (p *Pacer) Wait(ctx context.Context, lo, hi time.Duration) (time.Duration, error) {
	d := p.Between(lo, hi)
	return d, p.Sleep(ctx, d)
}

// Between returns a uniform duration in [lo, hi]. Swapped bounds are tolerated.
func (p *Pacer) Between(lo, hi time.Duration) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + time.Duration(p.rng.Int64N(int64(hi-lo)+1))
}

// IntBetween returns a uniform integer in [lo, hi].
func (p *Pacer) IntBetween(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + p.rng.IntN(hi-lo+1)
}

// Chance reports true with probability prob.
func (p *Pacer) Chance(prob float64) bool {
	if prob <= 0 {
		return false
	}
	if prob >= 1 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < prob
}

// Slept returns the sum of all requested sleeps.
func (p *Pacer) Slept() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slept
}
