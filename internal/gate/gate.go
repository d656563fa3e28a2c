package gate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/extractor/internal/metrics"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate admits requests under an optional concurrency bound and an optional
// token bucket rate limit. The zero configuration admits everything.
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu     sync.Mutex
	held   int64 // Track how much of sem we've actually acquired
	maxCap int64

	inFlight atomic.Int64
}

type Config struct {
	// MaxConcurrentRequests bounds simultaneous holders, 0 means unbounded
	MaxConcurrentRequests int
	// RequestsPerSecond is the sustained admission rate, 0 means unlimited
	RequestsPerSecond float64
	// Burst defaults to ceil(RequestsPerSecond)
	Burst int
}

func New(cfg Config) *Gate {
	g := &Gate{}
	if cfg.MaxConcurrentRequests > 0 {
		g.maxCap = int64(cfg.MaxConcurrentRequests)
		g.sem = semaphore.NewWeighted(g.maxCap)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(math.Ceil(cfg.RequestsPerSecond))
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Unlimited returns a gate that never blocks.
func Unlimited() *Gate {
	return New(Config{})
}

// Permit is held for the duration of one request. Release is idempotent,
// callers defer it right after a successful Acquire.
type Permit struct {
	gate     *Gate
	weighted bool
	admitted bool
	once     sync.Once
}

// Acquire blocks until a concurrency slot is free and the rate limiter admits
// the request. It only fails when ctx is done, in which case nothing is held.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	start := time.Now()
	defer func() {
		metrics.GateWaitDuration.Observe(time.Since(start).Seconds())
	}()

	permit := &Permit{gate: g}
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for request slot: %w", err)
		}
		g.mu.Lock()
		g.held++
		g.mu.Unlock()
		permit.weighted = true
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			permit.Release()
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	permit.admitted = true
	g.inFlight.Add(1)
	metrics.GateInFlight.Inc()
	return permit, nil
}

// Release returns the permit's slot. Calling it more than once is a no-op.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		g := p.gate
		if p.weighted {
			g.releaseSlot()
		}
		if p.admitted {
			g.inFlight.Add(-1)
			metrics.GateInFlight.Dec()
		}
	})
}

func (g *Gate) releaseSlot() {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Only release what we actually have, prevent going below 0
	if g.held <= 0 {
		log.Error().
			Int64("actually_held", g.held).
			Int64("max_capacity", g.maxCap).
			Msg("Attempted to release a request slot that was not held")
		return
	}
	g.sem.Release(1)
	g.held--
}

// InFlight reports the number of permits currently held.
func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}

// MaxConcurrentRequests returns the concurrency bound, 0 when unbounded.
func (g *Gate) MaxConcurrentRequests() int64 {
	return g.maxCap
}
