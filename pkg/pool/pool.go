// Package pool implements a generic async connection pool for opaque
// external-provider handles (spec §4.C): min/max sizing, acquire timeout,
// idle eviction, health checks and metrics.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	omniErrors "github.com/omnicore/agentrt/pkg/errors"
)

// Factory creates, closes and health-checks a single connection of type T.
// Implementations are the only place that knows about the concrete
// provider (LLM client, vector-store client, ...).
type Factory[T any] interface {
	Create(ctx context.Context) (T, error)
	Close(conn T) error
	IsHealthy(ctx context.Context, conn T) bool
}

// Config mirrors spec §4.C's pool configuration block.
type Config struct {
	MinConnections             int
	MaxConnections             int
	IdleTimeout                time.Duration
	AcquireTimeout             time.Duration
	HealthCheckInterval        time.Duration
	MaxConnectRetries          int
}

func (c *Config) setDefaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 10 * time.Second
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = 30 * time.Second
	}
	if c.MaxConnectRetries == 0 {
		c.MaxConnectRetries = 3
	}
}

type entry[T any] struct {
	conn     T
	idle     bool
	lastUsed time.Time
}

// Metrics is a point-in-time snapshot of pool activity (spec §4.C).
type Metrics struct {
	TotalConnections int
	Idle             int
	InUse            int
	TotalAcquires    int64
	TotalReleases    int64
	TotalTimeouts    int64
	TotalErrors      int64
	AvgAcquireMs     float64
	MaxAcquireMs     float64
	Uptime           time.Duration
}

// Pool is a generic, coordinator-protected connection pool.
type Pool[T any] struct {
	cfg     Config
	factory Factory[T]
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	cond    *sync.Cond
	conns   []*entry[T]
	closed  bool
	started time.Time

	totalAcquires int64
	totalReleases int64
	totalTimeouts int64
	totalErrors   int64
	acquireSumMs  float64
	acquireMaxMs  float64

	stopCleanup chan struct{}
	stopHealth  chan struct{}
	wg          sync.WaitGroup
}

// New creates a pool and starts its background cleanup/health-check tasks.
// It does not pre-warm MinConnections; the first Acquire calls grow the
// pool up to MaxConnections as needed.
func New[T any](cfg Config, factory Factory[T]) *Pool[T] {
	cfg.setDefaults()
	p := &Pool[T]{
		cfg:         cfg,
		factory:     factory,
		started:     time.Now(),
		stopCleanup: make(chan struct{}),
		stopHealth:  make(chan struct{}),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "pool-health",
			Timeout: cfg.HealthCheckInterval,
		}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(2)
	go p.cleanupLoop()
	go p.healthLoop()

	return p
}

// Acquire returns an idle connection, creates a new one if under capacity,
// or blocks until one frees up or acquireTimeout elapses.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.totalAcquires++
		ms := float64(time.Since(start).Milliseconds())
		p.acquireSumMs += ms
		if ms > p.acquireMaxMs {
			p.acquireMaxMs = ms
		}
		p.mu.Unlock()
	}()

	deadline := time.Now().Add(p.cfg.AcquireTimeout)

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			var zero T
			return zero, &omniErrors.PoolClosedError{}
		}

		for _, e := range p.conns {
			if e.idle {
				e.idle = false
				e.lastUsed = time.Now()
				conn := e.conn
				p.mu.Unlock()
				return conn, nil
			}
		}

		if len(p.conns) < p.cfg.MaxConnections {
			p.mu.Unlock()
			conn, err := p.createWithRetry(ctx)
			if err != nil {
				p.mu.Lock()
				p.totalErrors++
				p.mu.Unlock()
				var zero T
				return zero, err
			}
			p.mu.Lock()
			p.conns = append(p.conns, &entry[T]{conn: conn, idle: false, lastUsed: time.Now()})
			p.mu.Unlock()
			return conn, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.totalTimeouts++
			p.mu.Unlock()
			var zero T
			return zero, &omniErrors.PoolExhaustedError{Waited: p.cfg.AcquireTimeout.String()}
		}

		waited := p.waitOrTimeout(remaining)
		if !waited {
			p.totalTimeouts++
			p.mu.Unlock()
			var zero T
			return zero, &omniErrors.PoolExhaustedError{Waited: p.cfg.AcquireTimeout.String()}
		}
	}
}

// waitOrTimeout waits on the coordinator's condition variable, called with
// p.mu held. It returns with p.mu held again, true if woken before the
// deadline d elapsed and false if it timed out.
func (p *Pool[T]) waitOrTimeout(d time.Duration) bool {
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	deadline := time.Now().Add(d)
	p.cond.Wait()
	return !time.Now().After(deadline)
}

func (p *Pool[T]) createWithRetry(ctx context.Context) (T, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxConnectRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		conn, err := p.factory.Create(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	var zero T
	return zero, lastErr
}

// Release returns a checked-out connection to the pool. If the connection
// is unhealthy it is closed and dropped instead of being marked idle
// (spec §4.C release semantics, invariant 5).
func (p *Pool[T]) Release(ctx context.Context, conn T) {
	healthy := false
	_, _ = p.breaker.Execute(func() (any, error) {
		healthy = p.factory.IsHealthy(ctx, conn)
		if !healthy {
			return nil, omniErrors.New(omniErrors.KindVectorDBConnection, "connection unhealthy")
		}
		return nil, nil
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalReleases++

	for i, e := range p.conns {
		if sameConn(e.conn, conn) {
			if healthy && !p.closed {
				e.idle = true
				e.lastUsed = time.Now()
			} else {
				_ = p.factory.Close(e.conn)
				p.conns = append(p.conns[:i], p.conns[i+1:]...)
			}
			p.cond.Broadcast()
			return
		}
	}
}

func sameConn[T any](a, b T) bool {
	return any(a) == any(b)
}

func (p *Pool[T]) cleanupLoop() {
	defer p.wg.Done()
	interval := p.cfg.IdleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCleanup:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool[T]) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	now := time.Now()
	kept := p.conns[:0]
	for _, e := range p.conns {
		tooOld := e.idle && now.Sub(e.lastUsed) > p.cfg.IdleTimeout
		if tooOld && len(kept) >= p.cfg.MinConnections {
			_ = p.factory.Close(e.conn)
			continue
		}
		kept = append(kept, e)
	}
	p.conns = kept
}

func (p *Pool[T]) healthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopHealth:
			return
		case <-ticker.C:
			p.probeIdle()
		}
	}
}

func (p *Pool[T]) probeIdle() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	idle := make([]*entry[T], 0, len(p.conns))
	for _, e := range p.conns {
		if e.idle {
			idle = append(idle, e)
		}
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HealthCheckInterval)
	defer cancel()

	var dead []T
	for _, e := range idle {
		if !p.factory.IsHealthy(ctx, e.conn) {
			dead = append(dead, e.conn)
		}
	}

	if len(dead) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.conns[:0]
	for _, e := range p.conns {
		isDead := false
		for _, d := range dead {
			if sameConn(e.conn, d) {
				isDead = true
				break
			}
		}
		if isDead {
			_ = p.factory.Close(e.conn)
			continue
		}
		kept = append(kept, e)
	}
	p.conns = kept
}

// Snapshot returns the current metrics (spec §4.C Metrics).
func (p *Pool[T]) Snapshot() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle, inUse := 0, 0
	for _, e := range p.conns {
		if e.idle {
			idle++
		} else {
			inUse++
		}
	}

	avg := 0.0
	if p.totalAcquires > 0 {
		avg = p.acquireSumMs / float64(p.totalAcquires)
	}

	return Metrics{
		TotalConnections: len(p.conns),
		Idle:             idle,
		InUse:            inUse,
		TotalAcquires:    p.totalAcquires,
		TotalReleases:    p.totalReleases,
		TotalTimeouts:    p.totalTimeouts,
		TotalErrors:      p.totalErrors,
		AvgAcquireMs:     avg,
		MaxAcquireMs:     p.acquireMaxMs,
		Uptime:           time.Since(p.started),
	}
}

// Close cancels background tasks and closes every connection. Acquire
// called after Close always fails with PoolClosedError.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	p.conns = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	close(p.stopCleanup)
	close(p.stopHealth)
	p.wg.Wait()

	var lastErr error
	for _, e := range conns {
		if err := p.factory.Close(e.conn); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
