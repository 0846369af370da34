// Package pool manages warm sandbox supervisors that are reused across
// calls to the same compiled script.
//
// # Design rationale
//
// Forking a child process, running its lockdown sequence, and compiling a
// script costs tens of milliseconds. To amortise this across repeated
// call_function invocations against the same script, the pool keeps a
// supervisor's child process alive between calls instead of tearing it
// down after every RETURN frame. A supervisor is returned to the warm set
// after a call (Release) unless the caller evicts it instead (Evict); it is
// closed when it stays idle for longer than IdleTTL, fails a ping, finds
// the warm set for its key already full on Release, or its key is evicted
// with EvictKey.
//
// # Pool topology
//
// One scriptPool is maintained per script key (engine name plus a content
// hash of the source). Calls against the same script share that pool's
// warm set; calls against a different script never reuse a supervisor
// that may still hold the wrong compiled program loaded.
//
// # Concurrency model
//
// Each scriptPool has its own mutex. A supervisor enforces its own
// re-entrancy guard (see internal/sandbox), so the pool only needs to
// track which supervisors are idle versus currently serving a call; it
// never multiplexes more than one caller onto a single supervisor.
//
// The singleflight group serializes concurrent cold-starts for the same
// script key: callers arriving while a cold start is in flight wait for
// it, then take an idle supervisor if one has been released meanwhile and
// otherwise run their own factory call. Each caller still ends up with a
// supervisor of its own.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oriys/novasandbox/internal/metrics"
)

// Supervisor is the subset of internal/sandbox.Supervisor the pool needs.
// Defined here, rather than importing internal/sandbox directly, so the
// pool stays reusable for any interpreter lifecycle and does not depend
// on internal/sandbox.
type Supervisor interface {
	Ping() error
	Close() error
}

// Factory creates a new warm Supervisor for a script key. Implementations
// typically fork a child process, run its lockdown sequence, and compile
// the script before returning.
type Factory func(ctx context.Context) (Supervisor, error)

// PooledSupervisor is a handle to a warm supervisor acquired from the pool.
// It must be returned via Pool.Release when the call completes, or removed
// via Pool.Evict when the supervisor is known to be unhealthy.
type PooledSupervisor struct {
	Supervisor Supervisor
	Key        string
	LastUsed   time.Time
	ColdStart  bool
}

// scriptPool holds all warm supervisors for a single script key.
type scriptPool struct {
	mu      sync.Mutex
	idle    []*PooledSupervisor // LIFO stack, most recently used on top
	busy    int
	maxWarm int
}

// Config holds pool configuration.
type Config struct {
	IdleTTL             time.Duration
	CleanupInterval     time.Duration
	HealthCheckInterval time.Duration
	MaxWarm             int // per script key
}

const (
	DefaultIdleTTL             = 60 * time.Second
	DefaultCleanupInterval     = 10 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultMaxWarm             = 4
)

// Pool is the central resource manager for warm sandbox supervisors.
//
// It is safe for concurrent use by multiple goroutines. The zero value is
// not usable; always construct via New.
type Pool struct {
	factory             Factory
	pools               sync.Map // map[string]*scriptPool, keyed by script key
	group               singleflight.Group
	idleTTL             time.Duration
	cleanupInterval     time.Duration
	healthCheckInterval time.Duration
	maxWarm             int
	totalWarm           atomic.Int32
	totalBusy           atomic.Int32
	ctx                 context.Context
	cancel              context.CancelFunc
}

// New creates a Pool and starts its background cleanup and health-check
// loops. The caller must call Shutdown to stop those loops and release
// supervisor resources when the pool is no longer needed.
func New(factory Factory, cfg Config) *Pool {
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.MaxWarm == 0 {
		cfg.MaxWarm = DefaultMaxWarm
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		factory:             factory,
		idleTTL:             cfg.IdleTTL,
		cleanupInterval:     cfg.CleanupInterval,
		healthCheckInterval: cfg.HealthCheckInterval,
		maxWarm:             cfg.MaxWarm,
		ctx:                 ctx,
		cancel:              cancel,
	}

	go p.cleanupLoop()
	go p.healthCheckLoop()
	return p
}

// TotalWarm returns the number of idle supervisors across all script keys.
func (p *Pool) TotalWarm() int {
	return int(p.totalWarm.Load())
}

// TotalBusy returns the number of supervisors currently serving a call.
func (p *Pool) TotalBusy() int {
	return int(p.totalBusy.Load())
}

func (p *Pool) getOrCreateScriptPool(key string) *scriptPool {
	if sp, ok := p.pools.Load(key); ok {
		return sp.(*scriptPool)
	}
	sp := &scriptPool{maxWarm: p.maxWarm}
	actual, _ := p.pools.LoadOrStore(key, sp)
	return actual.(*scriptPool)
}

func (p *Pool) reportGauges(extension string) {
	metrics.SetPoolStats(extension, p.TotalWarm(), p.TotalBusy())
}
