// pool_acquisition.go contains the warm-supervisor acquisition path: the
// hot path that every call_function invocation traverses to obtain a warm
// supervisor or trigger a cold start.
package pool

import (
	"context"
	"strings"
	"time"

	"github.com/oriys/novasandbox/internal/logging"
)

func extensionOf(key string) string {
	ext, _, ok := strings.Cut(key, "|")
	if !ok {
		return key
	}
	return ext
}

// takeWarmLocked pops the most recently used idle supervisor, or nil if
// none is available. Must be called with sp.mu held.
func takeWarmLocked(sp *scriptPool) *PooledSupervisor {
	if len(sp.idle) == 0 {
		return nil
	}
	last := len(sp.idle) - 1
	ps := sp.idle[last]
	sp.idle = sp.idle[:last]
	return ps
}

// Acquire returns a warm supervisor for key, or creates a new one via the
// pool's factory. Concurrent cold-starts for the same key go through
// singleflight: callers that waited on another caller's factory call never
// take that caller's supervisor; they take an idle one if one has been
// released meanwhile, otherwise they run their own factory call.
func (p *Pool) Acquire(ctx context.Context, key string) (*PooledSupervisor, error) {
	sp := p.getOrCreateScriptPool(key)

	sp.mu.Lock()
	if ps := takeWarmLocked(sp); ps != nil {
		sp.busy++
		sp.mu.Unlock()
		p.totalWarm.Add(-1)
		p.totalBusy.Add(1)
		p.reportGauges(extensionOf(key))
		ps.LastUsed = time.Now()
		ps.ColdStart = false
		logging.Op().Debug("reusing warm supervisor", "key", key)
		return ps, nil
	}
	sp.mu.Unlock()

	// singleflight reports shared=true to the leader as well as to the
	// callers that waited on it, so the leader is told apart by having run
	// the function itself.
	ranFactory := false
	val, err, _ := p.group.Do(key, func() (interface{}, error) {
		ranFactory = true
		return p.factory(ctx)
	})
	if err != nil {
		return nil, err
	}

	var supervisor Supervisor
	if !ranFactory {
		// This caller did not run the factory itself; the leader's
		// supervisor belongs to the leader, not to us, since a single
		// supervisor cannot serve two concurrent callers (see the
		// re-entrancy guard in internal/sandbox). Check the fast path
		// once more in case the leader has already released it, then
		// fall back to our own factory call.
		sp.mu.Lock()
		if ps := takeWarmLocked(sp); ps != nil {
			sp.busy++
			sp.mu.Unlock()
			p.totalWarm.Add(-1)
			p.totalBusy.Add(1)
			p.reportGauges(extensionOf(key))
			ps.LastUsed = time.Now()
			return ps, nil
		}
		sp.mu.Unlock()

		supervisor, err = p.factory(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		supervisor = val.(Supervisor)
	}
	ps := &PooledSupervisor{
		Supervisor: supervisor,
		Key:        key,
		LastUsed:   time.Now(),
		ColdStart:  true,
	}

	sp.mu.Lock()
	sp.busy++
	sp.mu.Unlock()
	p.totalBusy.Add(1)
	p.reportGauges(extensionOf(key))

	logging.Op().Info("cold-started supervisor", "key", key)
	return ps, nil
}
