package pool

import (
	"sync"
	"time"

	"github.com/oriys/novasandbox/internal/logging"
)

// Release returns ps to the warm set after a successful call. Must NOT be
// called more than once per Acquire; the caller's defer should pair with
// exactly one Acquire.
func (p *Pool) Release(ps *PooledSupervisor) {
	sp := p.getOrCreateScriptPool(ps.Key)

	sp.mu.Lock()
	sp.busy--
	if sp.busy < 0 {
		sp.busy = 0
	}
	overflow := len(sp.idle) >= sp.maxWarm
	if !overflow {
		ps.LastUsed = time.Now()
		sp.idle = append(sp.idle, ps)
	}
	sp.mu.Unlock()

	p.totalBusy.Add(-1)
	if overflow {
		ps.Supervisor.Close()
	} else {
		p.totalWarm.Add(1)
	}
	p.reportGauges(extensionOf(ps.Key))
}

// Evict removes ps from the pool and closes it asynchronously, without
// returning it to the warm set. Call this instead of Release when the
// supervisor is known to be unhealthy (e.g. the child died mid-call).
func (p *Pool) Evict(ps *PooledSupervisor) {
	sp := p.getOrCreateScriptPool(ps.Key)

	sp.mu.Lock()
	sp.busy--
	if sp.busy < 0 {
		sp.busy = 0
	}
	sp.mu.Unlock()

	p.totalBusy.Add(-1)
	p.reportGauges(extensionOf(ps.Key))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Op().Error("recovered panic in async supervisor eviction", "panic", r)
			}
		}()
		ps.Supervisor.Close()
	}()
}

// EvictKey closes every idle supervisor registered under key and drops the
// key's pool; a supervisor busy at that moment is not closed, and a later
// Release puts it into a fresh pool for key. Call when a script is recompiled under a new identity, so stale
// warm supervisors for the old content hash are not handed out again.
func (p *Pool) EvictKey(key string) {
	val, ok := p.pools.Load(key)
	if !ok {
		return
	}
	sp := val.(*scriptPool)

	sp.mu.Lock()
	idle := sp.idle
	sp.idle = nil
	sp.mu.Unlock()
	p.pools.Delete(key)
	if len(idle) > 0 {
		p.totalWarm.Add(int32(-len(idle)))
	}
	p.reportGauges(extensionOf(key))

	var wg sync.WaitGroup
	for _, ps := range idle {
		wg.Add(1)
		go func(ps *PooledSupervisor) {
			defer wg.Done()
			ps.Supervisor.Close()
		}(ps)
	}
	wg.Wait()
}

// Stats returns a point-in-time view of pool occupancy.
func (p *Pool) Stats() map[string]interface{} {
	perKey := make(map[string]interface{})
	p.pools.Range(func(key, value interface{}) bool {
		sp := value.(*scriptPool)
		sp.mu.Lock()
		perKey[key.(string)] = map[string]int{
			"idle": len(sp.idle),
			"busy": sp.busy,
		}
		sp.mu.Unlock()
		return true
	})
	return map[string]interface{}{
		"total_warm": p.TotalWarm(),
		"total_busy": p.TotalBusy(),
		"idle_ttl":   p.idleTTL.String(),
		"scripts":    perKey,
	}
}

// Shutdown stops the background loops and closes every idle supervisor
// within a 10s grace period. Supervisors busy at that moment are not
// closed.
func (p *Pool) Shutdown() {
	p.cancel()

	var toClose []Supervisor
	p.pools.Range(func(key, value interface{}) bool {
		sp := value.(*scriptPool)
		sp.mu.Lock()
		for _, ps := range sp.idle {
			toClose = append(toClose, ps.Supervisor)
		}
		sp.idle = nil
		sp.mu.Unlock()
		return true
	})
	p.totalWarm.Store(0)

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, sup := range toClose {
			wg.Add(1)
			go func(sup Supervisor) {
				defer wg.Done()
				sup.Close()
			}(sup)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logging.Op().Warn("pool shutdown timed out after 10s")
	}
}
