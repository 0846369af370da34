package pool

import (
	"time"

	"github.com/oriys/novasandbox/internal/logging"
)

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.cleanupExpired()
		}
	}
}

// cleanupExpired scans all script pools and closes idle supervisors that
// have exceeded IdleTTL.
func (p *Pool) cleanupExpired() {
	type expired struct {
		key string
		sup Supervisor
	}
	var toClose []expired
	now := time.Now()

	p.pools.Range(func(key, value interface{}) bool {
		sp := value.(*scriptPool)

		sp.mu.Lock()
		kept := sp.idle[:0]
		for _, ps := range sp.idle {
			if now.Sub(ps.LastUsed) > p.idleTTL {
				toClose = append(toClose, expired{key: key.(string), sup: ps.Supervisor})
				continue
			}
			kept = append(kept, ps)
		}
		evicted := len(sp.idle) - len(kept)
		sp.idle = kept
		sp.mu.Unlock()
		if evicted > 0 {
			p.totalWarm.Add(int32(-evicted))
		}
		return true
	})

	for _, e := range toClose {
		logging.Op().Debug("evicting idle supervisor", "key", e.key)
		go func(sup Supervisor, key string) {
			defer func() {
				if r := recover(); r != nil {
					logging.Op().Error("recovered panic in async supervisor cleanup", "panic", r)
				}
			}()
			sup.Close()
			p.reportGauges(extensionOf(key))
		}(e.sup, e.key)
	}
}

func (p *Pool) healthCheckLoop() {
	ticker := time.NewTicker(p.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.healthCheck()
		}
	}
}

// healthCheck pings idle supervisors and evicts unresponsive ones. Busy
// supervisors are never pinged; the call already in flight is the only
// signal needed for those.
func (p *Pool) healthCheck() {
	type target struct {
		key string
		ps  *PooledSupervisor
	}
	var targets []target

	p.pools.Range(func(key, value interface{}) bool {
		sp := value.(*scriptPool)
		sp.mu.Lock()
		for _, ps := range sp.idle {
			targets = append(targets, target{key: key.(string), ps: ps})
		}
		sp.mu.Unlock()
		return true
	})

	for _, t := range targets {
		if err := t.ps.Supervisor.Ping(); err != nil {
			logging.Op().Warn("health check failed, evicting supervisor", "key", t.key, "error", err)
			p.removeFromIdle(t.key, t.ps)
			t.ps.Supervisor.Close()
		}
	}
}

func (p *Pool) removeFromIdle(key string, target *PooledSupervisor) {
	sp := p.getOrCreateScriptPool(key)
	sp.mu.Lock()
	kept := sp.idle[:0]
	removed := false
	for _, ps := range sp.idle {
		if ps == target {
			removed = true
			continue
		}
		kept = append(kept, ps)
	}
	sp.idle = kept
	sp.mu.Unlock()
	if removed {
		p.totalWarm.Add(-1)
		p.reportGauges(extensionOf(key))
	}
}
