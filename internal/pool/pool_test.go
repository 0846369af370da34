package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSupervisor struct {
	id     int
	closed atomic.Bool
	pingFn func() error
}

func (f *fakeSupervisor) Ping() error {
	if f.pingFn != nil {
		return f.pingFn()
	}
	return nil
}

func (f *fakeSupervisor) Close() error {
	f.closed.Store(true)
	return nil
}

func newCountingFactory() (Factory, *atomic.Int32) {
	var n atomic.Int32
	return func(ctx context.Context) (Supervisor, error) {
		id := int(n.Add(1))
		return &fakeSupervisor{id: id}, nil
	}, &n
}

func TestAcquireReleaseReusesWarmSupervisor(t *testing.T) {
	factory, created := newCountingFactory()
	p := New(factory, Config{MaxWarm: 2})
	defer p.Shutdown()

	ps, err := p.Acquire(context.Background(), "js|abc")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ps.ColdStart {
		t.Fatal("expected first acquire to be a cold start")
	}
	p.Release(ps)

	ps2, err := p.Acquire(context.Background(), "js|abc")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ps2.ColdStart {
		t.Fatal("expected second acquire to reuse the warm supervisor")
	}
	if created.Load() != 1 {
		t.Fatalf("expected exactly one supervisor created, got %d", created.Load())
	}
}

func TestAcquireDifferentKeysDoNotShare(t *testing.T) {
	factory, created := newCountingFactory()
	p := New(factory, Config{MaxWarm: 2})
	defer p.Shutdown()

	if _, err := p.Acquire(context.Background(), "js|abc"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := p.Acquire(context.Background(), "lua|def"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if created.Load() != 2 {
		t.Fatalf("expected two supervisors for two distinct keys, got %d", created.Load())
	}
}

func TestReleaseOverflowClosesSupervisor(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, Config{MaxWarm: 1})
	defer p.Shutdown()

	ps1, _ := p.Acquire(context.Background(), "js|abc")
	ps2, _ := p.Acquire(context.Background(), "js|abc")

	p.Release(ps1)
	p.Release(ps2) // pool already has one idle slot filled; this one should be closed

	sup2 := ps2.Supervisor.(*fakeSupervisor)
	if !sup2.closed.Load() {
		t.Fatal("expected overflow supervisor to be closed, not retained")
	}
	if p.TotalWarm() != 1 {
		t.Fatalf("TotalWarm = %d, want 1", p.TotalWarm())
	}
}

func TestEvictClosesWithoutReturningToIdle(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, Config{MaxWarm: 2})
	defer p.Shutdown()

	ps, _ := p.Acquire(context.Background(), "js|abc")
	p.Evict(ps)

	// Give the async close a moment to run.
	deadline := time.Now().Add(time.Second)
	sup := ps.Supervisor.(*fakeSupervisor)
	for time.Now().Before(deadline) && !sup.closed.Load() {
		time.Sleep(time.Millisecond)
	}
	if !sup.closed.Load() {
		t.Fatal("expected evicted supervisor to be closed")
	}
	if p.TotalWarm() != 0 {
		t.Fatalf("TotalWarm = %d, want 0", p.TotalWarm())
	}
}

func TestEvictKeyClosesAllIdleSupervisors(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, Config{MaxWarm: 4})
	defer p.Shutdown()

	ps1, _ := p.Acquire(context.Background(), "js|abc")
	ps2, _ := p.Acquire(context.Background(), "js|abc")
	p.Release(ps1)
	p.Release(ps2)

	p.EvictKey("js|abc")

	if !ps1.Supervisor.(*fakeSupervisor).closed.Load() {
		t.Fatal("expected ps1 to be closed after EvictKey")
	}
	if !ps2.Supervisor.(*fakeSupervisor).closed.Load() {
		t.Fatal("expected ps2 to be closed after EvictKey")
	}
	if p.TotalWarm() != 0 {
		t.Fatalf("TotalWarm = %d, want 0", p.TotalWarm())
	}
}

func TestHealthCheckEvictsUnresponsiveSupervisor(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, Config{MaxWarm: 2, HealthCheckInterval: time.Hour})
	defer p.Shutdown()

	ps, _ := p.Acquire(context.Background(), "js|abc")
	ps.Supervisor.(*fakeSupervisor).pingFn = func() error { return errors.New("dead") }
	p.Release(ps)

	p.healthCheck()

	if !ps.Supervisor.(*fakeSupervisor).closed.Load() {
		t.Fatal("expected unresponsive supervisor to be closed by health check")
	}
	if p.TotalWarm() != 0 {
		t.Fatalf("TotalWarm = %d, want 0 after evicting unresponsive supervisor", p.TotalWarm())
	}
}

func TestCleanupExpiredEvictsIdleSupervisors(t *testing.T) {
	factory, _ := newCountingFactory()
	p := New(factory, Config{MaxWarm: 2, IdleTTL: time.Millisecond, CleanupInterval: time.Hour})
	defer p.Shutdown()

	ps, _ := p.Acquire(context.Background(), "js|abc")
	p.Release(ps)

	time.Sleep(5 * time.Millisecond)
	p.cleanupExpired()

	deadline := time.Now().Add(time.Second)
	sup := ps.Supervisor.(*fakeSupervisor)
	for time.Now().Before(deadline) && !sup.closed.Load() {
		time.Sleep(time.Millisecond)
	}
	if !sup.closed.Load() {
		t.Fatal("expected idle-expired supervisor to be closed")
	}
}

func TestExtensionOfParsesKeyPrefix(t *testing.T) {
	if got := extensionOf("lua|deadbeef"); got != "lua" {
		t.Errorf("extensionOf = %q, want lua", got)
	}
	if got := extensionOf("js"); got != "js" {
		t.Errorf("extensionOf = %q, want js (no separator)", got)
	}
}
