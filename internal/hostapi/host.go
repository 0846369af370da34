// Package hostapi is the public façade a caller programs against: pick an
// engine by file extension, optionally run it inside a locked-down
// sandbox, bind host constants and callbacks, then compile and call guest
// functions. It wires together internal/registry, internal/sandbox,
// internal/pool, internal/circuitbreaker, internal/metrics, and
// internal/observability so none of those packages need to know about
// each other directly.
package hostapi

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/novasandbox/internal/circuitbreaker"
	"github.com/oriys/novasandbox/internal/config"
	"github.com/oriys/novasandbox/internal/metrics"
	"github.com/oriys/novasandbox/internal/observability"
	"github.com/oriys/novasandbox/internal/pool"
)

// Host owns every long-lived resource a session borrows: the warm
// supervisor pool and the per-script circuit breaker registry.
type Host struct {
	cfg      *config.Config
	breakers *circuitbreaker.Registry
	pool     *pool.Pool
}

// New constructs a Host from cfg, initializing the Prometheus and
// OpenTelemetry subsystems cfg.Observability names. Pass nil to use
// config.DefaultConfig().
func New(ctx context.Context, cfg *config.Config) (*Host, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if cfg.Observability.Metrics.Enabled {
		metrics.InitPrometheus(cfg.Observability.Metrics.Namespace)
	}
	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    "otlp-http",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("hostapi: init tracing: %w", err)
	}

	h := &Host{
		cfg:      cfg,
		breakers: circuitbreaker.NewRegistry(),
	}
	h.pool = pool.New(h.coldStart, pool.Config{
		IdleTTL:         cfg.Pool.IdleTTL,
		CleanupInterval: cfg.Pool.CleanupInterval,
		MaxWarm:         cfg.Pool.MaxWarm,
	})
	return h, nil
}

// Shutdown stops the warm pool's background loops, closes every idle
// supervisor, and flushes tracing.
func (h *Host) Shutdown(ctx context.Context) {
	h.pool.Shutdown()
	observability.Shutdown(ctx)
}

// Stats exposes pool occupancy and circuit breaker state for a status
// endpoint or CLI diagnostic command.
func (h *Host) Stats() map[string]any {
	return map[string]any{
		"pool":            h.pool.Stats(),
		"circuitBreakers": h.breakers.Snapshot(),
		"metrics":         metrics.Global().Snapshot(),
	}
}

func (h *Host) breakerFor(scriptKey string) *circuitbreaker.Breaker {
	cb := h.cfg.CircuitBreaker
	if !cb.Enabled {
		return nil
	}
	return h.breakers.Get(scriptKey, circuitbreaker.Config{
		ErrorPct:       cb.FailureThreshold * 100,
		WindowDuration: cb.WindowDuration,
		OpenDuration:   cb.OpenDuration,
		HalfOpenProbes: cb.HalfOpenMaxProbes,
	})
}

// ErrBreakerOpen is returned by Session.Call when the circuit breaker for
// that script has tripped and is not currently allowing probes through.
var ErrBreakerOpen = fmt.Errorf("hostapi: circuit breaker open")

func clampDeadline(d time.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
