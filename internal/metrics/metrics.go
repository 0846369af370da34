// Package metrics collects and exposes sandbox runtime observability data.
//
// # Design rationale
//
// Two metric stores coexist, mirroring the teacher's dashboard/Prometheus
// split:
//
//  1. The in-process Metrics struct (atomic counters) for a lightweight
//     Snapshot() a caller can inspect without a scrape loop.
//  2. A Prometheus registry (prometheus.go) for external monitoring.
//
// # Concurrency
//
// RecordCall is called by hostapi.Session.Call on every call_function
// invocation and must stay cheap: atomic increments only, no
// locks on the hot path.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics collects sandbox-wide counters.
type Metrics struct {
	TotalCalls       atomic.Int64
	SuccessCalls     atomic.Int64
	FailedCalls      atomic.Int64
	TimeoutCalls     atomic.Int64
	ReentrancyRejects atomic.Int64
	CallbackFrames   atomic.Int64
	ChildDeaths      atomic.Int64

	TotalLatencyMs atomic.Int64

	startTime time.Time
}

var global = &Metrics{startTime: time.Now()}

// Global returns the global metrics instance.
func Global() *Metrics { return global }

// StartTime returns when the metrics system was initialized.
func StartTime() time.Time { return global.startTime }

// RecordCall records the outcome of a compile_script or call_function
// invocation, in-process or sandboxed, and mirrors it into Prometheus.
func (m *Metrics) RecordCall(engine, operation string, durationMs int64, timeout, reentrant, success bool) {
	m.TotalCalls.Add(1)
	if success {
		m.SuccessCalls.Add(1)
	} else {
		m.FailedCalls.Add(1)
	}
	if timeout {
		m.TimeoutCalls.Add(1)
	}
	if reentrant {
		m.ReentrancyRejects.Add(1)
	}
	m.TotalLatencyMs.Add(durationMs)

	recordPrometheusCall(engine, operation, durationMs, timeout, reentrant, success)
}

// RecordCallbackFrame counts one CALLBACK frame exchanged between parent
// and child (used by the S5 testable property: "exactly one CALLBACK
// frame was exchanged").
func (m *Metrics) RecordCallbackFrame() {
	m.CallbackFrames.Add(1)
	recordPrometheusCallbackFrame()
}

// RecordChildDeath counts a child process that exited unexpectedly.
func (m *Metrics) RecordChildDeath() {
	m.ChildDeaths.Add(1)
	recordPrometheusChildDeath()
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"total_calls":        m.TotalCalls.Load(),
		"success_calls":      m.SuccessCalls.Load(),
		"failed_calls":       m.FailedCalls.Load(),
		"timeout_calls":      m.TimeoutCalls.Load(),
		"reentrancy_rejects": m.ReentrancyRejects.Load(),
		"callback_frames":    m.CallbackFrames.Load(),
		"child_deaths":       m.ChildDeaths.Load(),
		"uptime_seconds":     int64(time.Since(m.startTime).Seconds()),
	}
}
