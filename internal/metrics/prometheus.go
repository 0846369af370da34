package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// PrometheusMetrics wraps prometheus collectors for the sandbox runtime.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	callsTotal          *prometheus.CounterVec
	callDuration        *prometheus.HistogramVec
	callbackFramesTotal prometheus.Counter
	childDeathsTotal    prometheus.Counter

	poolWarm *prometheus.GaugeVec
	poolBusy *prometheus.GaugeVec

	circuitBreakerState      *prometheus.GaugeVec
	circuitBreakerTripsTotal *prometheus.CounterVec
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string) {
	if namespace == "" {
		namespace = "novasandbox"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total compile_script/call_function invocations",
			},
			[]string{"engine", "operation", "status"},
		),

		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_milliseconds",
				Help:      "Duration of compile_script/call_function invocations in milliseconds",
				Buckets:   defaultBuckets,
			},
			[]string{"engine", "operation"},
		),

		callbackFramesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callback_frames_total",
				Help:      "Total CALLBACK frames exchanged between a supervisor and its child",
			},
		),

		childDeathsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "child_deaths_total",
				Help:      "Total sandboxed child processes observed to exit unexpectedly",
			},
		),

		poolWarm: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_warm_supervisors",
				Help:      "Idle warm supervisors held by the pool, by engine extension",
			},
			[]string{"extension"},
		),

		poolBusy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_busy_supervisors",
				Help:      "Supervisors currently serving a call, by engine extension",
			},
			[]string{"extension"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"script"},
		),

		circuitBreakerTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total circuit breaker state transitions",
			},
			[]string{"script", "to_state"},
		),
	}

	registry.MustRegister(
		pm.callsTotal,
		pm.callDuration,
		pm.callbackFramesTotal,
		pm.childDeathsTotal,
		pm.poolWarm,
		pm.poolBusy,
		pm.circuitBreakerState,
		pm.circuitBreakerTripsTotal,
	)

	promMetrics = pm
}

func recordPrometheusCall(engine, operation string, durationMs int64, timeout, reentrant, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	switch {
	case reentrant:
		status = "reentrant"
	case timeout:
		status = "timeout"
	case !success:
		status = "failed"
	}
	promMetrics.callsTotal.WithLabelValues(engine, operation, status).Inc()
	promMetrics.callDuration.WithLabelValues(engine, operation).Observe(float64(durationMs))
}

func recordPrometheusCallbackFrame() {
	if promMetrics == nil {
		return
	}
	promMetrics.callbackFramesTotal.Inc()
}

func recordPrometheusChildDeath() {
	if promMetrics == nil {
		return
	}
	promMetrics.childDeathsTotal.Inc()
}

// SetPoolStats sets the warm/busy supervisor gauges for an engine extension.
func SetPoolStats(extension string, warm, busy int) {
	if promMetrics == nil {
		return
	}
	promMetrics.poolWarm.WithLabelValues(extension).Set(float64(warm))
	promMetrics.poolBusy.WithLabelValues(extension).Set(float64(busy))
}

// SetCircuitBreakerState sets the circuit breaker state gauge for a script.
func SetCircuitBreakerState(script string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerState.WithLabelValues(script).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker state transition.
func RecordCircuitBreakerTrip(script, toState string) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerTripsTotal.WithLabelValues(script, toState).Inc()
}

// PrometheusHandler returns an HTTP handler for Prometheus scraping. Useful
// for embedding hosts that already run an HTTP server; the sandbox itself
// does not listen on a port.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the registry for custom collectors.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
