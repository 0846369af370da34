// Package config holds the resource-limit and daemon configuration shared
// by the sandbox supervisor, the wire codec, and the warm-supervisor pool.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ResourceLimits bounds what a single sandboxed call may consume (spec §6).
type ResourceLimits struct {
	CallDeadline    time.Duration `json:"call_deadline" yaml:"call_deadline"`         // per-call wall-clock deadline
	ChildMemoryCap  int64         `json:"child_memory_cap" yaml:"child_memory_cap"`   // bytes; feeds RLIMIT_DATA
	MaxStringBytes  int           `json:"max_string_bytes" yaml:"max_string_bytes"`   // wire string cap, default 4 KiB
	MaxArrayElems   int           `json:"max_array_elems" yaml:"max_array_elems"`     // cumulative wire array cap, default 1024
	MaxArrayDepth   int           `json:"max_array_depth" yaml:"max_array_depth"`     // wire array nesting cap
}

// PoolConfig holds warm-supervisor pool settings (internal/pool).
type PoolConfig struct {
	IdleTTL         time.Duration `json:"idle_ttl" yaml:"idle_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	MaxWarm         int           `json:"max_warm" yaml:"max_warm"` // per script key
}

// CircuitBreakerConfig holds per-script breaker tuning (internal/circuitbreaker).
type CircuitBreakerConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	FailureThreshold  float64       `json:"failure_threshold" yaml:"failure_threshold"`
	WindowDuration    time.Duration `json:"window_duration" yaml:"window_duration"`
	OpenDuration      time.Duration `json:"open_duration" yaml:"open_duration"`
	HalfOpenMaxProbes int           `json:"half_open_max_probes" yaml:"half_open_max_probes"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// ObservabilityConfig groups the ambient-stack settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// Config is the central configuration struct.
type Config struct {
	Limits         ResourceLimits       `json:"limits" yaml:"limits"`
	Pool           PoolConfig           `json:"pool" yaml:"pool"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Observability  ObservabilityConfig  `json:"observability" yaml:"observability"`
	// SandboxChildBinary overrides the executable re-exec'd as a sandbox
	// child. Empty means the running process re-execs itself. Set this
	// when the process driving sandboxed sessions isn't cmd/novasandbox
	// itself (a `go test` binary has no --sandbox-child dispatch in its
	// own main).
	SandboxChildBinary string `json:"sandbox_child_binary" yaml:"sandbox_child_binary"`
}

// DefaultConfig returns a Config with the defaults named in spec §6.
func DefaultConfig() *Config {
	return &Config{
		Limits: ResourceLimits{
			CallDeadline:   5 * time.Second,
			ChildMemoryCap: 64 << 20, // 64 MiB
			MaxStringBytes: 4096,
			MaxArrayElems:  1024,
			MaxArrayDepth:  32,
		},
		Pool: PoolConfig{
			IdleTTL:         60 * time.Second,
			CleanupInterval: 10 * time.Second,
			MaxWarm:         4,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:           true,
			FailureThreshold:  0.5,
			WindowDuration:    30 * time.Second,
			OpenDuration:      10 * time.Second,
			HalfOpenMaxProbes: 1,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "localhost:4318",
				ServiceName: "novasandbox",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "novasandbox",
			},
			Logging: LoggingConfig{
				Level: "info",
			},
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file, chosen by
// extension, layering it over DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NOVASANDBOX_CALL_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Limits.CallDeadline = d
		}
	}
	if v := os.Getenv("NOVASANDBOX_CHILD_MEMORY_CAP"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.ChildMemoryCap = n
		}
	}
	if v := os.Getenv("NOVASANDBOX_MAX_STRING_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxStringBytes = n
		}
	}
	if v := os.Getenv("NOVASANDBOX_MAX_ARRAY_ELEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxArrayElems = n
		}
	}
	if v := os.Getenv("NOVASANDBOX_POOL_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pool.IdleTTL = d
		}
	}
	if v := os.Getenv("NOVASANDBOX_POOL_MAX_WARM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxWarm = n
		}
	}
	if v := os.Getenv("NOVASANDBOX_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("NOVASANDBOX_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("NOVASANDBOX_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("NOVASANDBOX_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("NOVASANDBOX_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("NOVASANDBOX_CHILD_BINARY"); v != "" {
		cfg.SandboxChildBinary = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
