// Package sandbox implements the cross-process supervisor: it forks a
// child that owns the real engine adapter, locks the child down with
// kernel-level syscall filtering and a data-segment limit, and drives a
// framed request/response protocol over a pair of pipes (spec §4.4–§4.6).
package sandbox

import (
	"time"

	"github.com/oriys/novasandbox/internal/wire"
)

// Config bounds a supervisor's resource usage.
type Config struct {
	// MemoryCapBytes becomes RLIMIT_DATA = MemoryCapBytes + a small pad,
	// applied in the child before lockdown.
	MemoryCapBytes int64
	// CallDeadline bounds every parent-initiated command, including any
	// callbacks it triggers (spec §4.4: "the deadline is shared across
	// the entire command").
	CallDeadline time.Duration
	// Limits bounds wire decoding of values the child sends back.
	Limits wire.Limits
	// ExecutablePath overrides the binary re-exec'd as the sandbox child.
	// Empty means os.Executable() (the running process re-execs itself,
	// relying on its own --sandbox-child dispatch). Tests that drive a
	// real forked child from a `go test` binary, which has no such
	// dispatch in its own main, set this to a separately built
	// cmd/novasandbox binary.
	ExecutablePath string
}

// DefaultConfig mirrors the spec §6 resource-limit defaults.
func DefaultConfig() Config {
	return Config{
		MemoryCapBytes: 64 * 1024 * 1024,
		CallDeadline:   5 * time.Second,
		Limits:         wire.DefaultLimits(),
	}
}
