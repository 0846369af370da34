// Package lockdown installs the child-side privilege reduction
// described in spec §4.6: signal handlers for the crash signals,
// RLIMIT_DATA, and a classic-BPF seccomp filter restricting the child to
// a small syscall allow-list, with the ability to regain privileges
// dropped first.
package lockdown

import "time"

// Config carries the parameters lockdown needs once the adapter has
// finished loading everything it needs from disk — no syscalls outside
// the allow-list succeed afterward, including open.
type Config struct {
	// MemoryCapBytes is the engine's configured heap budget; lockdown
	// raises RLIMIT_DATA to MemoryCapBytes plus a fixed pad.
	MemoryCapBytes int64
}

// Pad added to MemoryCapBytes before RLIMIT_DATA is set, giving the
// adapter's own bookkeeping (stack frames inside the data segment on
// some libcs, small transient allocations) headroom beyond the arena.
const Pad = 4 * 1024 * 1024

// crashGrace bounds how long the diagnostic signal handler spends
// writing its stack sketch before calling the underlying exit; the
// handler runs on a possibly-corrupted stack and must not block.
const crashGrace = 50 * time.Millisecond
