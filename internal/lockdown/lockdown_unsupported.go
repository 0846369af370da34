//go:build !(linux && amd64)

package lockdown

import (
	"fmt"
	"runtime"
)

// Apply reports failure on every platform other than linux/amd64: the
// seccomp filter construction in this package assumes the x86-64
// syscall table and the classic-BPF/PR_SET_SECCOMP interface Linux
// exposes. A supervisor built here should surface this as
// engine.LockdownError rather than silently running guest code
// unsandboxed.
func Apply(cfg Config) error {
	return fmt.Errorf("lockdown: unsupported on %s/%s", runtime.GOOS, runtime.GOARCH)
}
