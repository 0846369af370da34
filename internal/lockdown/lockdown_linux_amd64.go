//go:build linux && amd64

package lockdown

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allowedSyscalls is the fixed allow-list from spec §4.6: the most
// permissive filter that still blocks every file and network syscall.
var allowedSyscalls = []uintptr{
	unix.SYS_READ,
	unix.SYS_READV,
	unix.SYS_WRITE,
	unix.SYS_WRITEV,
	unix.SYS_GETTIMEOFDAY,
	unix.SYS_TIME,
	unix.SYS_BRK,
	unix.SYS_MMAP,
	unix.SYS_MUNMAP,
	unix.SYS_FUTEX,
	unix.SYS_RT_SIGPROCMASK,
	unix.SYS_EXIT,
	unix.SYS_EXIT_GROUP,
}

// Apply runs the full lockdown sequence: crash-signal handlers, the
// RLIMIT_DATA ceiling, PR_SET_NO_NEW_PRIVS, then the seccomp filter. It
// must run exactly once, after initialize and before the child reads its
// first command.
func Apply(cfg Config) error {
	installCrashHandlers()

	if err := setDataLimit(cfg.MemoryCapBytes + Pad); err != nil {
		return fmt.Errorf("lockdown: rlimit_data: %w", err)
	}
	if err := noNewPrivs(); err != nil {
		return fmt.Errorf("lockdown: no_new_privs: %w", err)
	}
	if err := installSeccompFilter(); err != nil {
		return fmt.Errorf("lockdown: seccomp: %w", err)
	}
	return nil
}

func setDataLimit(limit int64) error {
	if limit < 0 {
		return fmt.Errorf("negative rlimit %d", limit)
	}
	rl := unix.Rlimit{Cur: uint64(limit), Max: uint64(limit)}
	return unix.Setrlimit(unix.RLIMIT_DATA, &rl)
}

func noNewPrivs() error {
	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}

// installCrashHandlers arranges for SIGSEGV/SIGABRT to print a short
// diagnostic and exit with the signal number, so corrupted guest state
// produces a predictable exit rather than silent death or a hang inside
// a signal handler that seccomp would otherwise kill outright.
func installCrashHandlers() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGSEGV, syscall.SIGABRT)
	go func() {
		sig := <-ch
		done := make(chan struct{})
		go func() {
			fmt.Fprintf(os.Stderr, "sandbox child: fatal signal %v\n", sig)
			close(done)
		}()
		// The stack that raised sig may itself be corrupt; never let the
		// diagnostic write block the exit indefinitely.
		select {
		case <-done:
		case <-time.After(crashGrace):
		}
		os.Exit(int(sig.(syscall.Signal)))
	}()
}

// installSeccompFilter builds a classic-BPF program over seccomp_data
// (arch check, then syscall number) and installs it via
// PR_SET_SECCOMP / SECCOMP_MODE_FILTER. Every syscall not on the
// allow-list is denied with EPERM rather than killing the process, so a
// misbehaving adapter observes ordinary failures instead of vanishing.
func installSeccompFilter() error {
	prog := buildFilter(allowedSyscalls)
	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	_, _, errno := unix.Syscall(unix.SYS_PRCTL, unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&fprog)))
	if errno != 0 {
		return errno
	}
	return nil
}

const (
	seccompDataArchOffset = 4
	seccompDataNROffset   = 0
)

func buildFilter(allow []uintptr) []unix.SockFilter {
	prog := []unix.SockFilter{
		// Load arch field; kill the process outright on a foreign
		// architecture rather than trying to interpret its syscall
		// numbers under this table.
		bpfStmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataArchOffset),
		bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(expectedAuditArch), 1, 0),
		bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetKillProcess),
		// Load syscall number.
		bpfStmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataNROffset),
	}
	for _, nr := range allow {
		prog = append(prog, bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1))
		prog = append(prog, bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetAllow))
	}
	prog = append(prog, bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetErrnoEPERM))
	return prog
}

func bpfStmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: 0, Jf: 0, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

const (
	seccompRetKillProcess = 0x80000000
	seccompRetErrnoEPERM  = 0x00050000 | uint32(unix.EPERM)
	seccompRetAllow       = 0x7fff0000

	expectedAuditArch = unix.AUDIT_ARCH_X86_64
)
