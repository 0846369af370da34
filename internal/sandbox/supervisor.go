package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oriys/novasandbox/internal/callback"
	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/logging"
	"github.com/oriys/novasandbox/internal/wire"
)

// ChildEnvExtension names the environment variable the re-exec'd child
// reads to pick its engine adapter; ChildEnvMemoryCap carries the
// configured memory cap across exec.
const (
	ChildEnvExtension = "NOVASANDBOX_CHILD_EXTENSION"
	ChildEnvMemoryCap = "NOVASANDBOX_CHILD_MEMORY_CAP"
)

// ChildModeFlag is the hidden CLI flag cmd/novasandbox checks to decide
// whether it is being invoked as a sandbox child rather than as the
// normal test harness.
const ChildModeFlag = "--sandbox-child"

// Supervisor implements engine.Engine by forking a locked-down child
// that owns the real adapter, and by satisfying pool.Supervisor so it
// can be kept warm across calls (Ping/Close).
type Supervisor struct {
	mu sync.Mutex

	extension string
	cfg       Config
	parent    *callback.ParentTable

	cmd    *exec.Cmd
	cmdW   *os.File
	respR  *os.File
	writer *wire.Writer
	reader *wire.Reader

	logger engine.Logger

	// inCall is tested and set with atomic ops, not s.mu, so that a
	// callback-driven re-entrant call can observe it before blocking on
	// s.mu.Lock() — s.mu is already held by the outer CompileScript or
	// CallFunction that is in the middle of servicing the callback that
	// triggered the re-entry.
	inCall   int32
	lastErr  string
	timedOut bool
}

// beginCommand enforces the re-entrancy rule (spec §4.4) before touching
// s.mu or the pipe: a COMPILE_SCRIPT or CALL_FUNCTION issued while the
// goroutine already servicing a callback tries to re-enter the same
// supervisor fails immediately instead of deadlocking on s.mu.
func (s *Supervisor) beginCommand() error {
	if !atomic.CompareAndSwapInt32(&s.inCall, 0, 1) {
		return &engine.ReentrancyError{}
	}
	return nil
}

func (s *Supervisor) endCommand() {
	atomic.StoreInt32(&s.inCall, 0)
}

// New constructs a supervisor for the given extension key (".js", ".py",
// ...). The child is not forked until Initialize is called, matching the
// engine.Engine contract's two-phase construct/initialize lifecycle.
func New(extension string, cfg Config, parent *callback.ParentTable) *Supervisor {
	return &Supervisor{extension: extension, cfg: cfg, parent: parent}
}

func (s *Supervisor) Name() string { return "sandbox(" + s.extension + ")" }

// SetLogger installs the sink LOG frames from the child are forwarded to.
// When never called, LOG frames go to internal/logging's operational
// logger, logging.Op().
func (s *Supervisor) SetLogger(logger engine.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// Initialize forks the child, wires up the pipes, and blocks for the
// child's post-lockdown readiness frame.
func (s *Supervisor) Initialize(ctx context.Context, memoryCapBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.MemoryCapBytes = memoryCapBytes

	exe := s.cfg.ExecutablePath
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return fmt.Errorf("sandbox: resolve executable: %w", err)
		}
	}

	cmdR, cmdW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("sandbox: command pipe: %w", err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		cmdR.Close()
		cmdW.Close()
		return fmt.Errorf("sandbox: response pipe: %w", err)
	}

	cmd := exec.Command(exe, ChildModeFlag)
	cmd.ExtraFiles = []*os.File{cmdR, respW}
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%s", ChildEnvExtension, s.extension),
		fmt.Sprintf("%s=%d", ChildEnvMemoryCap, memoryCapBytes),
	)
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cmdR.Close()
		cmdW.Close()
		respR.Close()
		respW.Close()
		return fmt.Errorf("sandbox: start child: %w", err)
	}

	// The parent's copies of the child's ends are no longer needed once
	// the child has its own duplicated descriptors.
	cmdR.Close()
	respW.Close()

	s.cmd = cmd
	s.cmdW = cmdW
	s.respR = respR
	s.writer = wire.NewWriter(cmdW)
	s.reader = wire.NewReader(respR, s.cfg.Limits)

	s.setDeadlineLocked(s.cfg.CallDeadline)
	frame, err := s.reader.ReadChildFrame()
	if err != nil {
		s.killLocked()
		return &engine.LockdownError{Reason: err.Error()}
	}
	switch frame {
	case wire.Return:
		return nil
	case wire.Error:
		msg, _ := s.readString()
		s.lastErr = msg
		s.killLocked()
		return &engine.LockdownError{Reason: msg}
	default:
		s.killLocked()
		return &engine.LockdownError{Reason: fmt.Sprintf("unexpected frame %v during startup", frame)}
	}
}

func (s *Supervisor) readString() (string, error) {
	return s.reader.ReadString()
}

func (s *Supervisor) setDeadlineLocked(d time.Duration) {
	if d <= 0 {
		s.reader.SetDeadline(time.Time{})
		return
	}
	s.reader.SetDeadline(time.Now().Add(d))
}

// LastError returns the most recent human-readable failure text.
func (s *Supervisor) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Timeout reports whether the most recent command failed on a deadline.
func (s *Supervisor) Timeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

// Ping verifies the child is still alive without exercising the guest
// engine, satisfying pool.Supervisor for the warm-pool health check.
func (s *Supervisor) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return fmt.Errorf("sandbox: not initialized")
	}
	// Signal 0 probes for existence without affecting the process.
	if err := s.cmd.Process.Signal(syscall.Signal(0)); err != nil {
		return &engine.ChildDiedError{ExitCode: s.exitCodeLocked()}
	}
	return nil
}

func (s *Supervisor) exitCodeLocked() int {
	if s.cmd == nil || s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// Close implements pool.Supervisor; it is an alias for Destroy.
func (s *Supervisor) Close() error { return s.Destroy() }

// Destroy waits for the child non-blockingly; if it is still alive it is
// killed and reaped. Safe to call more than once.
func (s *Supervisor) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyLocked()
}

func (s *Supervisor) destroyLocked() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	s.killLocked()
	if s.cmdW != nil {
		s.cmdW.Close()
		s.cmdW = nil
	}
	if s.respR != nil {
		s.respR.Close()
		s.respR = nil
	}
	return nil
}

// killLocked probes whether the child is still alive and, if so, sends
// SIGKILL; either way it reaps the process so no zombie is left behind.
func (s *Supervisor) killLocked() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	if s.cmd.Process.Signal(syscall.Signal(0)) == nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
}

func (s *Supervisor) logSink(msg string) {
	if s.logger != nil {
		s.logger.Logf("%s", msg)
		return
	}
	logging.Op().Info("sandbox child log", "message", msg)
}

var _ engine.Engine = (*Supervisor)(nil)
