package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/value"
	"github.com/oriys/novasandbox/internal/wire"
)

func (s *Supervisor) CompileScript(ctx context.Context, source string) error {
	if err := s.beginCommand(); err != nil {
		return err
	}
	defer s.endCommand()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.timedOut = false
	s.setDeadlineLocked(s.cfg.CallDeadline)

	if err := s.writer.WriteCommand(wire.CompileScript); err != nil {
		return s.wireFailureLocked(err)
	}
	if err := s.writer.WriteString(source); err != nil {
		return s.wireFailureLocked(err)
	}

	_, err := s.processResponseLocked(returnByte, nil)
	return err
}

func (s *Supervisor) IsFunction(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timedOut = false
	s.setDeadlineLocked(s.cfg.CallDeadline)

	if err := s.writer.WriteCommand(wire.IsFunction); err != nil {
		return false, s.wireFailureLocked(err)
	}
	if err := s.writer.WriteString(name); err != nil {
		return false, s.wireFailureLocked(err)
	}

	statusByte, err := s.processResponseLocked(returnByte, nil)
	if err != nil {
		return false, err
	}
	return statusByte == 1, nil
}

func (s *Supervisor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	if err := s.beginCommand(); err != nil {
		return value.VoidValue(), err
	}
	defer s.endCommand()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.timedOut = false
	// A deadline on ctx (as set by hostapi's CallWithTimeout) replaces the
	// configured per-call deadline.
	d := s.cfg.CallDeadline
	if dl, ok := ctx.Deadline(); ok {
		d = max(time.Until(dl), time.Nanosecond)
	}
	s.setDeadlineLocked(d)

	if err := s.writer.WriteCommand(wire.CallFunction); err != nil {
		return value.VoidValue(), s.wireFailureLocked(err)
	}
	if err := s.writer.WriteString(name); err != nil {
		return value.VoidValue(), s.wireFailureLocked(err)
	}
	if err := s.writer.WriteValue(value.ArrayValue(args)); err != nil {
		return value.VoidValue(), s.wireFailureLocked(err)
	}

	var result value.Value
	_, err := s.processResponseLocked(returnValue, &result)
	return result, err
}

func (s *Supervisor) DefineConstant(ctx context.Context, name string, v value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timedOut = false
	s.setDeadlineLocked(s.cfg.CallDeadline)

	if err := s.writer.WriteCommand(wire.DefineConstant); err != nil {
		return s.wireFailureLocked(err)
	}
	if err := s.writer.WriteString(name); err != nil {
		return s.wireFailureLocked(err)
	}
	if err := s.writer.WriteValue(v); err != nil {
		return s.wireFailureLocked(err)
	}

	_, err := s.processResponseLocked(returnNone, nil)
	return err
}

func (s *Supervisor) DefineFunction(ctx context.Context, name string, arity int, fn value.Callable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if arity < 0 || arity > 255 {
		return fmt.Errorf("sandbox: arity %d out of range", arity)
	}

	s.parent.Define(name, value.FunctionValue(&value.Function{Name: name, Arity: arity, Call: fn}))

	s.timedOut = false
	s.setDeadlineLocked(s.cfg.CallDeadline)

	if err := s.writer.WriteCommand(wire.DefineFunction); err != nil {
		return s.wireFailureLocked(err)
	}
	if err := s.writer.WriteString(name); err != nil {
		return s.wireFailureLocked(err)
	}
	if err := s.writer.WriteByte(byte(arity)); err != nil {
		return s.wireFailureLocked(err)
	}

	_, err := s.processResponseLocked(returnNone, nil)
	return err
}

// wireFailureLocked records a send-side failure as ChildDied: a write
// error on the command pipe means the child is no longer reading it.
func (s *Supervisor) wireFailureLocked(err error) error {
	s.lastErr = err.Error()
	return &engine.ChildDiedError{ExitCode: s.exitCodeLocked()}
}
