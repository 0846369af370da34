package sandbox

import (
	"errors"
	"fmt"
	"os"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/metrics"
	"github.com/oriys/novasandbox/internal/value"
	"github.com/oriys/novasandbox/internal/wire"
)

// returnShape tells processResponseLocked what RETURN's payload looks
// like for the command currently in flight (spec §4.4: a Value for
// CALL_FUNCTION, a byte for COMPILE_SCRIPT/IS_FUNCTION, nothing for the
// configuration commands).
type returnShape int

const (
	returnNone returnShape = iota
	returnByte
	returnValue
)

// processResponseLocked is process_callbacks (spec §4.4): it reads
// frames until RETURN or ERROR, dispatching CALLBACK to the parent
// registry and forwarding LOG to the log sink in between. result, if
// non-nil, receives the CALL_FUNCTION payload; the returned byte carries
// the COMPILE_SCRIPT/IS_FUNCTION status byte.
func (s *Supervisor) processResponseLocked(shape returnShape, result *value.Value) (byte, error) {
	for {
		frame, err := s.reader.ReadChildFrame()
		if err != nil {
			return 0, s.readFailureLocked(err)
		}

		switch frame {
		case wire.Callback:
			if err := s.dispatchCallbackLocked(); err != nil {
				return 0, err
			}
		case wire.Log:
			msg, err := s.reader.ReadString()
			if err != nil {
				return 0, s.readFailureLocked(err)
			}
			s.logSink(msg)
		case wire.Return:
			return s.readReturnPayloadLocked(shape, result)
		case wire.Error:
			msg, err := s.reader.ReadString()
			if err != nil {
				return 0, s.readFailureLocked(err)
			}
			s.lastErr = msg
			return 0, &engine.CompileError{Engine: s.Name(), Reason: msg}
		default:
			s.lastErr = fmt.Sprintf("unexpected frame %v", frame)
			return 0, &wire.WireError{Msg: s.lastErr}
		}
	}
}

func (s *Supervisor) readReturnPayloadLocked(shape returnShape, result *value.Value) (byte, error) {
	switch shape {
	case returnByte:
		b, err := s.reader.ReadByte()
		if err != nil {
			return 0, s.readFailureLocked(err)
		}
		return b, nil
	case returnValue:
		v, err := s.reader.ReadValue()
		if err != nil {
			return 0, s.readFailureLocked(err)
		}
		*result = v
		return 0, nil
	default:
		return 0, nil
	}
}

// dispatchCallbackLocked handles one CALLBACK frame: decode name+args,
// invoke the parent-registered function with in_call held, write the
// reply Value back. A callback that errors still produces a reply (Void)
// so the child's read never blocks forever on a host-side failure.
func (s *Supervisor) dispatchCallbackLocked() error {
	metrics.Global().RecordCallbackFrame()
	name, err := s.reader.ReadString()
	if err != nil {
		return s.readFailureLocked(err)
	}
	argsValue, err := s.reader.ReadValue()
	if err != nil {
		return s.readFailureLocked(err)
	}

	// inCall is already 1 for the whole lifetime of the CompileScript/
	// CallFunction that is dispatching this callback (beginCommand set it
	// before s.mu was ever taken); a re-entrant call on this supervisor
	// fails the CompareAndSwap in beginCommand without blocking on s.mu.
	result, invokeErr := s.parent.Invoke(name, argsValue.AsArray())
	if invokeErr != nil {
		s.lastErr = invokeErr.Error()
		result = value.VoidValue()
	}

	if err := s.writer.WriteValue(result); err != nil {
		return s.wireFailureLocked(err)
	}
	return nil
}

// readFailureLocked classifies a failed pipe read as a deadline timeout
// or, otherwise, as the child having died.
func (s *Supervisor) readFailureLocked(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		s.timedOut = true
		s.lastErr = "deadline exceeded"
		return &engine.TimeoutError{Operation: "call"}
	}
	s.lastErr = err.Error()
	return &engine.ChildDiedError{ExitCode: s.exitCodeLocked()}
}
