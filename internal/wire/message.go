package wire

import "github.com/oriys/novasandbox/internal/value"

// WriteCommand frames a parent-initiated command header (just the command
// byte; callers follow up with the command's own argument encoding per
// spec §4.4).
func (w *Writer) WriteCommand(cmd Command) error {
	return w.WriteByte(byte(cmd))
}

// ReadCommand decodes the one-byte command header the child reads at the
// top of its event loop (spec §4.5 step 5).
func (r *Reader) ReadCommand() (Command, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return Command(b), nil
}

// WriteReturn frames RETURN, with payload left to the caller (a Value for
// CALL_FUNCTION, a byte for COMPILE_SCRIPT/IS_FUNCTION, nothing for
// configuration commands).
func (w *Writer) WriteReturn() error { return w.WriteByte(byte(Return)) }

// WriteError frames ERROR, terminating the current command with failure.
// The message is carried as a length-prefixed string so the parent can
// surface it as the engine's last-error text.
func (w *Writer) WriteError(msg string) error {
	if err := w.WriteByte(byte(Error)); err != nil {
		return err
	}
	return w.WriteString(msg)
}

// WriteLog frames a child-initiated LOG message. No reply is expected.
func (w *Writer) WriteLog(msg string) error {
	if err := w.WriteByte(byte(Log)); err != nil {
		return err
	}
	return w.WriteString(msg)
}

// WriteCallback frames a child-initiated CALLBACK request. The caller
// must then read a reply Value.
func (w *Writer) WriteCallback(name string, args value.Value) error {
	if err := w.WriteByte(byte(Callback)); err != nil {
		return err
	}
	if err := w.WriteString(name); err != nil {
		return err
	}
	return w.WriteValue(args)
}

// ReadChildFrame decodes the one-byte child-frame tag interleaved into the
// response stream (CALLBACK, LOG, RETURN, or ERROR).
func (r *Reader) ReadChildFrame() (ChildFrame, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return ChildFrame(b), nil
}
