package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/oriys/novasandbox/internal/value"
)

// WireError reports malformed framing: an oversize string/array, a
// premature EOF, or an unexpected tag (spec §7).
type WireError struct {
	Msg string
}

func (e *WireError) Error() string { return "wire: " + e.Msg }

func wireErrorf(format string, args ...any) error {
	return &WireError{Msg: fmt.Sprintf(format, args...)}
}

// Limits bounds what a Reader will allocate while decoding values coming
// from a (possibly compromised) child process. Writers are unbounded: the
// parent trusts its own code (spec §4.3).
type Limits struct {
	MaxStringLen   int // default 4 KiB
	MaxArrayElems  int // cumulative, across the whole array tree; default 1024
	MaxArrayDepth  int // default 32
}

// DefaultLimits mirrors the spec §6 resource-limit defaults.
func DefaultLimits() Limits {
	return Limits{MaxStringLen: 4096, MaxArrayElems: 1024, MaxArrayDepth: 32}
}

// UnlimitedLimits removes every cap. Spec §4.5 reserves this for reads the
// child performs off a reply it knows comes from the trusted parent (the
// CALLBACK response), mirroring the original's read_value_nolimit — the
// limits above exist to bound what the parent accepts from a possibly
// hostile child, not the other direction.
func UnlimitedLimits() Limits {
	return Limits{MaxStringLen: math.MaxInt32, MaxArrayElems: math.MaxInt32, MaxArrayDepth: math.MaxInt32}
}

// deadliner is satisfied by *os.File and net.Conn on platforms where pipe
// file descriptors are pollable; Reader falls back to unbounded reads when
// the underlying stream does not support it.
type deadliner interface {
	SetReadDeadline(time.Time) error
}

// Reader decodes frames and values from an underlying stream, enforcing
// Limits and an optional shared deadline (spec §4.3, §5: "the deadline is
// shared across the entire command, including all callbacks it triggers").
type Reader struct {
	r        io.Reader
	dl       deadliner
	limits   Limits
	deadline time.Time // zero means no deadline
}

func NewReader(r io.Reader, limits Limits) *Reader {
	rd := &Reader{r: r, limits: limits}
	if d, ok := r.(deadliner); ok {
		rd.dl = d
	}
	return rd
}

// SetDeadline arms (or clears, with a zero Time) the shared deadline for
// all subsequent reads.
func (r *Reader) SetDeadline(t time.Time) {
	r.deadline = t
	if r.dl != nil {
		r.dl.SetReadDeadline(t)
	}
}

func (r *Reader) full(buf []byte) error {
	_, err := io.ReadFull(r.r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return wireErrorf("short read: %v", err)
		}
		return err
	}
	return nil
}

// ReadByte reads a single octet.
func (r *Reader) ReadByte() (byte, error) {
	var buf [1]byte
	if err := r.full(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadInt32 reads a signed 32-bit integer in host endianness.
func (r *Reader) ReadInt32() (int32, error) {
	var buf [4]byte
	if err := r.full(buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.NativeEndian.Uint32(buf[:])), nil
}

// ReadFloat32 reads a 4-byte native float.
func (r *Reader) ReadFloat32() (float32, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	return int32BitsToFloat32(n), nil
}

// ReadString reads a length-prefixed string: a signed 32-bit length
// followed by that many bytes, no trailing NUL on the wire.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", wireErrorf("negative string length %d", n)
	}
	if int(n) > r.limits.MaxStringLen {
		return "", wireErrorf("string length %d exceeds cap %d", n, r.limits.MaxStringLen)
	}
	buf := make([]byte, n)
	if err := r.full(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadValue decodes one Value: a one-byte tag followed by its payload
// (spec §4.3). Array decoding tracks cumulative element count across the
// whole tree and recursion depth to resist a hostile child inflating
// either dimension.
func (r *Reader) ReadValue() (value.Value, error) {
	budget := r.limits.MaxArrayElems
	return r.readValue(0, &budget)
}

// ReadValueUnlimited decodes one Value ignoring the Reader's configured
// Limits (spec §4.5). The Reader is single-threaded per command, so
// swapping limits for the duration of this call is safe.
func (r *Reader) ReadValueUnlimited() (value.Value, error) {
	saved := r.limits
	r.limits = UnlimitedLimits()
	defer func() { r.limits = saved }()
	budget := r.limits.MaxArrayElems
	return r.readValue(0, &budget)
}

func (r *Reader) readValue(depth int, elemBudget *int) (value.Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return value.Value{}, err
	}
	tag := value.Kind(tagByte)
	switch tag {
	case value.Void:
		return value.VoidValue(), nil
	case value.Float32:
		f, err := r.ReadFloat32()
		if err != nil {
			return value.Value{}, err
		}
		return value.Float32Value(f), nil
	case value.Int32:
		i, err := r.ReadInt32()
		if err != nil {
			return value.Value{}, err
		}
		return value.Int32Value(i), nil
	case value.Bool:
		b, err := r.ReadByte()
		if err != nil {
			return value.Value{}, err
		}
		return value.BoolValue(b != 0), nil
	case value.String:
		s, err := r.ReadString()
		if err != nil {
			return value.Value{}, err
		}
		return value.StringValue(s), nil
	case value.Array:
		if depth >= r.limits.MaxArrayDepth {
			return value.Value{}, wireErrorf("array nesting exceeds depth cap %d", r.limits.MaxArrayDepth)
		}
		n, err := r.ReadInt32()
		if err != nil {
			return value.Value{}, err
		}
		if n < 0 {
			return value.Value{}, wireErrorf("negative array length %d", n)
		}
		if int(n) > *elemBudget {
			return value.Value{}, wireErrorf("array length %d exceeds remaining element budget %d", n, *elemBudget)
		}
		*elemBudget -= int(n)
		elems := make([]value.Value, n)
		for i := range elems {
			elems[i], err = r.readValue(depth+1, elemBudget)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.ArrayValue(elems), nil
	case value.FunctionKind:
		// Forbidden at the codec level (spec §9 Open Questions): a guest
		// returning a Function value across the wire has no defined
		// semantics in the source.
		return value.Value{}, wireErrorf("function values cannot cross the wire")
	default:
		return value.Value{}, wireErrorf("unknown value tag %d", tagByte)
	}
}

// Writer encodes frames and values onto an underlying stream. Unbounded:
// the parent trusts its own code (spec §4.3).
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) WriteByte(b byte) error {
	_, err := w.w.Write([]byte{b})
	return err
}

func (w *Writer) WriteInt32(i int32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], uint32(i))
	_, err := w.w.Write(buf[:])
	return err
}

func (w *Writer) WriteFloat32(f float32) error {
	return w.WriteInt32(float32BitsToInt32(f))
}

func (w *Writer) WriteString(s string) error {
	if err := w.WriteInt32(int32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w.w, s)
	return err
}

func (w *Writer) WriteValue(v value.Value) error {
	if err := w.WriteByte(byte(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case value.Void:
		return nil
	case value.Float32:
		return w.WriteFloat32(v.AsFloat32())
	case value.Int32:
		return w.WriteInt32(v.AsInt32())
	case value.Bool:
		if v.AsBool() {
			return w.WriteByte(1)
		}
		return w.WriteByte(0)
	case value.String:
		return w.WriteString(v.AsString())
	case value.Array:
		elems := v.AsArray()
		if err := w.WriteInt32(int32(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if err := w.WriteValue(e); err != nil {
				return err
			}
		}
		return nil
	case value.FunctionKind:
		return wireErrorf("function values cannot cross the wire")
	default:
		return wireErrorf("unknown value kind %d", byte(v.Kind))
	}
}
