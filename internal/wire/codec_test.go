package wire

import (
	"bytes"
	"testing"

	"github.com/oriys/novasandbox/internal/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteValue(v); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := NewReader(&buf, DefaultLimits()).ReadValue()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return got
}

func TestValueRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.VoidValue(),
		value.Int32Value(-7),
		value.Float32Value(3.5),
		value.BoolValue(true),
		value.BoolValue(false),
		value.StringValue("hello, wire"),
		value.StringValue(""),
		value.ArrayValue([]value.Value{value.Int32Value(1), value.Int32Value(2), value.Int32Value(3)}),
		value.ArrayValue([]value.Value{
			value.ArrayValue([]value.Value{value.Int32Value(1)}),
			value.StringValue("nested"),
		}),
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if !value.Equal(c, got) {
			t.Errorf("round-trip mismatch: %s != %s", c.Dump(), got.Dump())
		}
	}
}

func TestReadValueRejectsOversizeString(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteByte(byte(value.String))
	w.WriteInt32(10000) // declared length exceeds default cap of 4096
	buf.WriteString("short, not actually 10000 bytes")

	_, err := NewReader(&buf, DefaultLimits()).ReadValue()
	if err == nil {
		t.Fatalf("expected WireError for oversize string")
	}
	if _, ok := err.(*WireError); !ok {
		t.Fatalf("expected *WireError, got %T: %v", err, err)
	}
}

func TestReadValueRejectsOversizeArray(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteByte(byte(value.Array))
	w.WriteInt32(2000) // exceeds default cap of 1024 total elements

	_, err := NewReader(&buf, DefaultLimits()).ReadValue()
	if err == nil {
		t.Fatalf("expected WireError for oversize array")
	}
}

func TestReadValueCumulativeArrayBudget(t *testing.T) {
	// Two sibling arrays whose declared lengths individually fit under the
	// cap but whose sum does not; the cap must apply across the whole tree.
	limits := Limits{MaxStringLen: 4096, MaxArrayElems: 10, MaxArrayDepth: 8}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteByte(byte(value.Array))
	w.WriteInt32(2)
	// First element: array of 6 ints.
	w.WriteByte(byte(value.Array))
	w.WriteInt32(6)
	for i := 0; i < 6; i++ {
		w.WriteByte(byte(value.Int32))
		w.WriteInt32(int32(i))
	}
	// Second element: array of 6 ints -- 6+6 = 12 > budget of 10.
	w.WriteByte(byte(value.Array))
	w.WriteInt32(6)
	for i := 0; i < 6; i++ {
		w.WriteByte(byte(value.Int32))
		w.WriteInt32(int32(i))
	}

	_, err := NewReader(&buf, limits).ReadValue()
	if err == nil {
		t.Fatalf("expected cumulative budget to reject the second array")
	}
}

func TestReadValueRejectsExcessiveDepth(t *testing.T) {
	limits := Limits{MaxStringLen: 4096, MaxArrayElems: 1024, MaxArrayDepth: 2}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// Depth 0 -> 1 -> 2 -> 3, exceeding MaxArrayDepth of 2.
	for i := 0; i < 3; i++ {
		w.WriteByte(byte(value.Array))
		w.WriteInt32(1)
	}
	w.WriteByte(byte(value.Int32))
	w.WriteInt32(0)

	_, err := NewReader(&buf, limits).ReadValue()
	if err == nil {
		t.Fatalf("expected depth cap to reject")
	}
}

func TestReadValueRejectsFunctionTag(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(value.FunctionKind))
	_, err := NewReader(&buf, DefaultLimits()).ReadValue()
	if err == nil {
		t.Fatalf("expected function tag to be rejected at the codec level")
	}
}

func TestCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteCommand(CallFunction); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewReader(&buf, DefaultLimits())
	cmd, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cmd != CallFunction {
		t.Fatalf("got %v, want %v", cmd, CallFunction)
	}
}
