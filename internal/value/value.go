// Package value implements the typed sum-value model passed across the
// sandbox boundary: void, i32, f32, bool, string, array, and function
// handle. Values are freely deep-cloned and own their payloads (arrays own
// their elements, strings own their bytes).
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value. The numeric values match the wire
// tags in spec §6 so the wire codec can cast directly.
type Kind byte

const (
	Void Kind = iota
	Float32
	Int32
	Bool
	String
	Array
	FunctionKind
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Float32:
		return "f32"
	case Int32:
		return "i32"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Array:
		return "array"
	case FunctionKind:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// Callable is the polymorphic hook a Function value invokes. It receives
// the arguments the guest or host supplied and returns the result or an
// error. Implementations live in internal/callback (parent-registered
// natives) and internal/sandbox (child-side proxies that frame a CALLBACK
// request across the pipe).
type Callable func(args []Value) (Value, error)

// Function carries a callable handle, its declared arity, and an optional
// release hook for engine-specific internal state (e.g. a goja.Callable
// wrapper or a gopher-lua registry reference).
type Function struct {
	Name    string
	Arity   int
	Call    Callable
	release func()
}

// Value is a tagged union. Exactly one of the payload fields is
// meaningful, selected by Kind; this invariant holds for the value's
// entire lifetime (spec §3).
type Value struct {
	Kind Kind

	f32 float32
	i32 int32
	b   bool
	s   string
	arr []Value
	fn  *Function
}

func VoidValue() Value                { return Value{Kind: Void} }
func Float32Value(f float32) Value    { return Value{Kind: Float32, f32: f} }
func Int32Value(i int32) Value        { return Value{Kind: Int32, i32: i} }
func BoolValue(b bool) Value          { return Value{Kind: Bool, b: b} }
func StringValue(s string) Value      { return Value{Kind: String, s: s} }
func ArrayValue(elems []Value) Value  { return Value{Kind: Array, arr: elems} }
func FunctionValue(fn *Function) Value {
	return Value{Kind: FunctionKind, fn: fn}
}

func (v Value) AsFloat32() float32   { return v.f32 }
func (v Value) AsInt32() int32       { return v.i32 }
func (v Value) AsBool() bool         { return v.b }
func (v Value) AsString() string     { return v.s }
func (v Value) AsArray() []Value     { return v.arr }
func (v Value) AsFunction() *Function { return v.fn }

// Clone deep-clones v: array clones recurse into every element before the
// outer slice is built, and a cloned Function shares the same Callable
// (the callable is the engine's identity, not owned data).
func (v Value) Clone() Value {
	switch v.Kind {
	case Array:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Value{Kind: Array, arr: out}
	default:
		return v
	}
}

// Release runs the release hook, if any, recursing into array elements
// before releasing the outer container so nested Function values get a
// chance to tear down engine-side state first.
func (v Value) Release() {
	switch v.Kind {
	case Array:
		for _, e := range v.arr {
			e.Release()
		}
	case FunctionKind:
		if v.fn != nil && v.fn.release != nil {
			v.fn.release()
		}
	}
}

// SetRelease attaches a release hook to a Function value. Used by adapters
// that need to unref engine-internal state (a goja closure, a Lua registry
// slot) when the value is discarded.
func (fn *Function) SetRelease(hook func()) {
	fn.release = hook
}

// Dump renders v for diagnostics. This is not a wire format.
func (v Value) Dump() string {
	var b strings.Builder
	dump(&b, v)
	return b.String()
}

func dump(b *strings.Builder, v Value) {
	switch v.Kind {
	case Void:
		b.WriteString("void")
	case Float32:
		b.WriteString(strconv.FormatFloat(float64(v.f32), 'g', -1, 32))
	case Int32:
		b.WriteString(strconv.FormatInt(int64(v.i32), 10))
	case Bool:
		b.WriteString(strconv.FormatBool(v.b))
	case String:
		b.WriteString(strconv.Quote(v.s))
	case Array:
		b.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				b.WriteString(", ")
			}
			dump(b, e)
		}
		b.WriteByte(']')
	case FunctionKind:
		name := "<anonymous>"
		arity := 0
		if v.fn != nil {
			name = v.fn.Name
			arity = v.fn.Arity
		}
		fmt.Fprintf(b, "function(%s/%d)", name, arity)
	default:
		b.WriteString("<invalid>")
	}
}

// Equal reports structural equality: arrays compare recursively,
// element-by-element; Function values are never equal to each other
// (identity, not structure).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Void:
		return true
	case Float32:
		return a.f32 == b.f32
	case Int32:
		return a.i32 == b.i32
	case Bool:
		return a.b == b.b
	case String:
		return a.s == b.s
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case FunctionKind:
		return false
	default:
		return false
	}
}
