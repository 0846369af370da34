package value

import "testing"

func TestCloneArrayIsDeep(t *testing.T) {
	inner := ArrayValue([]Value{Int32Value(1), Int32Value(2)})
	outer := ArrayValue([]Value{inner, StringValue("x")})

	cloned := outer.Clone()
	if !Equal(outer, cloned) {
		t.Fatalf("clone not structurally equal: %s vs %s", outer.Dump(), cloned.Dump())
	}

	// Mutate the clone's nested array in place and confirm the original
	// is untouched, proving the clone owns independent storage.
	cloned.AsArray()[0].AsArray()[0] = Int32Value(99)
	if Equal(outer, cloned) {
		t.Fatalf("expected clone mutation to diverge from original")
	}
	if outer.AsArray()[0].AsArray()[0].AsInt32() != 1 {
		t.Fatalf("original array element mutated through clone")
	}
}

func TestEqualRecursive(t *testing.T) {
	a := ArrayValue([]Value{Int32Value(1), ArrayValue([]Value{BoolValue(true)})})
	b := ArrayValue([]Value{Int32Value(1), ArrayValue([]Value{BoolValue(true)})})
	c := ArrayValue([]Value{Int32Value(1), ArrayValue([]Value{BoolValue(false)})})

	if !Equal(a, b) {
		t.Fatalf("expected a == b")
	}
	if Equal(a, c) {
		t.Fatalf("expected a != c")
	}
}

func TestFunctionNeverEqual(t *testing.T) {
	fn := &Function{Name: "f", Arity: 0, Call: func([]Value) (Value, error) { return VoidValue(), nil }}
	a := FunctionValue(fn)
	b := FunctionValue(fn)
	if Equal(a, b) {
		t.Fatalf("function values must never compare equal")
	}
}

func TestDump(t *testing.T) {
	v := ArrayValue([]Value{Int32Value(1), StringValue("hi"), BoolValue(true)})
	got := v.Dump()
	want := `[1, "hi", true]`
	if got != want {
		t.Fatalf("Dump() = %q, want %q", got, want)
	}
}

func TestCoerceNumeric(t *testing.T) {
	cases := []struct {
		in   Value
		to   Kind
		want Value
	}{
		{Int32Value(3), Float32, Float32Value(3)},
		{Float32Value(2.9), Int32, Int32Value(2)},
		{Int32Value(0), Bool, BoolValue(false)},
		{Int32Value(5), Bool, BoolValue(true)},
		{BoolValue(true), String, StringValue("true")},
		{StringValue("42"), Int32, Int32Value(42)},
	}
	for _, c := range cases {
		got, err := Coerce(c.in, c.to, 0)
		if err != nil {
			t.Fatalf("Coerce(%v, %v) error: %v", c.in.Dump(), c.to, err)
		}
		if !Equal(got, c.want) {
			t.Fatalf("Coerce(%v, %v) = %v, want %v", c.in.Dump(), c.to, got.Dump(), c.want.Dump())
		}
	}
}

func TestCoerceFailureReportsParamIndex(t *testing.T) {
	_, err := Coerce(StringValue("not a number"), Int32, 3)
	if err == nil {
		t.Fatalf("expected error")
	}
	nc, ok := err.(*NotConvertibleError)
	if !ok {
		t.Fatalf("expected *NotConvertibleError, got %T", err)
	}
	if nc.ParamIndex != 3 {
		t.Fatalf("ParamIndex = %d, want 3", nc.ParamIndex)
	}
}
