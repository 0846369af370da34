package engine

import (
	"testing"

	"github.com/oriys/novasandbox/internal/value"
)

func TestParseSignatureArityExcludesBrackets(t *testing.T) {
	cases := []struct {
		descriptor string
		wantKinds  []value.Kind
		wantArity  int
	}{
		{"", nil, 0},
		{"i", []value.Kind{value.Int32}, 1},
		{"isf[b", []value.Kind{value.Int32, value.String, value.Float32, value.Array, value.Bool}, 4},
		{"[[", []value.Kind{value.Array, value.Array}, 0},
	}
	for _, c := range cases {
		kinds, arity, err := ParseSignature(c.descriptor)
		if err != nil {
			t.Fatalf("ParseSignature(%q): %v", c.descriptor, err)
		}
		if arity != c.wantArity {
			t.Errorf("ParseSignature(%q) arity = %d, want %d", c.descriptor, arity, c.wantArity)
		}
		if len(kinds) != len(c.wantKinds) {
			t.Fatalf("ParseSignature(%q) kinds = %v, want %v", c.descriptor, kinds, c.wantKinds)
		}
		for i := range kinds {
			if kinds[i] != c.wantKinds[i] {
				t.Errorf("ParseSignature(%q) kind[%d] = %v, want %v", c.descriptor, i, kinds[i], c.wantKinds[i])
			}
		}
	}
}

func TestParseSignatureRejectsUnknownLetter(t *testing.T) {
	if _, _, err := ParseSignature("x"); err == nil {
		t.Fatal("expected error for unknown descriptor byte")
	}
}

func TestParseReturnSignature(t *testing.T) {
	if kind, err := ParseReturnSignature(""); err != nil || kind != value.Void {
		t.Fatalf("ParseReturnSignature(\"\") = %v, %v, want Void, nil", kind, err)
	}
	if kind, err := ParseReturnSignature("s"); err != nil || kind != value.String {
		t.Fatalf("ParseReturnSignature(\"s\") = %v, %v, want String, nil", kind, err)
	}
	if _, err := ParseReturnSignature("is"); err == nil {
		t.Fatal("expected error for multi-letter return descriptor")
	}
}

func TestWrapCoercionCoercesArgsAndReturn(t *testing.T) {
	paramKinds := []value.Kind{value.Int32, value.Int32}
	fn := WrapCoercion(paramKinds, value.String, func(args []value.Value) (value.Value, error) {
		return value.Int32Value(args[0].AsInt32() + args[1].AsInt32()), nil
	})

	result, err := fn([]value.Value{value.StringValue("2"), value.Float32Value(3)})
	if err != nil {
		t.Fatalf("fn: %v", err)
	}
	if result.AsString() != "5" {
		t.Fatalf("fn(\"2\", 3.0) = %q, want %q", result.AsString(), "5")
	}
}

func TestWrapCoercionRejectsUnconvertibleArg(t *testing.T) {
	fn := WrapCoercion([]value.Kind{value.Int32}, value.Void, func(args []value.Value) (value.Value, error) {
		return value.VoidValue(), nil
	})
	if _, err := fn([]value.Value{value.StringValue("not a number")}); err == nil {
		t.Fatal("expected coercion error for non-numeric string")
	}
}

func TestWrapCoercionDiscardsReturnWhenVoid(t *testing.T) {
	fn := WrapCoercion(nil, value.Void, func(args []value.Value) (value.Value, error) {
		return value.Int32Value(42), nil
	})
	result, err := fn(nil)
	if err != nil {
		t.Fatalf("fn: %v", err)
	}
	if result.Kind != value.Void {
		t.Fatalf("fn() = %v, want Void", result.Kind)
	}
}
