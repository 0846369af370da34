package jsengine

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/value"
)

func TestCompileAndCallFunction(t *testing.T) {
	a := New()
	defer a.Destroy()

	ctx := context.Background()
	if err := a.CompileScript(ctx, "function add(a, b) { return a + b; }"); err != nil {
		t.Fatalf("CompileScript: %v", err)
	}

	ok, err := a.IsFunction(ctx, "add")
	if err != nil || !ok {
		t.Fatalf("IsFunction(add) = %v, %v; want true, nil", ok, err)
	}

	result, err := a.CallFunction(ctx, "add", []value.Value{value.Int32Value(2), value.Int32Value(3)})
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if result.Kind != value.Int32 || result.AsInt32() != 5 {
		t.Fatalf("CallFunction result = %v, want int32(5)", result.Dump())
	}
}

func TestCallFunctionNoSuchFunction(t *testing.T) {
	a := New()
	defer a.Destroy()

	ctx := context.Background()
	if err := a.CompileScript(ctx, "var x = 1;"); err != nil {
		t.Fatalf("CompileScript: %v", err)
	}

	_, err := a.CallFunction(ctx, "missing", nil)
	if _, ok := err.(*engine.NoSuchFunctionError); !ok {
		t.Fatalf("CallFunction error = %v, want *engine.NoSuchFunctionError", err)
	}
}

func TestCallFunctionTimeout(t *testing.T) {
	a := New()
	defer a.Destroy()

	ctx := context.Background()
	if err := a.CompileScript(ctx, "function spin() { while (true) {} }"); err != nil {
		t.Fatalf("CompileScript: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err := a.CallFunction(callCtx, "spin", nil)
	if _, ok := err.(*engine.TimeoutError); !ok {
		t.Fatalf("CallFunction error = %v, want *engine.TimeoutError", err)
	}
	if !a.Timeout() {
		t.Fatal("Timeout() = false after a timed-out call")
	}
}

func TestDefineConstantAndFunction(t *testing.T) {
	a := New()
	defer a.Destroy()

	ctx := context.Background()
	if err := a.DefineConstant(ctx, "CAP", value.Int32Value(42)); err != nil {
		t.Fatalf("DefineConstant: %v", err)
	}
	if err := a.DefineFunction(ctx, "double", 1, func(args []value.Value) (value.Value, error) {
		return value.Int32Value(args[0].AsInt32() * 2), nil
	}); err != nil {
		t.Fatalf("DefineFunction: %v", err)
	}

	if err := a.CompileScript(ctx, "function run() { return double(CAP); }"); err != nil {
		t.Fatalf("CompileScript: %v", err)
	}

	result, err := a.CallFunction(ctx, "run", nil)
	if err != nil {
		t.Fatalf("CallFunction: %v", err)
	}
	if result.AsInt32() != 84 {
		t.Fatalf("result = %v, want 84", result.Dump())
	}
}
