package hostapi

import (
	"context"
	"testing"

	"github.com/oriys/novasandbox/internal/config"
	"github.com/oriys/novasandbox/internal/value"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Observability.Metrics.Enabled = false
	h, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h
}

func TestDirectSessionCompileAndCall(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	session, err := h.Compile(ctx, "script.js", "function add(a, b) { return a + b; }", Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer session.Close()

	ok, err := session.IsFunction(ctx, "add")
	if err != nil || !ok {
		t.Fatalf("IsFunction(add) = %v, %v", ok, err)
	}

	result, err := session.Call(ctx, "add", []value.Value{value.Int32Value(2), value.Int32Value(3)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.AsInt32() != 5 {
		t.Fatalf("add(2,3) = %v, want 5", result.AsInt32())
	}
}

func TestDirectSessionBindConstantAndFunction(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	session, err := h.Compile(ctx, "script.js", "function useCap() { return double(CAP); }", Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer session.Close()

	if err := session.BindConstant(ctx, "CAP", value.Int32Value(10)); err != nil {
		t.Fatalf("BindConstant: %v", err)
	}
	if err := session.BindFunction(ctx, "double", "i", "i", func(args []value.Value) (value.Value, error) {
		return value.Int32Value(args[0].AsInt32() * 2), nil
	}); err != nil {
		t.Fatalf("BindFunction: %v", err)
	}

	result, err := session.Call(ctx, "useCap", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.AsInt32() != 20 {
		t.Fatalf("useCap() = %v, want 20", result.AsInt32())
	}
}

func TestDirectSessionCallNoSuchFunction(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	session, err := h.Compile(ctx, "script.js", "var x = 1;", Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer session.Close()

	if _, err := session.Call(ctx, "missing", nil); err == nil {
		t.Fatal("expected error calling undefined function")
	}
}

func TestHostStats(t *testing.T) {
	h := newTestHost(t)
	stats := h.Stats()
	if stats["pool"] == nil {
		t.Fatal("expected pool stats key")
	}
}

func TestDirectSessionPreflight(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	session, err := h.Compile(ctx, "script.js", "function add(a, b) { return a + b; } function sub(a, b) { return a - b; }", Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer session.Close()

	if err := session.Preflight(ctx, []string{"add", "sub"}); err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if err := session.Preflight(ctx, []string{"add", "missing"}); err == nil {
		t.Fatal("expected error for missing entry point")
	}
}
