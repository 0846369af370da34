package callback

import (
	"testing"

	"github.com/oriys/novasandbox/internal/value"
)

func TestParentTableInvoke(t *testing.T) {
	p := NewParentTable()
	p.Define("double", value.FunctionValue(&value.Function{
		Name:  "double",
		Arity: 1,
		Call: func(args []value.Value) (value.Value, error) {
			return value.Int32Value(args[0].AsInt32() * 2), nil
		},
	}))

	result, err := p.Invoke("double", []value.Value{value.Int32Value(21)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.AsInt32() != 42 {
		t.Fatalf("Invoke result = %v, want 42", result.Dump())
	}
}

func TestParentTableInvokeUnknown(t *testing.T) {
	p := NewParentTable()
	if _, err := p.Invoke("missing", nil); err == nil {
		t.Fatal("Invoke(missing) succeeded, want error")
	}
}

func TestParentTableNames(t *testing.T) {
	p := NewParentTable()
	p.Define("a", value.VoidValue())
	p.Define("b", value.VoidValue())

	names := p.Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}
}

func TestChildTableInstallProxy(t *testing.T) {
	c := NewChildTable()
	called := false
	c.InstallProxy("log", 1, func(args []value.Value) (value.Value, error) {
		called = true
		return value.VoidValue(), nil
	})

	v, ok := c.Lookup("log")
	if !ok {
		t.Fatal("Lookup(log) not found")
	}
	if _, err := v.AsFunction().Call(nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !called {
		t.Fatal("proxy was not invoked")
	}
}
