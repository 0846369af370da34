// Package rbengine is the placeholder adapter selected for .rb scripts.
//
// See pyengine for the rationale: no pure-Go, embeddable Ruby runtime
// exists to wire here, so this adapter satisfies the engine contract
// and reports itself honestly rather than silently mis-executing guest
// source under the wrong language.
package rbengine

import (
	"context"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/value"
)

// Adapter implements engine.Engine for the .rb extension slot.
type Adapter struct {
	lastErr string
}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "rb" }

func (a *Adapter) Initialize(ctx context.Context, memoryCapBytes int64) error {
	return nil
}

func (a *Adapter) CompileScript(ctx context.Context, source string) error {
	a.lastErr = "ruby adapter not available in this build"
	return &engine.CompileError{Engine: a.Name(), Reason: a.lastErr}
}

func (a *Adapter) IsFunction(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (a *Adapter) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	return value.VoidValue(), &engine.NoSuchFunctionError{Name: name}
}

func (a *Adapter) DefineConstant(ctx context.Context, name string, v value.Value) error {
	return nil
}

func (a *Adapter) DefineFunction(ctx context.Context, name string, arity int, fn value.Callable) error {
	return nil
}

func (a *Adapter) SetLogger(logger engine.Logger) {}

func (a *Adapter) LastError() string { return a.lastErr }
func (a *Adapter) Timeout() bool     { return false }
func (a *Adapter) Destroy() error    { return nil }
