// Package pyengine is the placeholder adapter selected for .py scripts.
//
// The engine contract (internal/engine) treats individual language
// adapters as external collaborators: the parent only depends on the
// interface, never on a specific embedded interpreter. No pure-Go,
// embeddable CPython runtime exists to wire here, so this adapter
// satisfies the contract and reports itself honestly rather than
// silently mis-executing guest source under the wrong language.
package pyengine

import (
	"context"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/value"
)

// Adapter implements engine.Engine for the .py extension slot.
type Adapter struct {
	lastErr string
}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "py" }

func (a *Adapter) Initialize(ctx context.Context, memoryCapBytes int64) error {
	return nil
}

func (a *Adapter) CompileScript(ctx context.Context, source string) error {
	a.lastErr = "python adapter not available in this build"
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
