// Package jsengine adapts goja, a pure-Go ECMAScript interpreter, to the
// engine.Engine contract.
package jsengine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/value"
)

// Adapter implements engine.Engine over a goja runtime.
type Adapter struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	logger   engine.Logger
	lastErr  string
	timedOut bool
}

// New constructs an uninitialized JavaScript adapter.
func New() *Adapter {
	a := &Adapter{vm: goja.New(), logger: engine.NopLogger{}}
	a.bindConsole()
	return a
}

// SetLogger redirects console.log/warn/error to logger.
func (a *Adapter) SetLogger(logger engine.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if logger == nil {
		logger = engine.NopLogger{}
	}
	a.logger = logger
}

// bindConsole installs a minimal console global whose methods forward
// each argument's string form to the adapter's current logger.
func (a *Adapter) bindConsole() {
	console := a.vm.NewObject()
	log := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		a.mu.Lock()
		logger := a.logger
		a.mu.Unlock()
		logger.Logf("%s", strings.Join(parts, " "))
		return goja.Undefined()
	}
	console.Set("log", log)
	console.Set("warn", log)
	console.Set("error", log)
	a.vm.Set("console", console)
}

func (a *Adapter) Name() string { return "js" }

// Initialize is a no-op: goja has no separate init phase and carries no
// native memory cap knob, so the memory limit is enforced by the
// sandbox supervisor's RLIMIT_DATA instead when this adapter is forked
// into a locked-down child.
func (a *Adapter) Initialize(ctx context.Context, memoryCapBytes int64) error {
	return nil
}

func (a *Adapter) CompileScript(ctx context.Context, source string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	prog, err := goja.Compile("script.js", source, false)
	if err != nil {
		a.lastErr = err.Error()
		return &engine.CompileError{Engine: a.Name(), Reason: err.Error()}
	}
	if _, err := a.vm.RunProgram(prog); err != nil {
		a.lastErr = err.Error()
		return &engine.CompileError{Engine: a.Name(), Reason: err.Error()}
	}
	return nil
}

func (a *Adapter) IsFunction(ctx context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := goja.AssertFunction(a.vm.Get(name))
	return ok, nil
}

func (a *Adapter) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timedOut = false

	fn, ok := goja.AssertFunction(a.vm.Get(name))
	if !ok {
		return value.VoidValue(), &engine.NoSuchFunctionError{Name: name}
	}

	jsArgs := make([]goja.Value, len(args))
	for i, v := range args {
		jsArgs[i] = valueToJS(a.vm, v)
	}

	done := make(chan struct{})
	var result goja.Value
	var callErr error
	go func() {
		defer close(done)
		result, callErr = fn(goja.Undefined(), jsArgs...)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.vm.Interrupt("deadline exceeded")
		<-done
		a.timedOut = true
		a.lastErr = "deadline exceeded"
		return value.VoidValue(), &engine.TimeoutError{Operation: "call_function"}
	}

	if callErr != nil {
		a.lastErr = callErr.Error()
		return value.VoidValue(), fmt.Errorf("%s: %w", a.Name(), callErr)
	}
	return jsToValue(result), nil
}

func (a *Adapter) DefineConstant(ctx context.Context, name string, v value.Value) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.vm.Set(name, valueToJS(a.vm, v))
}

func (a *Adapter) DefineFunction(ctx context.Context, name string, arity int, fn value.Callable) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.vm.Set(name, func(call goja.FunctionCall) goja.Value {
		args := make([]value.Value, len(call.Arguments))
		for i, jv := range call.Arguments {
			args[i] = jsToValue(jv)
		}
		result, err := fn(args)
		if err != nil {
			panic(a.vm.NewGoError(err))
		}
		return valueToJS(a.vm, result)
	})
}

func (a *Adapter) LastError() string { return a.lastErr }
func (a *Adapter) Timeout() bool     { return a.timedOut }

func (a *Adapter) Destroy() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vm = nil
	return nil
}
