// Package luaengine adapts gopher-lua, a pure-Go Lua 5.1 VM, to the
// engine.Engine contract.
package luaengine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/value"
)

// Adapter implements engine.Engine over a gopher-lua state.
type Adapter struct {
	mu       sync.Mutex
	state    *lua.LState
	logger   engine.Logger
	lastErr  string
	timedOut bool
}

// New constructs an uninitialized Lua adapter.
func New() *Adapter {
	a := &Adapter{state: lua.NewState(), logger: engine.NopLogger{}}
	a.bindPrint()
	return a
}

// SetLogger redirects Lua's global print() to logger.
func (a *Adapter) SetLogger(logger engine.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if logger == nil {
		logger = engine.NopLogger{}
	}
	a.logger = logger
}

// bindPrint overrides Lua's stdlib print to route through the adapter's
// current logger rather than the process's own stdout.
func (a *Adapter) bindPrint() {
	a.state.SetGlobal("print", a.state.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.Get(i).String()
		}
		a.mu.Lock()
		logger := a.logger
		a.mu.Unlock()
		logger.Logf("%s", strings.Join(parts, "\t"))
		return 0
	}))
}

func (a *Adapter) Name() string { return "lua" }

// Initialize is a no-op: gopher-lua has no native memory cap knob; the
// memory limit is enforced by the sandbox supervisor's RLIMIT_DATA when
// this adapter is forked into a locked-down child.
func (a *Adapter) Initialize(ctx context.Context, memoryCapBytes int64) error {
	return nil
}

func (a *Adapter) CompileScript(ctx context.Context, source string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.state.DoString(source); err != nil {
		a.lastErr = err.Error()
		return &engine.CompileError{Engine: a.Name(), Reason: err.Error()}
	}
	return nil
}

func (a *Adapter) IsFunction(ctx context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.state.GetGlobal(name).(*lua.LFunction)
	return ok, nil
}

func (a *Adapter) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timedOut = false

	fn, ok := a.state.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return value.VoidValue(), &engine.NoSuchFunctionError{Name: name}
	}

	luaArgs := make([]lua.LValue, len(args))
	for i, v := range args {
		luaArgs[i] = valueToLua(a.state, v)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.state.SetContext(callCtx)

	done := make(chan struct{})
	var callErr error
	go func() {
		defer close(done)
		callErr = a.state.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, luaArgs...)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		<-done
		a.timedOut = true
		a.lastErr = "deadline exceeded"
		return value.VoidValue(), &engine.TimeoutError{Operation: "call_function"}
	}

	if callErr != nil {
		a.lastErr = callErr.Error()
		return value.VoidValue(), fmt.Errorf("%s: %w", a.Name(), callErr)
	}

	ret := a.state.Get(-1)
	a.state.Pop(1)
	return luaToValue(ret), nil
}

func (a *Adapter) DefineConstant(ctx context.Context, name string, v value.Value) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.SetGlobal(name, valueToLua(a.state, v))
	return nil
}

func (a *Adapter) DefineFunction(ctx context.Context, name string, arity int, fn value.Callable) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.SetGlobal(name, a.state.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		args := make([]value.Value, n)
		for i := 1; i <= n; i++ {
			args[i-1] = luaToValue(L.Get(i))
		}
		result, err := fn(args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(valueToLua(L, result))
		return 1
	}))
	return nil
}

func (a *Adapter) LastError() string { return a.lastErr }
func (a *Adapter) Timeout() bool     { return a.timedOut }

func (a *Adapter) Destroy() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != nil {
		a.state.Close()
		a.state = nil
	}
	return nil
}
