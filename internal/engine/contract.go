// Package engine defines the polymorphic interpreter contract every
// scripting-language adapter satisfies, plus the typed error taxonomy
// shared by adapters and the sandbox supervisor.
package engine

import (
	"context"

	"github.com/oriys/novasandbox/internal/value"
)

// Engine is the contract every adapter — and the sandbox supervisor that
// wraps one — implements. A caller cannot tell, from this interface alone,
// whether calls run in-process or cross a pipe boundary into a
// locked-down child.
type Engine interface {
	// Name reports the adapter's engine identity (js, lua, py, rb).
	Name() string

	// Initialize prepares the engine with the given memory cap in bytes.
	// Adapters that lazily initialize may treat this as a no-op.
	Initialize(ctx context.Context, memoryCapBytes int64) error

	// CompileScript compiles source text, replacing any previously
	// compiled program on this engine instance.
	CompileScript(ctx context.Context, source string) error

	// IsFunction reports whether name resolves to a callable global.
	IsFunction(ctx context.Context, name string) (bool, error)

	// CallFunction invokes the named global with args and returns its
	// result.
	CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error)

	// DefineConstant binds name to a constant value as a global.
	DefineConstant(ctx context.Context, name string, v value.Value) error

	// DefineFunction binds name to a native callable of the given arity.
	// The callback is invoked with already-coerced arguments.
	DefineFunction(ctx context.Context, name string, arity int, fn value.Callable) error

	// SetLogger redirects whatever console/print output the adapter
	// produces to logger instead of the process's own stdout/stderr.
	// Called once, before the first CompileScript, so that logging keeps
	// working once a sandboxed child's lockdown has closed every other
	// I/O path.
	SetLogger(logger Logger)

	// LastError returns the most recent adapter-level error text, or "" if
	// the last operation succeeded.
	LastError() string

	// Timeout reports whether the most recent call was abandoned because
	// its deadline elapsed.
	Timeout() bool

	// Destroy releases all engine-side state. An Engine must not be used
	// after Destroy returns.
	Destroy() error
}

// Logger receives LOG frames/messages emitted by an engine or its
// sandbox supervisor during a call.
type Logger interface {
	Logf(format string, args ...any)
}

// NopLogger discards every message. Useful as a safe default when no
// logger is configured.
type NopLogger struct{}

func (NopLogger) Logf(format string, args ...any) {}
