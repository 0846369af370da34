package hostapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oriys/novasandbox/internal/callback"
	"github.com/oriys/novasandbox/internal/circuitbreaker"
	"github.com/oriys/novasandbox/internal/config"
	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/logging"
	"github.com/oriys/novasandbox/internal/metrics"
	"github.com/oriys/novasandbox/internal/observability"
	"github.com/oriys/novasandbox/internal/pool"
	"github.com/oriys/novasandbox/internal/registry"
	"github.com/oriys/novasandbox/internal/value"
	"github.com/oriys/novasandbox/internal/wire"
)

// binding replays one DefineConstant/DefineFunction call against a
// freshly cold-started supervisor so every child serving a script key
// ends up in the same state regardless of when it was forked.
type binding struct {
	name string
	fn   value.Callable // nil for a constant binding
	arity int
	value value.Value
}

func (b binding) apply(ctx context.Context, eng engine.Engine) error {
	if b.fn != nil {
		return eng.DefineFunction(ctx, b.name, b.arity, b.fn)
	}
	return eng.DefineConstant(ctx, b.name, b.value)
}

// Options configures a single Compile call.
type Options struct {
	// Sandboxed runs the script inside a forked, lockdown-restricted
	// child process via internal/sandbox. When false, the engine adapter
	// runs directly in this process.
	Sandboxed bool
}

// Session is a compiled script bound to one engine, sandboxed or not. A
// Session admits one Call at a time: the inCall guard below rejects a
// concurrent or re-entrant Call with ReentrancyError rather than silently
// interleaving it.
type Session struct {
	host      *Host
	extension string
	scriptKey string
	source    string
	sandboxed bool

	parent   *callback.ParentTable
	breaker  *circuitbreaker.Breaker
	deadline time.Duration
	memCap   int64

	// inCall guards re-entrancy (spec property 5 / scenario S6) at the
	// layer a real host callback re-enters: a Supervisor-level guard alone
	// can't see it, since a sandboxed Call that re-enters while one is
	// already in flight gets routed by pool.Acquire to a different, idle
	// pooled supervisor rather than the one servicing the callback. Tested
	// with atomic ops before any lock or pool access so a callback
	// executing on this goroutine, whose stack already runs through Call,
	// fails fast instead of acquiring a second supervisor.
	inCall int32

	mu       sync.Mutex
	bindings []binding
	direct   engine.Engine // set only when !sandboxed
	closed   bool
}

func scriptKey(extension, source string) string {
	sum := sha256.Sum256([]byte(source))
	return extension + "|" + hex.EncodeToString(sum[:8])
}

func wireLimitsFromConfig(cfg *config.Config) wire.Limits {
	return wire.Limits{
		MaxStringLen:  cfg.Limits.MaxStringBytes,
		MaxArrayElems: cfg.Limits.MaxArrayElems,
		MaxArrayDepth: cfg.Limits.MaxArrayDepth,
	}
}

// Compile selects an engine by scriptPath's extension, compiles source,
// and returns a Session ready for BindConstant/BindFunction/Call. For a
// sandboxed session the compile happens lazily on the first Call, since
// compiling requires a forked child; for a direct session it happens
// immediately.
func (h *Host) Compile(ctx context.Context, scriptPath, source string, opts Options) (*Session, error) {
	ext := registry.ExtensionOf(scriptPath)
	key := scriptKey(ext, source)
	s := &Session{
		host:      h,
		extension: ext,
		scriptKey: key,
		source:    source,
		sandboxed: opts.Sandboxed,
		parent:    callback.NewParentTable(),
		breaker:   h.breakerFor(key),
		deadline:  clampDeadline(h.cfg.Limits.CallDeadline, 5*time.Second),
		memCap:    h.cfg.Limits.ChildMemoryCap,
	}
	if s.sandboxed {
		return s, nil
	}

	eng := registry.NewByExtension(scriptPath)
	if err := eng.Initialize(ctx, s.memCap); err != nil {
		return nil, fmt.Errorf("hostapi: initialize %s: %w", eng.Name(), err)
	}
	if err := eng.CompileScript(ctx, source); err != nil {
		eng.Destroy()
		return nil, fmt.Errorf("hostapi: compile script: %w", err)
	}
	s.direct = eng
	return s, nil
}

// BindConstant exposes a read-only global the guest can reference by
// name. On a sandboxed session it is replayed into every child forked for
// this session after the call; a child that is already warm does not
// receive it.
func (s *Session) BindConstant(ctx context.Context, name string, v value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("hostapi: session closed")
	}
	s.bindings = append(s.bindings, binding{name: name, value: v})
	if s.direct != nil {
		return s.direct.DefineConstant(ctx, name, v)
	}
	return nil
}

// BindFunction exposes a host-implemented native function the guest can
// call by name. paramTypes and returnType are type descriptors (spec §6):
// short strings of single-letter codes (v/i/f/b/s, `[` for array)
// concatenated positionally. fn is wrapped once here so every call path —
// the sandboxed CALLBACK dispatch and the direct in-process path alike —
// gets its arguments and return value coerced at this one boundary (spec
// §4.1, property 3) before reaching the guest-visible callable.
func (s *Session) BindFunction(ctx context.Context, name, paramTypes, returnType string, fn value.Callable) error {
	paramKinds, arity, err := engine.ParseSignature(paramTypes)
	if err != nil {
		return fmt.Errorf("hostapi: bind %q: %w", name, err)
	}
	returnKind, err := engine.ParseReturnSignature(returnType)
	if err != nil {
		return fmt.Errorf("hostapi: bind %q: %w", name, err)
	}
	wrapped := engine.WrapCoercion(paramKinds, returnKind, fn)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("hostapi: session closed")
	}
	s.parent.Define(name, value.FunctionValue(&value.Function{Name: name, Arity: arity, Call: wrapped}))
	s.bindings = append(s.bindings, binding{name: name, fn: wrapped, arity: arity})
	if s.direct != nil {
		return s.direct.DefineFunction(ctx, name, arity, wrapped)
	}
	return nil
}

// IsFunction reports whether name resolves to a callable guest global.
func (s *Session) IsFunction(ctx context.Context, name string) (ok bool, err error) {
	if s.direct != nil {
		return s.direct.IsFunction(ctx, name)
	}
	ps, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer s.release(ps, &err)
	ok, err = ps.Supervisor.(engine.Engine).IsFunction(ctx, name)
	return ok, err
}

// Preflight validates every name in names resolves to a callable guest
// function, probing all of them concurrently via errgroup rather than one
// at a time. A caller that's about to drive a batch of sandboxed calls can
// use this to fail fast on a typo'd entry point before paying for a fork.
func (s *Session) Preflight(ctx context.Context, names []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			ok, err := s.IsFunction(gctx, name)
			if err != nil {
				return fmt.Errorf("preflight %q: %w", name, err)
			}
			if !ok {
				return fmt.Errorf("preflight %q: not a function", name)
			}
			return nil
		})
	}
	return g.Wait()
}

// Call invokes name with args, enforcing the circuit breaker and deadline
// and recording the outcome in internal/metrics and internal/observability.
func (s *Session) Call(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	if !atomic.CompareAndSwapInt32(&s.inCall, 0, 1) {
		return value.VoidValue(), &engine.ReentrancyError{}
	}
	defer atomic.StoreInt32(&s.inCall, 0)

	if s.breaker != nil && !s.breaker.Allow() {
		return value.VoidValue(), ErrBreakerOpen
	}

	ctx, span := observability.StartSpan(ctx, "call_function",
		observability.AttrEngine.String(s.extension),
		observability.AttrFunction.String(name),
		observability.AttrSandboxed.Bool(s.sandboxed),
	)
	defer span.End()

	start := time.Now()
	result, err := s.call(ctx, name, args)
	durationMs := time.Since(start).Milliseconds()

	isTimeout := isTimeoutError(err)
	isReentrant := isReentrancyError(err)
	success := err == nil

	if s.breaker != nil {
		if success {
			s.breaker.RecordSuccess()
		} else {
			s.breaker.RecordFailure()
		}
	}
	metrics.Global().RecordCall(s.extension, "call_function", durationMs, isTimeout, isReentrant, success)

	entry := &logging.CallLog{
		RequestID:  uuid.NewString(),
		Engine:     s.extension,
		Operation:  "call_function",
		Function:   name,
		DurationMs: durationMs,
		Sandboxed:  s.sandboxed,
		Success:    success,
		Timeout:    isTimeout,
		Reentrant:  isReentrant,
	}
	if err != nil {
		entry.Error = err.Error()
		observability.SetSpanError(span, err)
	} else {
		observability.SetSpanOK(span)
	}
	logging.Default().Log(entry)

	return result, err
}

func (s *Session) call(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	if s.direct != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.direct.CallFunction(ctx, name, args)
	}

	ps, err := s.acquire(ctx)
	if err != nil {
		return value.VoidValue(), err
	}
	eng := ps.Supervisor.(engine.Engine)
	result, callErr := eng.CallFunction(ctx, name, args)
	s.release(ps, &callErr)
	return result, callErr
}

// acquire obtains a warm or freshly forked supervisor for this script's
// key, passing the cold-start parameters through the context so
// Host.coldStart can replay bindings and compile on a cache miss.
func (s *Session) acquire(ctx context.Context) (*pool.PooledSupervisor, error) {
	s.mu.Lock()
	bindings := append([]binding(nil), s.bindings...)
	s.mu.Unlock()

	ctx = withColdStart(ctx, coldStartParams{
		extension:    s.extension,
		source:       s.source,
		memoryCap:    s.memCap,
		callDeadline: s.deadline,
		parent:       s.parent,
		bindings:     bindings,
	})
	return s.host.pool.Acquire(ctx, s.scriptKey)
}

// release returns ps to the pool on success, or evicts it when *errp
// indicates the child is no longer trustworthy (died, timed out, or wire
// protocol failure).
func (s *Session) release(ps *pool.PooledSupervisor, errp *error) {
	if *errp != nil && isFatalToSupervisor(*errp) {
		s.host.pool.Evict(ps)
		return
	}
	s.host.pool.Release(ps)
}

func isFatalToSupervisor(err error) bool {
	switch err.(type) {
	case *engine.ChildDiedError, *engine.TimeoutError, *engine.LockdownError:
		return true
	default:
		return false
	}
}

func isTimeoutError(err error) bool {
	_, ok := err.(*engine.TimeoutError)
	return ok
}

func isReentrancyError(err error) bool {
	_, ok := err.(*engine.ReentrancyError)
	return ok
}

// CallWithTimeout is a convenience wrapper around Call that bounds the
// call with its own deadline instead of the session's configured default,
// without mutating session state other callers might rely on.
func (s *Session) CallWithTimeout(ctx context.Context, d time.Duration, name string, args []value.Value) (value.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Call(ctx, name, args)
}

// Close releases the session's resources. For a direct session this
// destroys the engine; for a sandboxed session it evicts every warm
// supervisor holding this script's compiled program.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.direct != nil {
		return s.direct.Destroy()
	}
	s.host.pool.EvictKey(s.scriptKey)
	return nil
}
