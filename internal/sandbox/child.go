package sandbox

import (
	"context"
	"fmt"
	"os"

	"github.com/oriys/novasandbox/internal/callback"
	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/lockdown"
	"github.com/oriys/novasandbox/internal/registry"
	"github.com/oriys/novasandbox/internal/value"
	"github.com/oriys/novasandbox/internal/wire"
)

// childCmdFD and childRespFD are the descriptor numbers the parent wires
// via exec.Cmd.ExtraFiles (spec §4.5): index 0 of ExtraFiles always lands
// on fd 3, index 1 on fd 4.
const (
	childCmdFD  = 3
	childRespFD = 4
)

// RunChild is the body of the re-exec'd sandbox child (cmd/novasandbox's
// hidden --sandbox-child mode dispatches here). It never returns to a
// caller expecting further work: the result is the process exit code.
func RunChild(extension string, memoryCapBytes int64) int {
	cmdFile := os.NewFile(childCmdFD, "sandbox-cmd")
	respFile := os.NewFile(childRespFD, "sandbox-resp")
	if cmdFile == nil || respFile == nil {
		return ExitAdapterInitOrProto
	}

	reader := wire.NewReader(cmdFile, wire.DefaultLimits())
	writer := wire.NewWriter(respFile)
	ctx := context.Background()

	adapter := registry.NewByExtension("script" + extension)

	// Step 1 (spec §4.5): initialize while syscalls are still
	// unrestricted. goja and gopher-lua manage their own heaps through
	// the Go runtime allocator rather than an explicit mmap arena, so
	// there is no separate pre-lockdown mmap step to fail in this
	// implementation; ExitPreLockdownMmapFail is reserved for an adapter
	// that does reserve one.
	if err := adapter.Initialize(ctx, memoryCapBytes); err != nil {
		writer.WriteError(err.Error())
		if _, ok := err.(*engine.OutOfMemoryError); ok {
			return ExitOutOfMemory
		}
		return ExitAdapterInitOrProto
	}

	// Step 2: redirect adapter logging to LOG frames instead of the
	// inherited stderr, now that the response pipe is the only channel
	// the parent is listening on for this child.
	adapter.SetLogger(logSinkLogger{writer: writer})

	// Step 3: enter lockdown. No further file I/O of any kind succeeds
	// after this, including open — everything the adapter needs must
	// already be resident.
	if err := lockdown.Apply(lockdown.Config{MemoryCapBytes: memoryCapBytes}); err != nil {
		writer.WriteError(err.Error())
		return ExitInitRefused
	}

	// Step 4: readiness handshake. The parent's Initialize blocks
	// reading exactly this one frame.
	if err := writer.WriteReturn(); err != nil {
		return ExitAdapterInitOrProto
	}

	// Step 5: command loop.
	return runChildLoop(ctx, adapter, reader, writer)
}

func runChildLoop(ctx context.Context, adapter engine.Engine, reader *wire.Reader, writer *wire.Writer) int {
	proxies := callback.NewChildTable()

	for {
		cmd, err := reader.ReadCommand()
		if err != nil {
			// EOF on the command pipe means the parent is gone (Destroy
			// closed its write end); exit cleanly rather than treat it
			// as a protocol violation.
			return ExitNormal
		}

		var cmdErr error
		switch cmd {
		case wire.DefineConstant:
			cmdErr = handleDefineConstant(ctx, adapter, reader, writer)
		case wire.DefineFunction:
			cmdErr = handleDefineFunction(ctx, adapter, reader, writer, proxies)
		case wire.CompileScript:
			cmdErr = handleCompileScript(ctx, adapter, reader, writer)
		case wire.IsFunction:
			cmdErr = handleIsFunction(ctx, adapter, reader, writer)
		case wire.CallFunction:
			cmdErr = handleCallFunction(ctx, adapter, reader, writer)
		default:
			cmdErr = writer.WriteError(fmt.Sprintf("unknown command %v", cmd))
		}
		if cmdErr != nil {
			return ExitAdapterInitOrProto
		}
	}
}

func handleDefineConstant(ctx context.Context, adapter engine.Engine, reader *wire.Reader, writer *wire.Writer) error {
	name, err := reader.ReadString()
	if err != nil {
		return err
	}
	v, err := reader.ReadValue()
	if err != nil {
		return err
	}
	if err := adapter.DefineConstant(ctx, name, v); err != nil {
		return writer.WriteError(err.Error())
	}
	return writer.WriteReturn()
}

func handleDefineFunction(ctx context.Context, adapter engine.Engine, reader *wire.Reader, writer *wire.Writer, proxies *callback.ChildTable) error {
	name, err := reader.ReadString()
	if err != nil {
		return err
	}
	arityByte, err := reader.ReadByte()
	if err != nil {
		return err
	}
	arity := int(arityByte)

	proxy := callbackProxy(writer, reader, name)
	proxies.InstallProxy(name, arity, proxy)

	if err := adapter.DefineFunction(ctx, name, arity, proxy); err != nil {
		return writer.WriteError(err.Error())
	}
	return writer.WriteReturn()
}

func handleCompileScript(ctx context.Context, adapter engine.Engine, reader *wire.Reader, writer *wire.Writer) error {
	source, err := reader.ReadString()
	if err != nil {
		return err
	}
	if err := adapter.CompileScript(ctx, source); err != nil {
		return writer.WriteError(err.Error())
	}
	if err := writer.WriteReturn(); err != nil {
		return err
	}
	return writer.WriteByte(1)
}

func handleIsFunction(ctx context.Context, adapter engine.Engine, reader *wire.Reader, writer *wire.Writer) error {
	name, err := reader.ReadString()
	if err != nil {
		return err
	}
	ok, err := adapter.IsFunction(ctx, name)
	if err != nil {
		return writer.WriteError(err.Error())
	}
	if err := writer.WriteReturn(); err != nil {
		return err
	}
	var status byte
	if ok {
		status = 1
	}
	return writer.WriteByte(status)
}

func handleCallFunction(ctx context.Context, adapter engine.Engine, reader *wire.Reader, writer *wire.Writer) error {
	name, err := reader.ReadString()
	if err != nil {
		return err
	}
	argsValue, err := reader.ReadValue()
	if err != nil {
		return err
	}
	result, callErr := adapter.CallFunction(ctx, name, argsValue.AsArray())
	if callErr != nil {
		return writer.WriteError(callErr.Error())
	}
	if err := writer.WriteReturn(); err != nil {
		return err
	}
	return writer.WriteValue(result)
}

// callbackProxy builds the Callable a guest-visible native function runs:
// it frames a CALLBACK request to the parent and blocks for the typed
// reply. The reply is read off the same reader the top-level command loop
// uses; this is safe because the loop is synchronously blocked inside the
// adapter call that triggered the callback, so nothing else reads the
// pipe concurrently. The reply comes from the parent, which this process
// trusts, so it is read unbounded rather than against the Reader's normal
// hostile-child Limits (spec §4.5).
func callbackProxy(writer *wire.Writer, reader *wire.Reader, name string) value.Callable {
	return func(args []value.Value) (value.Value, error) {
		if err := writer.WriteCallback(name, value.ArrayValue(args)); err != nil {
			return value.VoidValue(), err
		}
		reply, err := reader.ReadValueUnlimited()
		if err != nil {
			return value.VoidValue(), err
		}
		return reply, nil
	}
}

// logSinkLogger adapts the wire LOG frame to engine.Logger so adapters
// can keep calling their usual logging hook after stderr is no longer a
// reliable channel under lockdown.
type logSinkLogger struct {
	writer *wire.Writer
}

func (l logSinkLogger) Logf(format string, args ...any) {
	l.writer.WriteLog(fmt.Sprintf(format, args...))
}
