package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oriys/novasandbox/internal/sandbox"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == sandbox.ChildModeFlag {
		os.Exit(runSandboxChild())
	}

	rootCmd := &cobra.Command{
		Use:   "novasandbox",
		Short: "Run a guest script under the novasandbox interpreter sandbox",
		Long:  "Test harness for compiling and calling JavaScript, Lua, Python, and Ruby scripts through a uniform, optionally locked-down sandbox.",
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runSandboxChild dispatches into the re-exec'd child event loop. It reads
// the extension and memory cap the parent passed via environment
// variables (internal/sandbox.ChildEnv*), since the hidden subcommand flag
// is the only argument the parent controls precisely through exec.Command.
func runSandboxChild() int {
	extension := os.Getenv(sandbox.ChildEnvExtension)
	memCapStr := os.Getenv(sandbox.ChildEnvMemoryCap)
	memCap, err := strconv.ParseInt(memCapStr, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandbox child: invalid memory cap %q: %v\n", memCapStr, err)
		return sandbox.ExitAdapterInitOrProto
	}
	return sandbox.RunChild(extension, memCap)
}
