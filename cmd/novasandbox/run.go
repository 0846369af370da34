package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/novasandbox/internal/config"
	"github.com/oriys/novasandbox/internal/hostapi"
	"github.com/oriys/novasandbox/internal/value"
)

func runCmd() *cobra.Command {
	var (
		function    string
		argsJSON    string
		sandboxed   bool
		timeoutS    int
		memoryCapMB int
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Compile a script and call one of its functions",
		Long:  "Compiles the script at <script>, discovers the named entry point, calls it with a JSON array of arguments, and prints the result's diagnostic dump (Value.Dump).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scriptPath := args[0]

			source, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}

			cfg := config.DefaultConfig()
			if configPath != "" {
				loaded, err := config.LoadFromFile(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			if memoryCapMB > 0 {
				cfg.Limits.ChildMemoryCap = int64(memoryCapMB) * 1024 * 1024
			}
			if timeoutS > 0 {
				cfg.Limits.CallDeadline = time.Duration(timeoutS) * time.Second
			}

			ctx := context.Background()
			host, err := hostapi.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("start host: %w", err)
			}
			defer host.Shutdown(ctx)

			session, err := host.Compile(ctx, scriptPath, string(source), hostapi.Options{Sandboxed: sandboxed})
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}
			defer session.Close()

			if function == "" {
				fmt.Println("script compiled successfully")
				return nil
			}

			ok, err := session.IsFunction(ctx, function)
			if err != nil {
				return fmt.Errorf("check function %q: %w", function, err)
			}
			if !ok {
				return fmt.Errorf("script does not define a function named %q", function)
			}

			callArgs, err := decodeArgs(argsJSON)
			if err != nil {
				return fmt.Errorf("decode args: %w", err)
			}

			result, err := session.CallWithTimeout(ctx, cfg.Limits.CallDeadline, function, callArgs)
			if err != nil {
				return fmt.Errorf("call %s: %w", function, err)
			}

			fmt.Println(result.Dump())
			return nil
		},
	}

	cmd.Flags().StringVar(&function, "call", "", "name of the guest function to call after compiling")
	cmd.Flags().StringVar(&argsJSON, "args", "[]", "JSON array of arguments to pass to the called function")
	cmd.Flags().BoolVar(&sandboxed, "sandbox", true, "run the script inside a locked-down child process")
	cmd.Flags().IntVar(&timeoutS, "timeout", 0, "call deadline in seconds, overriding config")
	cmd.Flags().IntVar(&memoryCapMB, "memory-mb", 0, "child memory cap in megabytes, overriding config")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	return cmd
}

// decodeArgs turns a JSON array into the canonical argument Values the
// call protocol expects: numbers become Float32, strings String, bools
// Bool, arrays Array, and null Void.
func decodeArgs(argsJSON string) ([]value.Value, error) {
	var raw []any
	if err := json.Unmarshal([]byte(argsJSON), &raw); err != nil {
		return nil, err
	}
	out := make([]value.Value, len(raw))
	for i, v := range raw {
		out[i] = jsonToValue(v)
	}
	return out, nil
}

func jsonToValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.VoidValue()
	case bool:
		return value.BoolValue(t)
	case float64:
		return value.Float32Value(float32(t))
	case string:
		return value.StringValue(t)
	case []any:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = jsonToValue(e)
		}
		return value.ArrayValue(elems)
	default:
		return value.VoidValue()
	}
}
