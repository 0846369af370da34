package rbengine

import (
	"context"
	"testing"

	"github.com/oriys/novasandbox/internal/engine"
)

func TestCompileScriptReportsUnavailable(t *testing.T) {
	a := New()
	err := a.CompileScript(context.Background(), "puts 1")
	if _, ok := err.(*engine.CompileError); !ok {
		t.Fatalf("CompileScript error = %v, want *engine.CompileError", err)
	}
	if a.LastError() == "" {
		t.Fatal("LastError() empty after a failed compile")
	}
}
