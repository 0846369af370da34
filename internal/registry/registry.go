// Package registry selects an engine adapter by script file extension.
package registry

import (
	"path/filepath"
	"strings"

	"github.com/oriys/novasandbox/internal/engine"
	"github.com/oriys/novasandbox/internal/engine/jsengine"
	"github.com/oriys/novasandbox/internal/engine/luaengine"
	"github.com/oriys/novasandbox/internal/engine/pyengine"
	"github.com/oriys/novasandbox/internal/engine/rbengine"
)

// Factory constructs a fresh, uninitialized engine adapter.
type Factory func() engine.Engine

var byExtension = map[string]Factory{
	".py":  func() engine.Engine { return pyengine.New() },
	".rb":  func() engine.Engine { return rbengine.New() },
	".lua": func() engine.Engine { return luaengine.New() },
}

// NewByExtension returns a fresh engine adapter chosen by the script's
// file extension: .py, .rb, .lua select their respective adapters;
// anything else, including no extension at all, selects JavaScript.
func NewByExtension(path string) engine.Engine {
	ext := strings.ToLower(filepath.Ext(path))
	if factory, ok := byExtension[ext]; ok {
		return factory()
	}
	return jsengine.New()
}

// ExtensionOf normalizes a script path to the extension key used to
// select and pool its engine (".js" for anything unrecognized).
func ExtensionOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".py", ".rb", ".lua":
		return ext
	default:
		return ".js"
	}
}
