package registry

import "testing"

func TestNewByExtensionSelectsAdapter(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"script.js", "js"},
		{"script.py", "py"},
		{"script.rb", "rb"},
		{"script.lua", "lua"},
		{"script", "js"},
		{"SCRIPT.LUA", "lua"},
	}

	for _, tc := range cases {
		eng := NewByExtension(tc.path)
		if eng.Name() != tc.want {
			t.Errorf("NewByExtension(%q).Name() = %q, want %q", tc.path, eng.Name(), tc.want)
		}
	}
}

func TestExtensionOf(t *testing.T) {
	cases := map[string]string{
		"a.py":  ".py",
		"a.rb":  ".rb",
		"a.lua": ".lua",
		"a.js":  ".js",
		"a":     ".js",
	}
	for path, want := range cases {
		if got := ExtensionOf(path); got != want {
			t.Errorf("ExtensionOf(%q) = %q, want %q", path, got, want)
		}
	}
}
