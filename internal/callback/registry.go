package callback

import (
	"fmt"

	"github.com/oriys/novasandbox/internal/value"
)

// ParentTable maps a callback name to the actual Function value the host
// defined. The sandbox supervisor consults it whenever the child issues a
// CALLBACK frame.
type ParentTable struct {
	table *HashTable[string, value.Value]
}

func NewParentTable() *ParentTable {
	return &ParentTable{table: New[string, value.Value](StringKey)}
}

// Define registers a host-side callback or constant under name. Defining
// the same name twice replaces the binding a future lookup sees, since
// HashTable.Get always returns the most recently inserted match.
func (p *ParentTable) Define(name string, v value.Value) {
	p.table.Put(name, v)
}

// Lookup resolves a callback name to its Value, reporting false when the
// child references a name the host never registered.
func (p *ParentTable) Lookup(name string) (value.Value, bool) {
	return p.table.Get(name)
}

// Invoke looks up name and, if it is callable, dispatches args to it.
func (p *ParentTable) Invoke(name string, args []value.Value) (value.Value, error) {
	v, ok := p.table.Get(name)
	if !ok {
		return value.VoidValue(), fmt.Errorf("callback: no such host function %q", name)
	}
	fn := v.AsFunction()
	if fn == nil || fn.Call == nil {
		return value.VoidValue(), fmt.Errorf("callback: %q is not callable", name)
	}
	return fn.Call(args)
}

// Names lists every registered callback name, for installing proxy
// functions on the child side before the first script compiles.
func (p *ParentTable) Names() []string {
	names := make([]string, 0, p.table.Count())
	p.table.ForEach(func(k string, _ value.Value) { names = append(names, k) })
	return names
}

// ChildTable maps a callback name to a proxy Function value that, when
// invoked from inside the guest engine, frames a CALLBACK request on the
// write pipe and blocks for the typed Value response.
type ChildTable struct {
	table *HashTable[string, value.Value]
}

func NewChildTable() *ChildTable {
	return &ChildTable{table: New[string, value.Value](StringKey)}
}

// InstallProxy registers a proxy Function for name. call is invoked by
// the guest engine's native-function binding; it is expected to frame
// and send the CALLBACK request itself (internal/sandbox child loop).
func (c *ChildTable) InstallProxy(name string, arity int, call value.Callable) {
	c.table.Put(name, value.FunctionValue(&value.Function{Name: name, Arity: arity, Call: call}))
}

// Lookup resolves a previously installed proxy.
func (c *ChildTable) Lookup(name string) (value.Value, bool) {
	return c.table.Get(name)
}

// Names lists every installed proxy name, used to bind each one onto a
// freshly constructed engine instance before compiling guest source.
func (c *ChildTable) Names() []string {
	names := make([]string, 0, c.table.Count())
	c.table.ForEach(func(k string, _ value.Value) { names = append(names, k) })
	return names
}
