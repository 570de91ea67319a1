// Package abi implements the process-wide external native ABI registry
// (spec §6): a name -> host function-pointer map, populated once at
// startup with the three built-in externs and whatever the host embedder
// registers. The registry is read-only from the moment the first module
// begins emission (spec §5).
package abi

import "fmt"

// HostFunc is the Go-side shape of a registered external. The real
// runtime's generated code calls through a native function pointer; in
// this module the host function *is* the Go closure, since the actual
// native ABI thunking is the Emitter/Invoker's concern (spec §1's
// out-of-scope (d): "the external native ABI registry mapping external
// method names to host function pointers" — we model the map itself and
// its built-in entries, not the native calling-convention glue).
type HostFunc func(args []any) (any, error)

// ExternInfo is optional metadata describing a registered extern, loaded
// from a YAML manifest (SPEC_FULL §10) and returned by Registry.Info — it
// never substitutes for the actual HostFunc registration.
type ExternInfo struct {
	Name string `yaml:"name"`
	Doc  string `yaml:"doc"`
}

// Registry is the name -> HostFunc map plus optional ExternInfo metadata.
type Registry struct {
	funcs map[string]HostFunc
	info  map[string]ExternInfo
}

// NewRegistry creates a Registry with the three built-in externs
// registered (spec §6).
func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]HostFunc),
		info:  make(map[string]ExternInfo),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register("ConsoleOut", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abi: ConsoleOut expects 1 argument, got %d", len(args))
		}
		fmt.Print(args[0])
		return nil, nil
	})
	r.Register("PrintInt", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abi: PrintInt expects 1 argument, got %d", len(args))
		}
		fmt.Print(args[0])
		return nil, nil
	})
	r.Register("PrintDouble", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abi: PrintDouble expects 1 argument, got %d", len(args))
		}
		fmt.Print(args[0])
		return nil, nil
	})
}

// Register adds (or overwrites) a host function binding. Host embedders
// call this before the first module loads; doing so afterward is
// unsupported (spec §5).
func (r *Registry) Register(name string, fn HostFunc) {
	r.funcs[name] = fn
}

// RegisterInfo attaches diagnostic metadata to an already-registered (or
// not-yet-registered) extern name.
func (r *Registry) RegisterInfo(info ExternInfo) {
	r.info[info.Name] = info
}

// Lookup resolves a host function by name. ok is false if the name was
// never registered — callers report this as UnresolvedExtern (spec §7).
func (r *Registry) Lookup(name string) (HostFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Info returns the diagnostic metadata for name, if any was loaded from a
// manifest.
func (r *Registry) Info(name string) (ExternInfo, bool) {
	info, ok := r.info[name]
	return info, ok
}

// Names returns every registered extern name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}
