// Package invoker implements the final stage described in spec §4.6:
// locate the Main(System.String[]) entry point across every class in a
// module, wrap the process argument vector into the managed string-array
// shape a generated Main expects, and dispatch a call into either
// compiled native code (managed) or the ABI registry (unmanaged).
//
// original_source/Runtime/main.cpp's repeated iterations all build argv
// by allocating one array slot per argument plus a length-prefixed
// header before ever jumping into generated code; WrapArgs below mirrors
// that exactly rather than leaving the shape of Main's single argument
// unspecified.
package invoker

import (
	"math"
	"unsafe"

	"github.com/cwbudde/go-ual/internal/constpool"
	"github.com/cwbudde/go-ual/internal/diag"
	"github.com/cwbudde/go-ual/internal/emitter"
	"github.com/cwbudde/go-ual/internal/gcshim"
	"github.com/cwbudde/go-ual/internal/module"
	"github.com/cwbudde/go-ual/internal/types"
	"github.com/cwbudde/go-ual/pkg/ualobj"
)

// Runner is the subset of the reference Emitter backend the Invoker
// needs to actually execute a compiled method: CodeGen only needs the
// abstract Emitter vocabulary to produce code, but running it back is a
// reference-backend-only concern (a real native backend would instead
// hand back a callable function pointer here).
type Runner interface {
	Run(fn emitter.FuncHandle, args []uint64, hooks emitter.Hooks) (uint64, error)
}

// Invoker dispatches calls into a compiled module: managed methods run
// through Runner, unmanaged ones resolve directly through the module's
// ABI registry.
type Invoker struct {
	mod    *module.Module
	runner Runner
	gc     gcshim.GC
}

// New creates an Invoker bound to mod's already-CodeGen'd methods. gc may
// be nil if the module contains no managed method with a string local or
// constant (the write-barrier and constant-pool lifecycle calls become
// no-ops in that case).
func New(mod *module.Module, runner Runner, gc gcshim.GC) *Invoker {
	return &Invoker{mod: mod, runner: runner, gc: gc}
}

// FindMain compiles every class in the module and returns the single
// method whose signature is methodName == "Main" with one
// System.String[] argument (spec §4.6). MissingEntryPoint if none
// qualifies.
func (inv *Invoker) FindMain() (*module.Method, error) {
	for _, name := range inv.mod.ClassNames() {
		if _, err := inv.mod.CompileClass(name); err != nil {
			return nil, err
		}
	}
	for _, m := range inv.mod.AllMethods() {
		if m.Signature.IsMain() {
			return m, nil
		}
	}
	return nil, diag.New(diag.MissingEntryPoint, diag.Site{}, "no Main(System.String[]) method found in module")
}

// WrapArgs builds the managed System.String[] header+body Main expects
// from a process argument vector: one array slot per argument behind an
// ArrayHeader carrying the element count, each slot itself a
// ualobj.StringHeader over the argument's bytes (original_source's
// main.cpp argv-wrapping convention). The reference backend only threads
// these through as host-side Go values; a real backend would instead
// lay this out as contiguous GC-managed memory before invocation.
func WrapArgs(argv []string) (ualobj.ArrayHeader, []ualobj.StringHeader) {
	header := ualobj.ArrayHeader{Tag: ualobj.TagStringArray, Length: int32(len(argv)), ElemIsRef: true}
	elems := make([]ualobj.StringHeader, len(argv))
	for i, a := range argv {
		data := []byte(a)
		var ptr unsafe.Pointer
		if len(data) > 0 {
			ptr = unsafe.Pointer(&data[0])
		}
		elems[i] = ualobj.StringHeader{Tag: ualobj.TagString, Len: int32(len(data)), Data: ptr}
	}
	return header, elems
}

// Invoke dispatches a call to method with positional argument words
// (the reference backend's calling convention: each argument is one
// 64-bit word, string arguments carried alongside via hooks.Call's `any`
// boxing rather than through this word array — see emitter.Hooks.Call).
// Managed methods run through Runner; unmanaged ones are resolved
// directly against the module's ABI registry and called once, bypassing
// the tape interpreter entirely.
func (inv *Invoker) Invoke(method *module.Method, args []uint64) (uint64, error) {
	if !method.IsManaged {
		fn, ok := inv.mod.Runtime.ABI.Lookup(method.Signature.MethodName)
		if !ok {
			return 0, diag.New(diag.UnresolvedExtern, method.Site(-1), "extern %q is not registered", method.Signature.MethodName)
		}
		_, argTypes, err := method.ResolveTypes(inv.mod.Runtime.Types)
		if err != nil {
			return 0, err
		}
		boxed := make([]any, len(args))
		for i, v := range args {
			if i < len(argTypes) && argTypes[i].Name == types.Double {
				boxed[i] = math.Float64frombits(v)
			} else {
				boxed[i] = int32(uint32(v))
			}
		}
		_, err = fn(boxed)
		return 0, err
	}

	fn, ok := method.EmittedEntry.(emitter.FuncHandle)
	if !ok {
		return 0, diag.New(diag.MalformedUAL, method.Site(-1), "method %q was never compiled", method.Name())
	}

	if pool, ok := method.ConstPool.(*constpool.Pool); ok && inv.gc != nil {
		if err := pool.MarkAll(inv.gc); err != nil {
			return 0, err
		}
		defer pool.Release(inv.gc)
	}

	hooks := emitter.Hooks{GC: inv.gc, Call: inv.callExternal}
	return inv.runner.Run(fn, args, hooks)
}

// callExternal is the emitter.Hooks.Call bridge every managed method's
// CallExternal instructions dispatch through: it resolves the extern by
// bare name against the module's ABI registry, exactly as
// module.ResolveImport already established is the only part of an
// extern's signature the registry actually keys on.
func (inv *Invoker) callExternal(name string, args []any) (any, error) {
	fn, ok := inv.mod.Runtime.ABI.Lookup(name)
	if !ok {
		return nil, diag.New(diag.UnresolvedExtern, diag.Site{}, "extern %q is not registered in the ABI registry", name)
	}
	return fn(args)
}
