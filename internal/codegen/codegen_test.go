package codegen

import (
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/go-ual/internal/emitter"
	"github.com/cwbudde/go-ual/internal/module"
	"github.com/cwbudde/go-ual/internal/moduletest"
	"github.com/cwbudde/go-ual/internal/runtime"
)

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// hooksFromRuntime bridges emitter.Hooks.Call to an abi.Registry the way
// the Invoker does, so these tests exercise the same external-call path a
// real run would.
func hooksFromRuntime(rt *runtime.Runtime) emitter.Hooks {
	return emitter.Hooks{
		Call: func(name string, args []any) (any, error) {
			fn, ok := rt.ABI.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("no such extern %q", name)
			}
			return fn(args)
		},
	}
}

func compileModule(t *testing.T, data []byte) (*module.Module, *emitter.Program) {
	t.Helper()
	rt := runtime.New()
	m, err := module.Load(data, rt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prog := emitter.NewProgram()
	if err := New(m, prog).CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	return m, prog
}

func mustEntry(t *testing.T, m *module.Module, cls, method string) emitter.FuncHandle {
	t.Helper()
	c, ok := m.Class(cls)
	if !ok {
		t.Fatalf("class %q not found", cls)
	}
	meth, ok := c.Method(method)
	if !ok {
		t.Fatalf("method %q not found", method)
	}
	fn, ok := meth.EmittedEntry.(emitter.FuncHandle)
	if !ok {
		t.Fatalf("method %q has no emitted entry", method)
	}
	return fn
}

// TestIntegerAdditionEndToEnd runs spec §8 scenario 2 through verify,
// codegen, and the reference interpreter: Add(5,7) == 12.
func TestIntegerAdditionEndToEnd(t *testing.T) {
	var opcodes []byte
	opcodes = append(opcodes, 0) // LDARG 0
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 0) // LDARG 1
	opcodes = append(opcodes, u32le(1)...)
	opcodes = append(opcodes, 8)           // ADD
	opcodes = append(opcodes, 3)           // RET
	opcodes = append(opcodes, 255)

	body := moduletest.ManagedBody(nil, opcodes)
	cls := moduletest.NewClassBuilder().
		AddMethod("System.Int32 P::Add(System.Int32,System.Int32)", body).Bytes()
	data := moduletest.NewModuleBuilder().AddClass("P", cls).Bytes()

	m, prog := compileModule(t, data)
	fn := mustEntry(t, m, "P", "Add")

	result, err := prog.Run(fn, []uint64{5, 7}, emitter.Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if int32(uint32(result)) != 12 {
		t.Fatalf("Add(5,7) = %d, want 12", int32(uint32(result)))
	}
}

// TestDoubleMultiplicationEndToEnd runs spec §8 scenario 3: Mul(2.5,4.0)
// == 10.0, exercising the FPU-stack emission path end to end.
func TestDoubleMultiplicationEndToEnd(t *testing.T) {
	var opcodes []byte
	opcodes = append(opcodes, 0)
	opcodes = append(opcodes, u32le(0)...) // LDARG 0
	opcodes = append(opcodes, 0)
	opcodes = append(opcodes, u32le(1)...) // LDARG 1
	opcodes = append(opcodes, 16)          // MUL
	opcodes = append(opcodes, 3)           // RET
	opcodes = append(opcodes, 255)

	body := moduletest.ManagedBody(nil, opcodes)
	cls := moduletest.NewClassBuilder().
		AddMethod("System.Double P::Mul(System.Double,System.Double)", body).Bytes()
	data := moduletest.NewModuleBuilder().AddClass("P", cls).Bytes()

	m, prog := compileModule(t, data)
	fn := mustEntry(t, m, "P", "Mul")

	a := math.Float64bits(2.5)
	b := math.Float64bits(4.0)
	result, err := prog.Run(fn, []uint64{a, b}, emitter.Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := math.Float64frombits(result); got != 10.0 {
		t.Fatalf("Mul(2.5,4.0) = %v, want 10.0", got)
	}
}

// TestLoopSumEndToEnd runs spec §8 scenario 4's full loop body (not just
// the verifier's branch-target bookkeeping): Sum(5) == 0+1+2+3+4+5 == 15.
func TestLoopSumEndToEnd(t *testing.T) {
	// locals: [0]=sum, [1]=i
	var opcodes []byte
	opcodes = append(opcodes, 4) // LDC.I4 0
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 5) // STLOC 0 (sum = 0)
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 4) // LDC.I4 0
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 5) // STLOC 1 (i = 0)
	opcodes = append(opcodes, u32le(1)...)

	loopHead := len(opcodes)
	opcodes = append(opcodes, 7) // LDLOC 1 (i)
	opcodes = append(opcodes, u32le(1)...)
	opcodes = append(opcodes, 0) // LDARG 0 (n)
	opcodes = append(opcodes, u32le(0)...)

	bgtOffset := len(opcodes)
	opcodes = append(opcodes, 13) // BGT <exit>  (if i > n, exit)
	opcodes = append(opcodes, u32le(0)...)

	opcodes = append(opcodes, 7) // LDLOC 0 (sum)
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 7) // LDLOC 1 (i)
	opcodes = append(opcodes, u32le(1)...)
	opcodes = append(opcodes, 8) // ADD
	opcodes = append(opcodes, 5) // STLOC 0 (sum = sum + i)
	opcodes = append(opcodes, u32le(0)...)

	opcodes = append(opcodes, 7) // LDLOC 1 (i)
	opcodes = append(opcodes, u32le(1)...)
	opcodes = append(opcodes, 4) // LDC.I4 1
	opcodes = append(opcodes, u32le(1)...)
	opcodes = append(opcodes, 8) // ADD
	opcodes = append(opcodes, 5) // STLOC 1 (i = i + 1)
	opcodes = append(opcodes, u32le(1)...)

	opcodes = append(opcodes, 6) // BR <loopHead>
	opcodes = append(opcodes, u32le(uint32(loopHead))...)

	exitOffset := len(opcodes)
	opcodes = append(opcodes, 7) // LDLOC 0 (sum)
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 3) // RET
	opcodes = append(opcodes, 255)

	target := u32le(uint32(exitOffset))
	copy(opcodes[bgtOffset+1:bgtOffset+5], target)

	body := moduletest.ManagedBody([]string{"System.Int32", "System.Int32"}, opcodes)
	cls := moduletest.NewClassBuilder().
		AddMethod("System.Int32 P::Sum(System.Int32)", body).Bytes()
	data := moduletest.NewModuleBuilder().AddClass("P", cls).Bytes()

	m, prog := compileModule(t, data)
	fn := mustEntry(t, m, "P", "Sum")

	result, err := prog.Run(fn, []uint64{5}, emitter.Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if int32(uint32(result)) != 15 {
		t.Fatalf("Sum(5) = %d, want 15", int32(uint32(result)))
	}

	result0, err := prog.Run(fn, []uint64{0}, emitter.Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if int32(uint32(result0)) != 0 {
		t.Fatalf("Sum(0) = %d, want 0", int32(uint32(result0)))
	}
}

// TestHelloWorldEndToEnd runs spec §8 scenario 1 through a real
// CallExternal dispatch into the ABI registry's ConsoleOut.
func TestHelloWorldEndToEnd(t *testing.T) {
	var opcodes []byte
	opcodes = append(opcodes, 2)
	opcodes = append(opcodes, []byte("hi")...)
	opcodes = append(opcodes, 0)
	opcodes = append(opcodes, 1) // CALL
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 3) // RET
	opcodes = append(opcodes, 255)

	body := moduletest.ManagedBody(nil, opcodes)
	cls := moduletest.NewClassBuilder().AddMethod("System.Void P::Main(System.String[])", body).Bytes()
	data := moduletest.NewModuleBuilder().
		AddClass("P", cls).
		AddImport(0, "System.Void ABI::ConsoleOut(System.String)").
		Bytes()

	rt := runtime.New()
	m, err := module.Load(data, rt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prog := emitter.NewProgram()
	if err := New(m, prog).CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	fn := mustEntry(t, m, "P", "Main")

	var captured string
	rt.ABI.Register("ConsoleOut", func(args []any) (any, error) {
		captured = args[0].(string)
		return nil, nil
	})
	if _, err := prog.Run(fn, nil, hooksFromRuntime(rt)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if captured != "hi" {
		t.Fatalf("captured = %q, want %q", captured, "hi")
	}
}

// TestStringConstantDedupPoolSize runs spec §8 scenario 5: two LDSTR of
// the same text intern to a single entry in the method's constant pool.
func TestStringConstantDedupPoolSize(t *testing.T) {
	var opcodes []byte
	opcodes = append(opcodes, 2)
	opcodes = append(opcodes, []byte("xx")...)
	opcodes = append(opcodes, 0)
	opcodes = append(opcodes, 1) // CALL
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 2)
	opcodes = append(opcodes, []byte("xx")...)
	opcodes = append(opcodes, 0)
	opcodes = append(opcodes, 1) // CALL
	opcodes = append(opcodes, u32le(0)...)
	opcodes = append(opcodes, 3)
	opcodes = append(opcodes, 255)

	body := moduletest.ManagedBody(nil, opcodes)
	cls := moduletest.NewClassBuilder().AddMethod("System.Void P::Main(System.String[])", body).Bytes()
	data := moduletest.NewModuleBuilder().
		AddClass("P", cls).
		AddImport(0, "System.Void ABI::ConsoleOut(System.String)").
		Bytes()

	rt := runtime.New()
	m, err := module.Load(data, rt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prog := emitter.NewProgram()
	if err := New(m, prog).CompileAll(); err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	c, _ := m.Class("P")
	meth, _ := c.Method("Main")
	pool, ok := meth.ConstPool.(interface{ Len() int })
	if !ok {
		t.Fatalf("Main has no usable ConstPool")
	}
	if pool.Len() != 1 {
		t.Fatalf("ConstPool.Len() = %d, want 1 (dedup of two \"xx\" literals)", pool.Len())
	}
}
