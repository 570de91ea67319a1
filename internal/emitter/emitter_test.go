package emitter

import (
	"math"
	"testing"
)

// TestDeclareThenBeginBindsAtCorrectPosition exercises the two-phase
// declare/begin protocol CodeGen relies on for forward and recursive
// calls: a function declared before anything else is emitted must still
// bind its label at the tape position where its own body starts, not at
// declaration time.
func TestDeclareThenBeginBindsAtCorrectPosition(t *testing.T) {
	p := NewProgram()
	fn := p.DeclareFunction("P::Answer()", 0, 2, true)

	// Some unrelated instruction emitted before the function body, as
	// another method's tail code might be.
	junk := p.NewRegister()
	p.MovImm(junk, 99)

	p.BeginFunction(fn)
	out := p.NewRegister()
	p.MovImm(out, 42)
	p.RetValue(out)

	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	result, err := p.Run(fn, nil, Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != 42 {
		t.Fatalf("Run = %d, want 42", result)
	}
}

// TestCallManagedCallsOtherFunction exercises a managed-to-managed call:
// CallsInc(x) calls Inc(x) and returns its result.
func TestCallManagedCallsOtherFunction(t *testing.T) {
	p := NewProgram()
	incFn := p.DeclareFunction("P::Inc(System.Int32)", 1, 2, true)
	callerFn := p.DeclareFunction("P::CallsInc(System.Int32)", 1, 2, true)

	p.BeginFunction(incFn)
	one := p.NewRegister()
	p.MovImm(one, 1)
	sum := p.NewRegister()
	p.Alu(AluAdd, sum, p.ArgReg(incFn, 0), one)
	p.RetValue(sum)

	p.BeginFunction(callerFn)
	res := p.CallManaged(incFn.Label, []Reg{p.ArgReg(callerFn, 0)}, true)
	p.RetValue(res)

	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	result, err := p.Run(callerFn, []uint64{41}, Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != 42 {
		t.Fatalf("Run = %d, want 42", result)
	}
}

// TestCallExternalBoxesArgsByKind exercises CallExternal's argument
// boxing/unboxing against a stub Hooks.Call, independent of the ABI
// registry.
func TestCallExternalBoxesArgsByKind(t *testing.T) {
	p := NewProgram()
	fn := p.DeclareFunction("P::Main(System.String[])", 0, 2, false)
	p.BeginFunction(fn)

	n := p.NewRegister()
	p.MovImm(n, 7)
	s := p.LoadConstString("seven")
	p.CallExternal("Describe", []Reg{n, s}, []ValKind{KindInt32, KindString}, KindVoid, false)
	p.RetVoid()

	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	var gotN int32
	var gotS string
	hooks := Hooks{Call: func(name string, args []any) (any, error) {
		if name != "Describe" {
			t.Fatalf("unexpected external call %q", name)
		}
		gotN = args[0].(int32)
		gotS = args[1].(string)
		return nil, nil
	}}
	if _, err := p.Run(fn, nil, hooks); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotN != 7 || gotS != "seven" {
		t.Fatalf("Describe called with (%d,%q), want (7,\"seven\")", gotN, gotS)
	}
}

// TestJmpCondTakenAndFallthrough exercises Cmp/JmpCond's both branches.
func TestJmpCondTakenAndFallthrough(t *testing.T) {
	p := NewProgram()
	fn := p.DeclareFunction("P::Sign(System.Int32)", 1, 2, true)
	p.BeginFunction(fn)

	zero := p.NewRegister()
	p.MovImm(zero, 0)
	p.Cmp(p.ArgReg(fn, 0), zero)
	isNeg := p.NewLabel()
	p.JmpCond(CondLT, isNeg)

	out := p.NewRegister()
	p.MovImm(out, 1)
	p.RetValue(out)

	p.BindLabel(isNeg)
	neg := p.NewRegister()
	p.MovImm(neg, 0xFFFFFFFF) // -1 as int32
	p.RetValue(neg)

	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	pos, err := p.Run(fn, []uint64{5}, Hooks{})
	if err != nil {
		t.Fatalf("Run(5): %v", err)
	}
	if int32(uint32(pos)) != 1 {
		t.Fatalf("Sign(5) = %d, want 1", int32(uint32(pos)))
	}

	neg2, err := p.Run(fn, []uint64{0xFFFFFFFD}, Hooks{}) // -3 as int32
	if err != nil {
		t.Fatalf("Run(-3): %v", err)
	}
	if int32(uint32(neg2)) != -1 {
		t.Fatalf("Sign(-3) = %d, want -1", int32(uint32(neg2)))
	}
}

// TestFinalizeRejectsUnboundLabel verifies Finalize catches a Jmp whose
// target was never bound — the backend's own sanity check behind
// CodeGen's branch-target validation.
func TestFinalizeRejectsUnboundLabel(t *testing.T) {
	p := NewProgram()
	fn := p.DeclareFunction("P::Run()", 0, 2, false)
	p.BeginFunction(fn)
	p.Jmp(p.NewLabel()) // never bound
	p.RetVoid()

	if err := p.Finalize(); err == nil {
		t.Fatal("expected Finalize to reject an unbound label")
	}
}

// TestFPURoundTrip exercises FLD/FSTP/FAddP through frame slots directly,
// independent of CodeGen's fpEmit propagation.
func TestFPURoundTrip(t *testing.T) {
	p := NewProgram()
	fn := p.DeclareFunction("P::AddOneHalf(System.Double)", 1, 3, true)
	p.BeginFunction(fn)

	argSlot := Slot(0)
	p.StoreSlot(argSlot, p.ArgReg(fn, 0))
	p.FLD(argSlot)
	half := p.LoadConstDouble(0.5)
	halfSlot := Slot(1)
	p.StoreSlot(halfSlot, half)
	p.FLD(halfSlot)
	p.FAddP()
	p.FSTP(argSlot)
	out := p.NewRegister()
	p.LoadSlot(out, argSlot)
	p.RetValue(out)

	if err := p.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	result, err := p.Run(fn, []uint64{math.Float64bits(2.25)}, Hooks{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := math.Float64frombits(result); got != 2.75 {
		t.Fatalf("AddOneHalf(2.25) = %v, want 2.75", got)
	}
}
