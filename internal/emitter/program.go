package emitter

import "fmt"

// Program is the reference Emitter: a single flat instruction tape shared
// by every method CodeGen compiles in one run, so a managed Call can
// target any other method's label regardless of which class emitted it
// (spec §4.6 cross-class resolution happens at the Module/Invoker level;
// this just means the reference backend doesn't need per-class linking).
type Program struct {
	tape        []instr
	numRegs     int
	numLabels   int
	labelPos    map[Label]int
	funcByName  map[string]FuncHandle
	funcByLabel map[Label]FuncHandle
}

// NewProgram creates an empty Program ready to accept one CodeGen run's
// worth of methods.
func NewProgram() *Program {
	return &Program{
		labelPos:    make(map[Label]int),
		funcByName:  make(map[string]FuncHandle),
		funcByLabel: make(map[Label]FuncHandle),
	}
}

func (p *Program) NewRegister() Reg {
	p.numRegs++
	return Reg(p.numRegs)
}

func (p *Program) NewLabel() Label {
	p.numLabels++
	return Label(p.numLabels)
}

// BindLabel binds l to the next instruction's position. CodeGen checks a
// node's Bound flag and skips already-bound nodes before calling this;
// Program itself only guards against binding the same label twice.
func (p *Program) BindLabel(l Label) {
	if _, already := p.labelPos[l]; already {
		panic(fmt.Sprintf("emitter: label %d bound twice", l))
	}
	p.labelPos[l] = len(p.tape)
	p.tape = append(p.tape, instr{op: opLabel, label: l})
}

func (p *Program) emit(i instr) { p.tape = append(p.tape, i) }

func (p *Program) MovImm(dst Reg, v uint32)  { p.emit(instr{op: opMovImm, a: dst, imm: v}) }
func (p *Program) MovReg(dst, src Reg)       { p.emit(instr{op: opMovReg, a: dst, b: src}) }
func (p *Program) Lea(dst Reg, slot Slot)    { p.emit(instr{op: opLea, a: dst, slot: slot}) }
func (p *Program) LoadSlot(dst Reg, slot Slot) {
	p.emit(instr{op: opLoadSlot, a: dst, slot: slot})
}
func (p *Program) StoreSlot(slot Slot, src Reg) {
	p.emit(instr{op: opStoreSlot, a: src, slot: slot})
}

func (p *Program) Alu(op AluOp, dst, lhs, rhs Reg) {
	p.emit(instr{op: opAlu, alu: op, a: dst, b: lhs, c: rhs})
}
func (p *Program) IDiv(quotient, remainder, lhs, rhs Reg) {
	p.emit(instr{op: opIDiv, a: quotient, b: remainder, c: lhs, args: []Reg{rhs}})
}
func (p *Program) Not(dst, src Reg) { p.emit(instr{op: opNot, a: dst, b: src}) }
func (p *Program) Cmp(lhs, rhs Reg) { p.emit(instr{op: opCmp, a: lhs, b: rhs}) }
func (p *Program) Jmp(l Label)      { p.emit(instr{op: opJmp, label: l}) }
func (p *Program) JmpCond(cond Cond, l Label) {
	p.emit(instr{op: opJmpCond, cond: cond, label: l})
}

func (p *Program) FLD(slot Slot)  { p.emit(instr{op: opFLD, slot: slot}) }
func (p *Program) FSTP(slot Slot) { p.emit(instr{op: opFSTP, slot: slot}) }
func (p *Program) FAddP()         { p.emit(instr{op: opFAddP}) }
func (p *Program) FSubP()         { p.emit(instr{op: opFSubP}) }
func (p *Program) FMulP()         { p.emit(instr{op: opFMulP}) }
func (p *Program) FDivP()         { p.emit(instr{op: opFDivP}) }

// DeclareFunction reserves name's label and calling convention without
// binding it yet, so that every method in a module-wide CodeGen run can be
// declared up front (a first pass over every class) before any bodies are
// emitted — letting calls, including forward and mutually-recursive ones,
// resolve their target's Label regardless of compile order.
func (p *Program) DeclareFunction(name string, argCount, frameSize int, hasReturn bool) FuncHandle {
	l := p.NewLabel()
	fn := FuncHandle{Label: l, Name: name, ArgCount: argCount, FrameSize: frameSize, HasReturn: hasReturn}
	p.funcByName[name] = fn
	p.funcByLabel[l] = fn
	return fn
}

// BeginFunction binds fn's start label at the current tape position. CodeGen
// calls this once per method, immediately before emitting that method's
// body, after every method has already been declared via DeclareFunction.
func (p *Program) BeginFunction(fn FuncHandle) {
	p.BindLabel(fn.Label)
}

// ArgReg returns the virtual register CodeGen should treat as holding
// incoming argument index for fn. The reference backend numbers these
// deterministically off the function's label so Run can preload them at
// call time without extra bookkeeping from CodeGen.
func (p *Program) ArgReg(fn FuncHandle, index int) Reg {
	return Reg(-(int(fn.Label)*256 + index + 1))
}

func (p *Program) CallManaged(target Label, args []Reg, hasReturn bool) Reg {
	dst := p.NewRegister()
	p.emit(instr{op: opCallManaged, a: dst, label: target, args: append([]Reg(nil), args...), hasRet: hasReturn})
	return dst
}

func (p *Program) CallExternal(name string, args []Reg, argKinds []ValKind, retKind ValKind, hasReturn bool) Reg {
	dst := p.NewRegister()
	p.emit(instr{
		op: opCallExternal, a: dst, funcName: name,
		args: append([]Reg(nil), args...), argKinds: append([]ValKind(nil), argKinds...),
		retKind: retKind, hasRet: hasReturn,
	})
	return dst
}

func (p *Program) MarkRoot(slot Slot, isRoot bool) {
	p.emit(instr{op: opMarkRoot, slot: slot, hasRet: isRoot})
}
func (p *Program) UnmarkRoot(slot Slot, isRoot bool) {
	p.emit(instr{op: opUnmarkRoot, slot: slot, hasRet: isRoot})
}

func (p *Program) LoadConstString(value string) Reg {
	dst := p.NewRegister()
	p.emit(instr{op: opLoadConstString, a: dst, str: value})
	return dst
}

func (p *Program) LoadConstDouble(v float64) Reg {
	dst := p.NewRegister()
	p.emit(instr{op: opLoadConstDouble, a: dst, fimm: v})
	return dst
}

func (p *Program) RetValue(src Reg) { p.emit(instr{op: opRetValue, a: src}) }
func (p *Program) RetVoid()         { p.emit(instr{op: opRetVoid}) }

// Func looks up a previously-declared function by name (the name passed
// to DeclareFunction).
func (p *Program) Func(name string) (FuncHandle, bool) {
	fn, ok := p.funcByName[name]
	return fn, ok
}

// Finalize checks that every label referenced by a Jmp/JmpCond/
// CallManaged was in fact bound (spec §4.5 "Branch-target invariant" is
// enforced earlier, by CodeGen against ualOffsetMap; this is the
// backend's own sanity check that nothing slipped through unbound).
func (p *Program) Finalize() error {
	for _, i := range p.tape {
		switch i.op {
		case opJmp, opJmpCond, opCallManaged:
			if _, ok := p.labelPos[i.label]; !ok {
				return fmt.Errorf("emitter: label %d referenced but never bound", i.label)
			}
		}
	}
	return nil
}

var _ Emitter = (*Program)(nil)
