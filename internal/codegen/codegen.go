// Package codegen walks the typed IR a Verifier produces and drives an
// Emitter through it, following spec §4.5's per-node-kind emission
// rules. It owns frame layout (aligned locals plus the two FPU scratch
// slots), per-method constant-string interning, and branch-target label
// assignment, but knows nothing about any particular backend beyond the
// emitter.Emitter contract.
//
// The two-phase compile (declare every method's calling convention, then
// emit every method's body) mirrors how the teacher's internal/compiler
// package forward-declares every statement's label before walking
// bodies, so mutually recursive or not-yet-compiled callees still
// resolve to a concrete branch/call target.
package codegen

import (
	"fmt"

	"github.com/cwbudde/go-ual/internal/constpool"
	"github.com/cwbudde/go-ual/internal/diag"
	"github.com/cwbudde/go-ual/internal/emitter"
	"github.com/cwbudde/go-ual/internal/ir"
	"github.com/cwbudde/go-ual/internal/module"
	"github.com/cwbudde/go-ual/internal/sig"
	"github.com/cwbudde/go-ual/internal/types"
	"github.com/cwbudde/go-ual/internal/ual"
	"github.com/cwbudde/go-ual/internal/verifier"
)

// CodeGen compiles every managed method of a Module into an Emitter.
type CodeGen struct {
	mod     *module.Module
	prog    emitter.Emitter
	handles map[string]emitter.FuncHandle
}

// New creates a CodeGen targeting prog for mod.
func New(mod *module.Module, prog emitter.Emitter) *CodeGen {
	return &CodeGen{mod: mod, prog: prog, handles: make(map[string]emitter.FuncHandle)}
}

// CompileAll compiles every class's every managed method: a declare pass
// that reserves one label per method (spec §4.5 "BeginFunction"), then an
// emit pass that verifies and compiles each method's body in turn. On
// success every compiled *module.Method has its IR, EmittedEntry, and
// ConstPool fields populated for the Invoker to use.
func (cg *CodeGen) CompileAll() error {
	for _, name := range cg.mod.ClassNames() {
		if _, err := cg.mod.CompileClass(name); err != nil {
			return err
		}
	}

	var managed []*module.Method
	for _, m := range cg.mod.AllMethods() {
		if !m.IsManaged {
			continue
		}
		retType, argTypes, err := m.ResolveTypes(cg.mod.Runtime.Types)
		if err != nil {
			return err
		}
		frameSize := len(m.LocalTypes) + 2 // aligned locals (one slot each) + 2 FPU scratch slots
		fn := cg.prog.DeclareFunction(m.Signature.Full, len(argTypes), frameSize, retType.Name != types.Void)
		cg.handles[m.Signature.Full] = fn
		managed = append(managed, m)
	}

	for _, m := range managed {
		builder, verr := verifier.Verify(cg.mod, m)
		if verr != nil {
			return verr
		}
		fn := cg.handles[m.Signature.Full]
		mc, err := newMethodCodegen(cg, m, builder, fn)
		if err != nil {
			return err
		}
		if err := mc.emit(); err != nil {
			return err
		}
		m.IR = builder
		m.EmittedEntry = fn
		m.ConstPool = mc.pool
	}

	if f, ok := cg.prog.(interface{ Finalize() error }); ok {
		if err := f.Finalize(); err != nil {
			return diag.New(diag.BadBranchTarget, diag.Site{}, "%v", err)
		}
	}
	return nil
}

// methodCodegen holds the per-method state for one emission pass.
type methodCodegen struct {
	cg         *CodeGen
	method     *module.Method
	builder    *ir.Builder
	pool       *constpool.Pool
	fn         emitter.FuncHandle
	localTypes []*types.Type
	argRegs    []emitter.Reg
	scratch0   emitter.Slot
	scratch1   emitter.Slot
}

func newMethodCodegen(cg *CodeGen, m *module.Method, builder *ir.Builder, fn emitter.FuncHandle) (*methodCodegen, error) {
	tt := cg.mod.Runtime.Types
	localTypes := make([]*types.Type, len(m.LocalTypes))
	for i, name := range m.LocalTypes {
		t, ok := tt.Lookup(name)
		if !ok {
			return nil, diag.New(diag.UnknownType, m.Site(-1), "unknown local type %q", name)
		}
		localTypes[i] = t
	}
	return &methodCodegen{
		cg:         cg,
		method:     m,
		builder:    builder,
		pool:       constpool.New(),
		fn:         fn,
		localTypes: localTypes,
		scratch0:   emitter.Slot(len(localTypes)),
		scratch1:   emitter.Slot(len(localTypes) + 1),
	}, nil
}

func (m *methodCodegen) localSlot(index int) emitter.Slot { return emitter.Slot(index) }

func isDouble(t *types.Type) bool { return t != nil && t.Name == types.Double }
func isRef(t *types.Type) bool    { return t != nil && t.Name == types.String }

// bindIfTarget binds n's label at the current tape position if CodeGen
// previously assigned one to it (spec §3 Header.Label/Bound) and it has
// not already been bound — the only point at which a branch target
// (statement or inlined push node alike) gets a concrete tape position.
func (m *methodCodegen) bindIfTarget(n ir.Node) {
	h := n.Hdr()
	if h.Label == nil || h.Bound {
		return
	}
	m.cg.prog.BindLabel(h.Label.(emitter.Label))
	h.Bound = true
}

// assignBranchLabels reserves a Label for every offset any Branch in this
// method targets, before any code is emitted, so forward and backward
// jumps alike can be emitted as soon as the Branch itself is visited.
func (m *methodCodegen) assignBranchLabels() error {
	for _, stmt := range m.builder.Statements() {
		br, ok := stmt.(*ir.Branch)
		if !ok {
			continue
		}
		targetNode, ok := m.builder.ResolveOffset(br.Target)
		if !ok {
			return diag.New(diag.BadBranchTarget, m.method.Site(br.OffsetInUAL), "branch target offset %d has no registered node", br.Target)
		}
		if targetNode.Hdr().Label == nil {
			targetNode.Hdr().Label = m.cg.prog.NewLabel()
		}
	}
	return nil
}

func (m *methodCodegen) emit() error {
	if err := m.assignBranchLabels(); err != nil {
		return err
	}

	prog := m.cg.prog
	prog.BeginFunction(m.fn)
	m.argRegs = make([]emitter.Reg, m.fn.ArgCount)
	for i := range m.argRegs {
		m.argRegs[i] = prog.ArgReg(m.fn, i)
	}

	for _, stmt := range m.builder.Statements() {
		if err := m.emitStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *methodCodegen) emitStmt(n ir.Node) error {
	m.bindIfTarget(n)
	switch v := n.(type) {
	case *ir.StLoc:
		return m.emitStLoc(v)
	case *ir.Ret:
		return m.emitRet(v)
	case *ir.Call:
		_, err := m.emitCall(v)
		return err
	case *ir.Branch:
		return m.emitBranch(v)
	case *ir.Nop:
		return nil
	default:
		return fmt.Errorf("codegen: unexpected statement node %T", n)
	}
}

// emitValue emits n's code and returns the GPR holding its result. If
// fpEmit is true and n is a System.Double-typed node, the result is left
// on the FPU stack instead and the returned Reg is meaningless (zero
// value, which NewRegister never hands out).
func (m *methodCodegen) emitValue(n ir.Node, fpEmit bool) (emitter.Reg, error) {
	m.bindIfTarget(n)
	prog := m.cg.prog

	switch v := n.(type) {
	case *ir.LdArg:
		src := m.argRegs[v.Index]
		if fpEmit && isDouble(v.ResultType) {
			prog.StoreSlot(m.scratch0, src)
			prog.FLD(m.scratch0)
			return 0, nil
		}
		out := prog.NewRegister()
		prog.MovReg(out, src)
		return out, nil

	case *ir.LdLoc:
		slot := m.localSlot(v.Index)
		addr := prog.NewRegister()
		prog.Lea(addr, slot)
		if fpEmit && isDouble(v.ResultType) {
			prog.FLD(slot)
			return 0, nil
		}
		out := prog.NewRegister()
		prog.LoadSlot(out, slot)
		return out, nil

	case *ir.ConstInt:
		out := prog.NewRegister()
		prog.MovImm(out, v.Value)
		return out, nil

	case *ir.ConstDouble:
		if fpEmit {
			reg := prog.LoadConstDouble(v.Value)
			prog.StoreSlot(m.scratch0, reg)
			prog.FLD(m.scratch0)
			return 0, nil
		}
		return prog.LoadConstDouble(v.Value), nil

	case *ir.ConstString:
		m.pool.Intern(v.Value)
		return prog.LoadConstString(v.Value), nil

	case *ir.BinExpr:
		return m.emitBinExpr(v, fpEmit)

	case *ir.Call:
		return m.emitCall(v)

	default:
		return 0, fmt.Errorf("codegen: unexpected value node %T", n)
	}
}

func (m *methodCodegen) emitBinExpr(v *ir.BinExpr, fpEmit bool) (emitter.Reg, error) {
	prog := m.cg.prog

	if v.Op == string(ual.OpNot) {
		src, err := m.emitValue(v.Left, false)
		if err != nil {
			return 0, err
		}
		out := prog.NewRegister()
		prog.Not(out, src)
		return out, nil
	}

	if isDouble(v.ResultType) {
		if _, err := m.emitValue(v.Left, true); err != nil {
			return 0, err
		}
		if _, err := m.emitValue(v.Right, true); err != nil {
			return 0, err
		}
		switch ual.BinOp(v.Op) {
		case ual.OpAdd:
			prog.FAddP()
		case ual.OpSub:
			prog.FSubP()
		case ual.OpMul:
			prog.FMulP()
		case ual.OpDiv:
			prog.FDivP()
		default:
			return 0, fmt.Errorf("codegen: unsupported System.Double operator %q", v.Op)
		}
		if fpEmit {
			return 0, nil
		}
		prog.FSTP(m.scratch0)
		out := prog.NewRegister()
		prog.LoadSlot(out, m.scratch0)
		return out, nil
	}

	lhs, err := m.emitValue(v.Left, false)
	if err != nil {
		return 0, err
	}
	rhs, err := m.emitValue(v.Right, false)
	if err != nil {
		return 0, err
	}
	out := prog.NewRegister()
	switch ual.BinOp(v.Op) {
	case ual.OpAdd:
		prog.Alu(emitter.AluAdd, out, lhs, rhs)
	case ual.OpSub:
		prog.Alu(emitter.AluSub, out, lhs, rhs)
	case ual.OpMul:
		prog.Alu(emitter.AluMul, out, lhs, rhs)
	case ual.OpAnd:
		prog.Alu(emitter.AluAnd, out, lhs, rhs)
	case ual.OpOr:
		prog.Alu(emitter.AluOr, out, lhs, rhs)
	case ual.OpXor:
		prog.Alu(emitter.AluXor, out, lhs, rhs)
	case ual.OpShl:
		prog.Alu(emitter.AluShl, out, lhs, rhs)
	case ual.OpShr:
		prog.Alu(emitter.AluShr, out, lhs, rhs)
	case ual.OpDiv:
		rem := prog.NewRegister()
		prog.IDiv(out, rem, lhs, rhs)
	case ual.OpRem:
		quot := prog.NewRegister()
		prog.IDiv(quot, out, lhs, rhs)
	default:
		return 0, fmt.Errorf("codegen: unsupported integer operator %q", v.Op)
	}
	return out, nil
}

// emitStLoc computes the local's frame address, evaluates the value
// subtree, stores it, and — for a reference-typed (System.String) local —
// wraps the store with the GC write barrier: unmark whatever the slot
// held before, mark the freshly stored reference (spec §5 "Unmark on
// reassignment before mark").
func (m *methodCodegen) emitStLoc(v *ir.StLoc) error {
	prog := m.cg.prog
	slot := m.localSlot(v.Index)
	addr := prog.NewRegister()
	prog.Lea(addr, slot)

	t := m.localTypes[v.Index]
	if isDouble(t) {
		if _, err := m.emitValue(v.Expr, true); err != nil {
			return err
		}
		prog.FSTP(slot)
		return nil
	}

	reg, err := m.emitValue(v.Expr, false)
	if err != nil {
		return err
	}
	if isRef(t) {
		prog.UnmarkRoot(slot, true)
	}
	prog.StoreSlot(slot, reg)
	if isRef(t) {
		prog.MarkRoot(slot, true)
	}
	return nil
}

func (m *methodCodegen) emitRet(v *ir.Ret) error {
	prog := m.cg.prog
	if v.Expr == nil {
		prog.RetVoid()
		return nil
	}
	reg, err := m.emitValue(v.Expr, false)
	if err != nil {
		return err
	}
	prog.RetValue(reg)
	return nil
}

func (m *methodCodegen) emitCall(v *ir.Call) (emitter.Reg, error) {
	prog := m.cg.prog
	argRegs := make([]emitter.Reg, len(v.Args))
	for i, a := range v.Args {
		r, err := m.emitValue(a, false)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}

	if v.Callee.Managed {
		target, ok := m.cg.handles[v.Callee.Signature]
		if !ok {
			return 0, fmt.Errorf("codegen: call target %q was never declared", v.Callee.Signature)
		}
		return prog.CallManaged(target.Label, argRegs, !v.IsVoid), nil
	}

	parsed, err := sig.Parse(v.Callee.Signature)
	if err != nil {
		return 0, fmt.Errorf("codegen: re-parsing extern signature %q: %w", v.Callee.Signature, err)
	}
	kinds := make([]emitter.ValKind, len(v.Callee.ArgTypes))
	for i, t := range v.Callee.ArgTypes {
		kinds[i] = valKind(t)
	}
	return prog.CallExternal(parsed.MethodName, argRegs, kinds, valKind(v.Callee.ReturnType), !v.IsVoid), nil
}

func valKind(t *types.Type) emitter.ValKind {
	if t == nil {
		return emitter.KindVoid
	}
	switch t.Name {
	case types.Int32:
		return emitter.KindInt32
	case types.Double:
		return emitter.KindDouble
	case types.String:
		return emitter.KindString
	default:
		return emitter.KindVoid
	}
}

func (m *methodCodegen) emitBranch(v *ir.Branch) error {
	prog := m.cg.prog
	targetNode, ok := m.builder.ResolveOffset(v.Target)
	if !ok {
		return diag.New(diag.BadBranchTarget, m.method.Site(v.OffsetInUAL), "branch target offset %d has no registered node", v.Target)
	}
	lbl, ok := targetNode.Hdr().Label.(emitter.Label)
	if !ok {
		return diag.New(diag.BadBranchTarget, m.method.Site(v.OffsetInUAL), "branch target offset %d has no assigned label", v.Target)
	}

	if v.Cond == string(ual.CondU) {
		prog.Jmp(lbl)
		return nil
	}

	left, err := m.emitValue(v.Left, false)
	if err != nil {
		return err
	}
	right, err := m.emitValue(v.Right, false)
	if err != nil {
		return err
	}
	prog.Cmp(left, right)

	cond, ok := condFor(v.Cond)
	if !ok {
		return fmt.Errorf("codegen: unknown branch condition %q", v.Cond)
	}
	prog.JmpCond(cond, lbl)
	return nil
}

func condFor(c string) (emitter.Cond, bool) {
	switch ual.BranchCond(c) {
	case ual.CondLE:
		return emitter.CondLE, true
	case ual.CondEQ:
		return emitter.CondEQ, true
	case ual.CondNE:
		return emitter.CondNE, true
	case ual.CondGT:
		return emitter.CondGT, true
	case ual.CondGE:
		return emitter.CondGE, true
	}
	return 0, false
}
