// Package verifier implements the single forward pass over a managed
// method's opcode stream described in spec §3/§4.4: an abstract
// interpreter that maintains a typed evaluation stack of IR nodes,
// type-checks every opcode against spec §4.4's table, and builds the
// method's statement list and ualOffsetMap via internal/ir.Builder.
//
// The shape — decode one opcode at a time off a BinaryReader, maintain an
// explicit value stack, accumulate diagnostics rather than panic — mirrors
// the teacher's internal/bytecode compiler's stack-effect bookkeeping and
// internal/semantic's habit of returning the first error encountered
// rather than a collected list (spec §7: load-time errors are fatal, no
// partial recovery, so "first error wins" is the right granularity here).
package verifier

import (
	"github.com/cwbudde/go-ual/internal/diag"
	"github.com/cwbudde/go-ual/internal/ir"
	"github.com/cwbudde/go-ual/internal/module"
	"github.com/cwbudde/go-ual/internal/types"
	"github.com/cwbudde/go-ual/internal/ual"
	"github.com/cwbudde/go-ual/internal/binreader"
)

// Verify runs the verifier over method's opcode stream, returning the
// built IR (statement list + ualOffsetMap) or the first diagnostic
// encountered. mod is used to resolve Call targets.
func Verify(mod *module.Module, method *module.Method) (*ir.Builder, *diag.Error) {
	if !method.IsManaged {
		return nil, diag.New(diag.MalformedUAL, method.Site(-1), "cannot verify an unmanaged method")
	}

	tt := mod.Runtime.Types
	retType, argTypes, terr := method.ResolveTypes(tt)
	if terr != nil {
		return nil, terr
	}

	localTypes := make([]*types.Type, 0, len(method.LocalTypes))
	for _, name := range method.LocalTypes {
		t, ok := tt.Lookup(name)
		if !ok {
			return nil, diag.New(diag.UnknownType, method.Site(-1), "unknown local type %q", name)
		}
		localTypes = append(localTypes, t)
	}

	v := &verifier{
		mod:        mod,
		method:     method,
		retType:    retType,
		argTypes:   argTypes,
		localTypes: localTypes,
		builder:    ir.NewBuilder(),
		r:          binreader.New(method.Body),
	}
	if err := v.run(); err != nil {
		return nil, err
	}
	return v.builder, nil
}

type verifier struct {
	mod        *module.Module
	method     *module.Method
	retType    *types.Type
	argTypes   []*types.Type
	localTypes []*types.Type
	builder    *ir.Builder
	r          *binreader.Reader
	stack      []ir.Node
}

func (v *verifier) site(offset int) diag.Site { return v.method.Site(offset) }

func (v *verifier) push(n ir.Node) { v.stack = append(v.stack, n) }

// pop removes and returns the top-of-stack node. TooFewOperands is
// reported at the current instruction's offset, since the underflow is
// only discovered once that instruction tries to consume its operands.
func (v *verifier) pop(ip int, opName string) (ir.Node, *diag.Error) {
	if len(v.stack) == 0 {
		return nil, diag.Malformed(diag.TooFewOperands, v.site(ip), "%s: operand stack is empty", opName)
	}
	n := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return n, nil
}

func (v *verifier) popN(ip int, opName string, n int) ([]ir.Node, *diag.Error) {
	if len(v.stack) < n {
		return nil, diag.Malformed(diag.TooFewOperands, v.site(ip), "%s: need %d operands, have %d", opName, n, len(v.stack))
	}
	out := append([]ir.Node(nil), v.stack[len(v.stack)-n:]...)
	v.stack = v.stack[:len(v.stack)-n]
	return out, nil
}

// run executes the decode loop until the end-of-stream sentinel.
func (v *verifier) run() *diag.Error {
	for {
		ip := v.r.Offset()
		opByte, err := v.r.U8()
		if err != nil {
			return diag.New(diag.ShortRead, v.site(ip), "opcode tag: %v", err)
		}
		if opByte == ual.EndOfStream {
			break
		}
		op := ual.OpCode(opByte)
		if !op.IsValid() {
			return diag.New(diag.UnknownOpcode, v.site(ip), "unknown opcode byte %d", opByte)
		}
		if derr := v.step(op, ip); derr != nil {
			return derr
		}
	}

	if len(v.stack) != 0 {
		return diag.Malformed(diag.BadReturn, v.site(v.r.Offset()), "%d value(s) left on the evaluation stack at end of method body", len(v.stack))
	}
	return nil
}

func (v *verifier) register(n ir.Node, ip int) *diag.Error {
	if err := v.builder.New(n, ip); err != nil {
		return diag.Malformed(diag.DuplicateNodeOffset, v.site(ip), "%v", err)
	}
	return nil
}

func (v *verifier) step(op ual.OpCode, ip int) *diag.Error {
	switch op {
	case ual.LDARG:
		return v.stepLdArg(ip)
	case ual.LDLOC:
		return v.stepLdLoc(ip)
	case ual.STLOC:
		return v.stepStLoc(ip)
	case ual.LDCI4:
		return v.stepConstInt(ip)
	case ual.LDCR8:
		return v.stepConstDouble(ip)
	case ual.LDSTR:
		return v.stepConstString(ip)
	case ual.CALL:
		return v.stepCall(ip)
	case ual.RET:
		return v.stepRet(ip)
	case ual.NOP:
		return v.stepNop(ip)
	case ual.BR:
		return v.stepBranchUncond(ip)
	case ual.BLE, ual.BEQ, ual.BNE, ual.BGT, ual.BGE:
		return v.stepBranchCond(op, ip)
	case ual.NOT:
		return v.stepUnary(op, ip)
	default: // ADD, SUB, MUL, DIV, REM, SHL, SHR, AND, OR, XOR
		return v.stepBinary(op, ip)
	}
}

func (v *verifier) stepLdArg(ip int) *diag.Error {
	idx, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "LDARG index: %v", err)
	}
	if int(idx) >= len(v.argTypes) {
		return diag.Malformed(diag.TypeMismatch, v.site(ip), "LDARG index %d out of range (method has %d arguments)", idx, len(v.argTypes))
	}
	n := &ir.LdArg{Index: int(idx)}
	n.ResultType = v.argTypes[idx]
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}

func (v *verifier) stepLdLoc(ip int) *diag.Error {
	idx, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "LDLOC index: %v", err)
	}
	if int(idx) >= len(v.localTypes) {
		return diag.Malformed(diag.TypeMismatch, v.site(ip), "LDLOC index %d out of range (method has %d locals)", idx, len(v.localTypes))
	}
	n := &ir.LdLoc{Index: int(idx)}
	n.ResultType = v.localTypes[idx]
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}

func (v *verifier) stepStLoc(ip int) *diag.Error {
	idx, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "STLOC index: %v", err)
	}
	if int(idx) >= len(v.localTypes) {
		return diag.Malformed(diag.TypeMismatch, v.site(ip), "STLOC index %d out of range (method has %d locals)", idx, len(v.localTypes))
	}
	expr, derr := v.pop(ip, "STLOC")
	if derr != nil {
		return derr
	}
	want := v.localTypes[idx]
	if !expr.Hdr().ResultType.Equal(want) {
		return diag.Malformed(diag.TypeMismatch, v.site(ip), "STLOC local %d is %s, value is %s", idx, want, expr.Hdr().ResultType)
	}
	n := &ir.StLoc{Index: int(idx), Expr: expr}
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.builder.Append(n)
	return nil
}

func (v *verifier) stepConstInt(ip int) *diag.Error {
	val, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "LDC.I4 value: %v", err)
	}
	n := &ir.ConstInt{Value: val}
	n.ResultType = v.mustType(types.Int32)
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}

func (v *verifier) stepConstDouble(ip int) *diag.Error {
	val, err := v.r.F64()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "LDC.R8 value: %v", err)
	}
	n := &ir.ConstDouble{Value: val}
	n.ResultType = v.mustType(types.Double)
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}

func (v *verifier) stepConstString(ip int) *diag.Error {
	s, err := v.r.CStringStr()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "LDSTR text: %v", err)
	}
	n := &ir.ConstString{Value: s}
	n.ResultType = v.mustType(types.String)
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}

func (v *verifier) mustType(name string) *types.Type {
	return v.mod.Runtime.Types.MustLookup(name)
}

// stepCall resolves the import handle, pops exactly as many operands as
// the callee declares, type-checks each against the callee's declared
// argument types, and either appends the Call as a void statement or
// pushes it as a value for whatever instruction consumes the result.
// The callee's arguments were pushed in positional order (its first
// argument pushed deepest), so slicing the top n stack entries off as one
// block — rather than popping one at a time — already yields them back
// in positional order (the open question spec §9 flags as "push order
// vs. source order").
func (v *verifier) stepCall(ip int) *diag.Error {
	handle, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "CALL handle: %v", err)
	}
	callee, cerr := v.mod.ResolveImport(handle)
	if cerr != nil {
		if de, ok := cerr.(*diag.Error); ok {
			de.Site = v.site(ip)
			return de
		}
		return diag.New(diag.UnresolvedExtern, v.site(ip), "%v", cerr)
	}
	calleeRet, calleeArgs, terr := callee.ResolveTypes(v.mod.Runtime.Types)
	if terr != nil {
		terr.Site = v.site(ip)
		return terr
	}

	args, derr := v.popN(ip, "CALL", len(calleeArgs))
	if derr != nil {
		return derr
	}
	for i, a := range args {
		if !a.Hdr().ResultType.Equal(calleeArgs[i]) {
			return diag.Malformed(diag.ArgTypeMismatch, v.site(ip), "CALL %s argument %d: expected %s, got %s", callee.Signature.Full, i, calleeArgs[i], a.Hdr().ResultType)
		}
	}

	isVoid := calleeRet.Name == types.Void
	n := &ir.Call{
		Callee: ir.CalleeRef{
			Signature:  callee.Signature.Full,
			ReturnType: calleeRet,
			ArgTypes:   calleeArgs,
			Managed:    callee.IsManaged,
		},
		Args:   args,
		IsVoid: isVoid,
	}
	if !isVoid {
		n.ResultType = calleeRet
	}
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	if isVoid {
		v.builder.Append(n)
	} else {
		v.push(n)
	}
	return nil
}

func (v *verifier) stepRet(ip int) *diag.Error {
	n := &ir.Ret{}
	if v.retType.Name == types.Void {
		if len(v.stack) != 0 {
			return diag.Malformed(diag.BadReturn, v.site(ip), "RET: void method returns with %d value(s) still on the stack", len(v.stack))
		}
	} else {
		expr, derr := v.pop(ip, "RET")
		if derr != nil {
			return diag.Malformed(diag.BadReturn, v.site(ip), "RET: expected a %s return value, stack is empty", v.retType)
		}
		if !expr.Hdr().ResultType.Equal(v.retType) {
			return diag.Malformed(diag.BadReturn, v.site(ip), "RET: expected %s, got %s", v.retType, expr.Hdr().ResultType)
		}
		n.Expr = expr
	}
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.builder.Append(n)
	return nil
}

func (v *verifier) stepNop(ip int) *diag.Error {
	n := &ir.Nop{}
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.builder.Append(n)
	return nil
}

func (v *verifier) stepBranchUncond(ip int) *diag.Error {
	target, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "BR target: %v", err)
	}
	n := &ir.Branch{Target: int(target), Cond: string(ual.CondU)}
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.builder.Append(n)
	return nil
}

func (v *verifier) stepBranchCond(op ual.OpCode, ip int) *diag.Error {
	target, err := v.r.U32()
	if err != nil {
		return diag.New(diag.ShortRead, v.site(ip), "%s target: %v", op, err)
	}
	operands, derr := v.popN(ip, op.String(), 2)
	if derr != nil {
		return derr
	}
	left, right := operands[0], operands[1]
	if !left.Hdr().ResultType.Equal(right.Hdr().ResultType) {
		return diag.Malformed(diag.TypeMismatch, v.site(ip), "%s: operand types %s and %s do not match", op, left.Hdr().ResultType, right.Hdr().ResultType)
	}
	cond, _ := ual.BranchCondFor(op)
	n := &ir.Branch{Target: int(target), Cond: string(cond), Left: left, Right: right}
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.builder.Append(n)
	return nil
}

func (v *verifier) stepUnary(op ual.OpCode, ip int) *diag.Error {
	operand, derr := v.pop(ip, op.String())
	if derr != nil {
		return derr
	}
	if !operand.Hdr().ResultType.IsInt32() {
		return diag.Malformed(diag.TypeMismatch, v.site(ip), "%s requires System.Int32, got %s", op, operand.Hdr().ResultType)
	}
	sym, _ := ual.BinOpFor(op)
	n := &ir.BinExpr{Op: string(sym), Left: operand}
	n.ResultType = operand.Hdr().ResultType
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}

func (v *verifier) stepBinary(op ual.OpCode, ip int) *diag.Error {
	operands, derr := v.popN(ip, op.String(), 2)
	if derr != nil {
		return derr
	}
	left, right := operands[0], operands[1]
	lt, rt := left.Hdr().ResultType, right.Hdr().ResultType

	if ual.IntegerOnly(op) {
		if !lt.IsInt32() || !rt.IsInt32() {
			return diag.Malformed(diag.TypeMismatch, v.site(ip), "%s requires System.Int32 operands, got %s and %s", op, lt, rt)
		}
	} else {
		if !lt.IsNumeric() || !lt.Equal(rt) {
			return diag.Malformed(diag.TypeMismatch, v.site(ip), "%s: operand types %s and %s do not match", op, lt, rt)
		}
	}

	sym, _ := ual.BinOpFor(op)
	n := &ir.BinExpr{Op: string(sym), Left: left, Right: right}
	n.ResultType = lt
	if derr := v.register(n, ip); derr != nil {
		return derr
	}
	v.push(n)
	return nil
}
