package emitter

import (
	"fmt"
	"math"

	"github.com/cwbudde/go-ual/internal/gcshim"
)

// Hooks supplies the external collaborators Run needs to execute
// CallExternal and the GC barrier ops: the ABI registry (spec §6) and a
// GC shim (spec §5/§6).
type Hooks struct {
	Call func(name string, args []any) (any, error)
	GC   gcshim.GC
}

// frame is one activation record: its own virtual-register file, its own
// frame-slot storage, its own FPU stack, and a side-table for register
// values that hold a managed string rather than a raw 64-bit word.
type frame struct {
	regs    map[Reg]uint64
	strs    map[Reg]string
	slots   []uint64
	slotStr map[Slot]string
	fpu     []float64
}

func newFrame(size int) *frame {
	return &frame{
		regs:    make(map[Reg]uint64),
		strs:    make(map[Reg]string),
		slots:   make([]uint64, size),
		slotStr: make(map[Slot]string),
	}
}

// Run interprets fn's body starting at its bound label, with args bound
// positionally via ArgReg, and returns the RetValue/RetVoid result.
func (p *Program) Run(fn FuncHandle, args []uint64, hooks Hooks) (uint64, error) {
	f := newFrame(fn.FrameSize)
	for i := 0; i < fn.ArgCount && i < len(args); i++ {
		f.regs[p.ArgReg(fn, i)] = args[i]
	}
	pos, ok := p.labelPos[fn.Label]
	if !ok {
		return 0, fmt.Errorf("emitter: function %q was never bound", fn.Name)
	}
	result, _, err := p.exec(pos, f, hooks)
	return result, err
}

// exec walks the tape starting at ip within frame f until a Ret
// instruction, returning its value (0 for void) and whether the method
// returned a value at all.
func (p *Program) exec(ip int, f *frame, hooks Hooks) (uint64, bool, error) {
	for ip < len(p.tape) {
		i := p.tape[ip]
		switch i.op {
		case opLabel:
			// no-op marker; execution runs straight through every label,
			// including another function's start label, so only a Ret (or
			// the end of the tape) ends a function.
		case opMovImm:
			f.regs[i.a] = uint64(i.imm)
		case opMovReg:
			f.regs[i.a] = f.regs[i.b]
			if s, ok := f.strs[i.b]; ok {
				f.strs[i.a] = s
			}
		case opLea:
			f.regs[i.a] = uint64(i.slot)
		case opLoadSlot:
			f.regs[i.a] = f.slots[i.slot]
			if s, ok := f.slotStr[i.slot]; ok {
				f.strs[i.a] = s
			}
		case opStoreSlot:
			f.slots[i.slot] = f.regs[i.a]
			if s, ok := f.strs[i.a]; ok {
				f.slotStr[i.slot] = s
			} else {
				delete(f.slotStr, i.slot)
			}
		case opAlu:
			lhs := int32(uint32(f.regs[i.b]))
			rhs := int32(uint32(f.regs[i.c]))
			var res int32
			switch i.alu {
			case AluAdd:
				res = lhs + rhs
			case AluSub:
				res = lhs - rhs
			case AluMul:
				res = lhs * rhs
			case AluAnd:
				res = lhs & rhs
			case AluOr:
				res = lhs | rhs
			case AluXor:
				res = lhs ^ rhs
			case AluShl:
				res = lhs << uint32(rhs)
			case AluShr:
				res = lhs >> uint32(rhs)
			}
			f.regs[i.a] = uint64(uint32(res))
		case opIDiv:
			lhs := int32(uint32(f.regs[i.c]))
			rhs := int32(uint32(f.regs[i.args[0]]))
			if rhs == 0 {
				return 0, false, fmt.Errorf("emitter: integer division by zero")
			}
			f.regs[i.a] = uint64(uint32(lhs / rhs))
			f.regs[i.b] = uint64(uint32(lhs % rhs))
		case opNot:
			v := int32(uint32(f.regs[i.b]))
			f.regs[i.a] = uint64(uint32(^v))
		case opCmp:
			f.regs[cmpLHS] = f.regs[i.a]
			f.regs[cmpRHS] = f.regs[i.b]
		case opJmp:
			next, err := p.jumpTarget(i.label)
			if err != nil {
				return 0, false, err
			}
			ip = next
			continue
		case opJmpCond:
			lhs := int32(uint32(f.regs[cmpLHS]))
			rhs := int32(uint32(f.regs[cmpRHS]))
			taken := false
			switch i.cond {
			case CondEQ:
				taken = lhs == rhs
			case CondNE:
				taken = lhs != rhs
			case CondLT:
				taken = lhs < rhs
			case CondLE:
				taken = lhs <= rhs
			case CondGT:
				taken = lhs > rhs
			case CondGE:
				taken = lhs >= rhs
			}
			if taken {
				next, err := p.jumpTarget(i.label)
				if err != nil {
					return 0, false, err
				}
				ip = next
				continue
			}
		case opFLD:
			bits := f.slots[i.slot]
			f.fpu = append(f.fpu, math.Float64frombits(bits))
		case opFSTP:
			if len(f.fpu) == 0 {
				return 0, false, fmt.Errorf("emitter: FSTP with empty FPU stack")
			}
			top := f.fpu[len(f.fpu)-1]
			f.fpu = f.fpu[:len(f.fpu)-1]
			f.slots[i.slot] = math.Float64bits(top)
		case opFAddP, opFSubP, opFMulP, opFDivP:
			if len(f.fpu) < 2 {
				return 0, false, fmt.Errorf("emitter: FPU binary op with <2 values on stack")
			}
			right := f.fpu[len(f.fpu)-1]
			left := f.fpu[len(f.fpu)-2]
			f.fpu = f.fpu[:len(f.fpu)-2]
			var res float64
			switch i.op {
			case opFAddP:
				res = left + right
			case opFSubP:
				res = left - right
			case opFMulP:
				res = left * right
			case opFDivP:
				res = left / right
			}
			f.fpu = append(f.fpu, res)
		case opCallManaged:
			target, ok := p.funcByLabel[i.label]
			if !ok {
				return 0, false, fmt.Errorf("emitter: call to unbound function label %d", i.label)
			}
			argv := make([]uint64, len(i.args))
			for j, r := range i.args {
				argv[j] = f.regs[r]
			}
			sub := newFrame(target.FrameSize)
			for j := 0; j < target.ArgCount && j < len(argv); j++ {
				sub.regs[p.ArgReg(target, j)] = argv[j]
			}
			pos, ok := p.labelPos[target.Label]
			if !ok {
				return 0, false, fmt.Errorf("emitter: function %q never bound", target.Name)
			}
			res, _, err := p.exec(pos, sub, hooks)
			if err != nil {
				return 0, false, err
			}
			f.regs[i.a] = res
		case opCallExternal:
			if hooks.Call == nil {
				return 0, false, fmt.Errorf("emitter: no external-call hook configured for %q", i.funcName)
			}
			callArgs := make([]any, len(i.args))
			for j, r := range i.args {
				switch i.argKinds[j] {
				case KindInt32:
					callArgs[j] = int32(uint32(f.regs[r]))
				case KindDouble:
					callArgs[j] = math.Float64frombits(f.regs[r])
				case KindString:
					callArgs[j] = f.strs[r]
				}
			}
			ret, err := hooks.Call(i.funcName, callArgs)
			if err != nil {
				return 0, false, err
			}
			switch i.retKind {
			case KindInt32:
				if v, ok := ret.(int32); ok {
					f.regs[i.a] = uint64(uint32(v))
				}
			case KindDouble:
				if v, ok := ret.(float64); ok {
					f.regs[i.a] = math.Float64bits(v)
				}
			case KindString:
				if v, ok := ret.(string); ok {
					f.strs[i.a] = v
				}
			}
		case opMarkRoot:
			if hooks.GC != nil {
				hooks.GC.Mark(gcshim.Slot(i.slot), i.hasRet)
			}
		case opUnmarkRoot:
			if hooks.GC != nil {
				hooks.GC.Unmark(gcshim.Slot(i.slot), i.hasRet)
			}
		case opLoadConstString:
			f.strs[i.a] = i.str
		case opLoadConstDouble:
			f.regs[i.a] = math.Float64bits(i.fimm)
		case opRetValue:
			// Managed methods returning a System.String are outside this
			// reference backend's scope: no end-to-end scenario in spec
			// §8 requires one, and CallManaged's result register only
			// carries the 64-bit word (see opCallManaged above).
			return f.regs[i.a], true, nil
		case opRetVoid:
			return 0, false, nil
		}
		ip++
	}
	return 0, false, nil
}

// jumpTarget resolves a Label to a tape position, or BadBranchTarget-style
// failure if it was never bound — mirroring CodeGen's own check, which
// should make this unreachable in practice since CodeGen validates branch
// targets against ualOffsetMap before ever emitting a Jmp.
func (p *Program) jumpTarget(l Label) (int, error) {
	pos, ok := p.labelPos[l]
	if !ok {
		return 0, fmt.Errorf("emitter: jump to unbound label %d", l)
	}
	return pos, nil
}

// cmpLHS/cmpRHS are reserved pseudo-register ids outside the range
// NewRegister ever hands out (which starts at 1 and counts up), used to
// stash Cmp's two operands for the JmpCond that follows it.
const (
	cmpLHS Reg = -1
	cmpRHS Reg = -2
)
