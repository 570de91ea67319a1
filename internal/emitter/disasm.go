package emitter

import (
	"fmt"
	"io"
)

// opMnemonics names every opcode for disassembly, in the same order as
// the opcode const block (grounded on the teacher's internal/bytecode
// disassembler, which likewise keys a mnemonic table by opcode value
// rather than building the string inline at each call site).
var opMnemonics = map[opcode]string{
	opMovImm:          "MOVIMM",
	opMovReg:          "MOVREG",
	opLea:             "LEA",
	opLoadSlot:        "LOADSLOT",
	opStoreSlot:       "STORESLOT",
	opAlu:             "ALU",
	opIDiv:            "IDIV",
	opNot:             "NOT",
	opCmp:             "CMP",
	opJmp:             "JMP",
	opJmpCond:         "JMPCOND",
	opFLD:             "FLD",
	opFSTP:            "FSTP",
	opFAddP:           "FADDP",
	opFSubP:           "FSUBP",
	opFMulP:           "FMULP",
	opFDivP:           "FDIVP",
	opLabel:           "LABEL",
	opCallManaged:     "CALL",
	opCallExternal:    "CALLEXT",
	opMarkRoot:        "MARKROOT",
	opUnmarkRoot:      "UNMARKROOT",
	opLoadConstString: "LDSTR",
	opLoadConstDouble: "LDC.R8",
	opRetValue:        "RETVAL",
	opRetVoid:         "RETVOID",
}

// Disassemble writes one line per recorded instruction to w, in the
// teacher's "offset: mnemonic operands" style (internal/bytecode's
// Disassembler.DisassembleInstruction header format, adapted to this
// backend's register/slot/label vocabulary instead of bytecode operand
// bytes).
func (p *Program) Disassemble(w io.Writer) {
	for offset, i := range p.tape {
		mnemonic := opMnemonics[i.op]
		fmt.Fprintf(w, "%04d: %s%s\n", offset, mnemonic, operandText(i))
	}
}

func operandText(i instr) string {
	switch i.op {
	case opMovImm:
		return fmt.Sprintf(" r%d, #%d", i.a, i.imm)
	case opMovReg:
		return fmt.Sprintf(" r%d, r%d", i.a, i.b)
	case opLea:
		return fmt.Sprintf(" r%d, [slot%d]", i.a, i.slot)
	case opLoadSlot:
		return fmt.Sprintf(" r%d, [slot%d]", i.a, i.slot)
	case opStoreSlot:
		return fmt.Sprintf(" [slot%d], r%d", i.slot, i.a)
	case opAlu:
		return fmt.Sprintf(" r%d, r%d, r%d ; op=%d", i.a, i.b, i.c, i.alu)
	case opIDiv:
		return fmt.Sprintf(" q=r%d, r=r%d, r%d, r%d", i.a, i.b, i.c, i.args[0])
	case opNot:
		return fmt.Sprintf(" r%d, r%d", i.a, i.b)
	case opCmp:
		return fmt.Sprintf(" r%d, r%d", i.a, i.b)
	case opJmp:
		return fmt.Sprintf(" L%d", i.label)
	case opJmpCond:
		return fmt.Sprintf(" %s, L%d", i.cond, i.label)
	case opFLD, opFSTP:
		return fmt.Sprintf(" [slot%d]", i.slot)
	case opLabel:
		return fmt.Sprintf(" L%d", i.label)
	case opCallManaged:
		return fmt.Sprintf(" L%d, argc=%d, dst=r%d", i.label, len(i.args), i.a)
	case opCallExternal:
		return fmt.Sprintf(" %q, argc=%d, dst=r%d", i.funcName, len(i.args), i.a)
	case opMarkRoot, opUnmarkRoot:
		return fmt.Sprintf(" [slot%d], root=%v", i.slot, i.hasRet)
	case opLoadConstString:
		return fmt.Sprintf(" r%d, %q", i.a, i.str)
	case opLoadConstDouble:
		return fmt.Sprintf(" r%d, %g", i.a, i.fimm)
	case opRetValue:
		return fmt.Sprintf(" r%d", i.a)
	default:
		return ""
	}
}
