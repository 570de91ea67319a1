// Package ir implements the typed expression-tree IR described in spec
// §3/§9: a tagged sum type with one variant per opcode category, common
// fields factored into a shared header, and an arena (rather than raw
// prev/next pointers) backing the per-method instruction list so that
// detaching an operand node from the statement list is an O(1) index
// rewire and the whole tree is freed with its owning Method.
//
// This follows design note §9 ("Cyclic / doubly-linked IR" and "Tagged IR
// instead of inheritance") directly: the source UAL runtime used a class
// hierarchy with raw linked-list pointers; we use a Kind enum plus a
// Header struct embedded in each variant, and prev/next are arena
// indices rather than pointers.
package ir

import "github.com/cwbudde/go-ual/internal/types"

// Kind tags which IR node variant a Node is.
type Kind int

const (
	KindLdArg Kind = iota
	KindLdLoc
	KindStLoc
	KindConstInt
	KindConstDouble
	KindConstString
	KindBinExpr
	KindCall
	KindRet
	KindBranch
	KindNop
)

func (k Kind) String() string {
	switch k {
	case KindLdArg:
		return "LdArg"
	case KindLdLoc:
		return "LdLoc"
	case KindStLoc:
		return "StLoc"
	case KindConstInt:
		return "ConstInt"
	case KindConstDouble:
		return "ConstDouble"
	case KindConstString:
		return "ConstString"
	case KindBinExpr:
		return "BinExpr"
	case KindCall:
		return "Call"
	case KindRet:
		return "Ret"
	case KindBranch:
		return "Branch"
	case KindNop:
		return "Nop"
	}
	return "?"
}

// noIndex is the sentinel for "no prev/next" in the statement list.
const noIndex = -1

// Header carries the fields every IR node tracks (spec §3 "Every node
// tracks:"), regardless of variant.
type Header struct {
	Kind       Kind
	ResultType *types.Type // nil for statement-only nodes (StLoc, Ret, Branch, Nop)
	OffsetInUAL int

	// Label is an opaque backend label handle bound by CodeGen; unbound
	// (nil) until CodeGen visits this node. Typed as `any` so this
	// package has no dependency on the Emitter contract.
	Label any
	Bound bool

	// FPEmit is the hint requesting this node deliver its result on the
	// floating-point stack rather than a general-purpose register
	// (spec §3, §4.5, §9 "fpEmit propagation").
	FPEmit bool

	// self/prev/next are arena indices, not pointers (design note §9).
	self, prev, next int
}

func (h *Header) selfIndex() int { return h.self }

// Node is the common interface every IR variant implements.
type Node interface {
	Hdr() *Header
}

// --- Variants -----------------------------------------------------------

type LdArg struct {
	Header
	Index int
}

type LdLoc struct {
	Header
	Index int
}

type StLoc struct {
	Header
	Index int
	Expr  Node
}

type ConstInt struct {
	Header
	Value uint32
}

type ConstDouble struct {
	Header
	Value float64
}

type ConstString struct {
	Header
	Value string
}

type BinExpr struct {
	Header
	Op    string // one of +,-,*,/,%,<<,>>,&,|,^,~
	Left  Node
	Right Node // nil for unary NOT
}

type Call struct {
	Header
	Callee    CalleeRef
	Args      []Node
	IsVoid    bool
}

// CalleeRef identifies the callee without ir depending on the module
// package, so ir needs no import beyond internal/types.
type CalleeRef struct {
	Signature  string
	ReturnType *types.Type
	ArgTypes   []*types.Type
	Managed    bool
}

type Ret struct {
	Header
	Expr Node // nil for void return
}

type Branch struct {
	Header
	Target int // UAL offset of the branch target
	Cond   string
	Left   Node // nil for unconditional
	Right  Node
}

type Nop struct {
	Header
}

func (n *LdArg) Hdr() *Header       { return &n.Header }
func (n *LdLoc) Hdr() *Header       { return &n.Header }
func (n *StLoc) Hdr() *Header       { return &n.Header }
func (n *ConstInt) Hdr() *Header    { return &n.Header }
func (n *ConstDouble) Hdr() *Header { return &n.Header }
func (n *ConstString) Hdr() *Header { return &n.Header }
func (n *BinExpr) Hdr() *Header     { return &n.Header }
func (n *Call) Hdr() *Header        { return &n.Header }
func (n *Ret) Hdr() *Header         { return &n.Header }
func (n *Branch) Hdr() *Header      { return &n.Header }
func (n *Nop) Hdr() *Header         { return &n.Header }
