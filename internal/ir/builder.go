package ir

// Builder owns the arena of nodes for one method: the statement list
// (prev/next linked via arena indices) and the UAL-offset -> node map
// branches resolve through (spec §3 ualOffsetMap invariant).
type Builder struct {
	arena     []Node
	headIdx   int
	tailIdx   int
	offsetMap map[int]Node
}

// NewBuilder creates an empty builder ready to accept nodes for one
// method body.
func NewBuilder() *Builder {
	return &Builder{
		headIdx:   noIndex,
		tailIdx:   noIndex,
		offsetMap: make(map[int]Node),
	}
}

// New registers a freshly-constructed node in the arena and records it in
// the UAL-offset map under offset, but does not append it to the
// statement list: per spec §3's first invariant, stack-op nodes (LdArg,
// LdLoc, ConstInt/Double/String, BinExpr, a non-void Call) are never
// appended — they exist only as subtree references inside whichever
// consumer instruction (StLoc, Ret, Branch, a void Call, ...) pops them
// off the verifier's evaluation stack and calls Append on itself.
// Returns ErrDuplicateOffset if offset was already registered, since
// ualOffsetMap must be injective.
func (b *Builder) New(n Node, offset int) error {
	h := n.Hdr()
	h.self = len(b.arena)
	h.prev = noIndex
	h.next = noIndex
	h.OffsetInUAL = offset
	b.arena = append(b.arena, n)

	if _, exists := b.offsetMap[offset]; exists {
		return ErrDuplicateOffset{Offset: offset}
	}
	b.offsetMap[offset] = n
	return nil
}

// ErrDuplicateOffset is returned when two opcodes claim the same first
// byte offset, violating the ualOffsetMap injectivity invariant.
type ErrDuplicateOffset struct{ Offset int }

func (e ErrDuplicateOffset) Error() string {
	return "ir: duplicate node registration at UAL offset"
}

// Append adds n to the end of the statement list — used for effect-ful
// instructions (StLoc, Call-as-statement, Ret, Branch, Nop) per spec §3/§4.4.
func (b *Builder) Append(n Node) {
	h := n.Hdr()
	if b.tailIdx == noIndex {
		b.headIdx = h.self
		b.tailIdx = h.self
		h.prev = noIndex
		h.next = noIndex
		return
	}
	tail := b.arena[b.tailIdx]
	tail.Hdr().next = h.self
	h.prev = b.tailIdx
	h.next = noIndex
	b.tailIdx = h.self
}

// Statements returns the statement list in order, head to tail.
func (b *Builder) Statements() []Node {
	var out []Node
	for idx := b.headIdx; idx != noIndex; {
		n := b.arena[idx]
		out = append(out, n)
		idx = n.Hdr().next
	}
	return out
}

// ResolveOffset looks up the node registered at a UAL byte offset, for
// branch-target resolution (spec §4.5 "Branch-target invariant").
func (b *Builder) ResolveOffset(offset int) (Node, bool) {
	n, ok := b.offsetMap[offset]
	return n, ok
}

// Len returns how many nodes have been registered in the arena (used by
// tests/disassembly, not by the invariants themselves).
func (b *Builder) Len() int { return len(b.arena) }
