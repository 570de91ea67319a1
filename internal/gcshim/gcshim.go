// Package gcshim models the garbage-collector external collaborator
// described in spec §1/§6: an Allocate/Mark/Unmark contract that
// generated code calls as ordinary host functions. The real GC lives
// outside this module's scope; this package defines the contract plus a
// small in-process reference implementation (grounded on the teacher's
// habit of pairing an interface with a test double, e.g.
// internal/interp's environment stack) used to exercise the write-barrier
// discipline in tests without a real allocator.
package gcshim

import "fmt"

// Flags qualifies an Allocate call (spec §6).
type Flags uint8

// ArrayOfRefs marks an allocation as an array whose slots hold references,
// meaning the GC must track each slot individually.
const ArrayOfRefs Flags = 1 << 0

// Slot is an opaque handle to a GC-tracked location: a local-variable
// slot holding a reference, or a constant-pool entry. It carries no
// memory semantics here — the reference implementation only tracks mark
// state, not real pointers.
type Slot uint64

// GC is the generated-code-facing contract: Allocate obtains a new
// tracked block, Mark/Unmark record that a slot now/no-longer holds a
// live root reference (spec §6 write-barrier contract).
type GC interface {
	Allocate(size, objCount int, flags Flags) (Slot, error)
	Mark(slot Slot, isRoot bool)
	Unmark(slot Slot, isRoot bool)
}

// allocation records one Allocate call's bookkeeping.
type allocation struct {
	size     int
	objCount int
	flags    Flags
}

// Reference is a simple in-process GC shim: it never actually collects,
// but records every Allocate/Mark/Unmark call in Calls and keeps a
// per-slot mark count (MarkCount) so tests can check barrier pairing. It
// does not reject unpaired or out-of-order calls itself: an Unmark on a
// slot with no outstanding mark leaves its count at zero.
type Reference struct {
	nextSlot Slot
	allocs   map[Slot]*allocation
	marks    map[Slot]int // mark depth per slot; roots and object refs share a counter here
	Calls    []string     // ordered log of "Allocate"/"Mark"/"Unmark" calls, for assertions
}

// NewReference creates an empty reference GC.
func NewReference() *Reference {
	return &Reference{
		nextSlot: 1,
		allocs:   make(map[Slot]*allocation),
		marks:    make(map[Slot]int),
	}
}

func (r *Reference) Allocate(size, objCount int, flags Flags) (Slot, error) {
	if size < 0 || objCount < 0 {
		return 0, fmt.Errorf("gcshim: negative size/objCount")
	}
	s := r.nextSlot
	r.nextSlot++
	r.allocs[s] = &allocation{size: size, objCount: objCount, flags: flags}
	r.Calls = append(r.Calls, fmt.Sprintf("Allocate(size=%d,objCount=%d,flags=%d)", size, objCount, flags))
	return s, nil
}

func (r *Reference) Mark(slot Slot, isRoot bool) {
	r.marks[slot]++
	r.Calls = append(r.Calls, fmt.Sprintf("Mark(%d,root=%v)", slot, isRoot))
}

func (r *Reference) Unmark(slot Slot, isRoot bool) {
	if r.marks[slot] > 0 {
		r.marks[slot]--
	}
	r.Calls = append(r.Calls, fmt.Sprintf("Unmark(%d,root=%v)", slot, isRoot))
}

// MarkCount returns how many outstanding marks slot currently has, for
// test assertions on barrier pairing.
func (r *Reference) MarkCount(slot Slot) int { return r.marks[slot] }
