// Package constpool implements the per-method interned constant-string
// table described in spec §3/§9: ConstString opcodes intern their text
// once per distinct value, and the whole table is rooted with the GC via
// MarkAll/Release.
//
// CodeGen interns each ConstString here but does not use the returned
// index: the reference backend's LoadConstString instruction carries the
// string text itself, and no pool-base or pool-index load is emitted.
// This package only owns the dedup table and the
// mark/unmark lifecycle, mirroring the teacher's habit of keeping a
// table's growth/relocation policy (internal/bytecode's constant pool)
// separate from the code that addresses it.
package constpool

import "github.com/cwbudde/go-ual/internal/gcshim"

// Pool interns string constants for one method.
type Pool struct {
	values []string
	index  map[string]int
	slots  []gcshim.Slot // one GC slot per interned value, parallel to values
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{index: make(map[string]int)}
}

// Intern returns the stable index for s, interning it if this is the
// first time the pool has seen this exact value (spec §8: "getString(M,s)
// == getString(M,s)").
func (p *Pool) Intern(s string) int {
	if i, ok := p.index[s]; ok {
		return i
	}
	i := len(p.values)
	p.values = append(p.values, s)
	p.index[s] = i
	return i
}

// Get returns the interned value at index, and whether index is valid.
func (p *Pool) Get(index int) (string, bool) {
	if index < 0 || index >= len(p.values) {
		return "", false
	}
	return p.values[index], true
}

// Len reports how many distinct strings have been interned.
func (p *Pool) Len() int { return len(p.values) }

// MarkAll allocates a GC slot for and marks every entry currently in the
// pool as a permanent root (spec §5: "Treat the constant-string pool
// entries as permanent roots during the method's lifetime"). Safe to call
// once after a method's ConstString opcodes have all been processed;
// calling it again only marks any newly interned entries.
func (p *Pool) MarkAll(gc gcshim.GC) error {
	for len(p.slots) < len(p.values) {
		slot, err := gc.Allocate(8, 0, 0)
		if err != nil {
			return err
		}
		p.slots = append(p.slots, slot)
		gc.Mark(slot, true)
	}
	return nil
}

// Release unmarks every pool entry, matching the source's per-Method
// destructor (spec §9 "Scoped resource release"). Call when the owning
// Method is being discarded (e.g. module reload in a long-lived host).
func (p *Pool) Release(gc gcshim.GC) {
	for _, slot := range p.slots {
		gc.Unmark(slot, true)
	}
}
