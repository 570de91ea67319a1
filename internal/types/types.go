// Package types implements the process-wide TypeTable described in
// spec §2/§3: a registry of named types, pre-seeded with the UAL
// built-ins, that the Module loader and Verifier consult whenever a
// type name is referenced.
//
// The design mirrors the teacher's internal/interp/types type-registry
// split (one focused registry object, case-sensitive here since UAL
// type names are fully qualified dotted identifiers, not user
// identifiers): a single struct owns a map and exposes Register/Lookup.
package types

import "fmt"

// Type is the runtime description of a UAL type: its storage size, its
// value/reference semantics, and, for composite (class) types, its
// field layout.
type Type struct {
	Name     string
	Size     int
	IsStruct bool // true: value semantics, inline, not GC-tracked
	Fields   map[string]*Type
}

// Built-in type names with defined meaning (spec §6).
const (
	Int32  = "System.Int32"
	Double = "System.Double"
	String = "System.String"
	Void   = "System.Void"
	// StringArray is the argument type Main must declare.
	StringArray = "System.String[]"
)

// wordSize is the machine pointer width this runtime targets (amd64/arm64).
const wordSize = 8

// builtins returns the pre-registered built-in types (spec §3).
func builtins() []*Type {
	return []*Type{
		{Name: Int32, Size: 4, IsStruct: true},
		{Name: Double, Size: 8, IsStruct: true},
		{Name: String, Size: wordSize, IsStruct: false},
		{Name: Void, Size: 0, IsStruct: false},
		{Name: StringArray, Size: wordSize, IsStruct: false},
	}
}

// Table is the process-wide TypeTable. Zero value is not usable; use New.
type Table struct {
	byName map[string]*Type
}

// New creates a TypeTable with all built-ins pre-registered.
func New() *Table {
	t := &Table{byName: make(map[string]*Type)}
	for _, bi := range builtins() {
		t.byName[bi.Name] = bi
	}
	return t
}

// Register adds a composite (class-derived) type to the table. Re-registering
// an existing name overwrites it; callers (ClassLoader) are expected to
// register each class exactly once.
func (t *Table) Register(typ *Type) {
	t.byName[typ.Name] = typ
}

// Lookup resolves a type name. ok is false if the name has never been
// referenced/registered — the Module loader reports this as UnknownType.
func (t *Table) Lookup(name string) (*Type, bool) {
	typ, ok := t.byName[name]
	return typ, ok
}

// MustLookup is a convenience for call sites that already validated
// presence (e.g. the four built-ins) and want a panic on programmer error
// rather than plumbing an error return.
func (t *Table) MustLookup(name string) *Type {
	typ, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("types: unregistered type %q", name))
	}
	return typ
}

// IsNumeric reports whether t is one of the primitive numeric types that
// binary arithmetic (ADD/SUB/MUL/DIV) is valid over (spec §3 invariants).
func (t *Type) IsNumeric() bool {
	return t != nil && (t.Name == Int32 || t.Name == Double)
}

// IsInt32 reports whether t is exactly System.Int32, the only type the
// bitwise/shift opcodes (§4.4) accept.
func (t *Type) IsInt32() bool {
	return t != nil && t.Name == Int32
}

// AlignedSize rounds Size up to an 8-byte boundary, the unit CodeGen packs
// frame-local slots in (spec §4.5 "Frame layout").
func (t *Type) AlignedSize() int {
	if t.IsStruct {
		if t.Size <= 0 {
			return wordSize
		}
		return (t.Size + wordSize - 1) / wordSize * wordSize
	}
	return wordSize
}

// Equal compares types by name; UAL types are uniquely identified by their
// TypeTable key.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Name == other.Name
}

func (t *Type) String() string { return t.Name }
