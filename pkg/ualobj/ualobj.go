// Package ualobj exports the managed object model surface a host
// embedder needs to lay out memory compatible with generated code:
// string and array headers, each starting with a GC-visible TypeTag word
// (grounded on original_source/Runtime/Runtime.h's array/string headers),
// and StackEntry, a typed boxed 64-bit value for host embedders.
//
// This package only describes layout; it allocates nothing itself — the
// GC external collaborator (internal/gcshim) owns allocation.
package ualobj

import (
	"unsafe"

	"github.com/cwbudde/go-ual/internal/types"
)

// TypeTag is the runtime type discriminator word every GC-tracked
// allocation starts with, so the GC shim and generated code agree on
// layout without guessing.
type TypeTag uint32

const (
	TagString TypeTag = iota + 1
	TagStringArray
)

// StringHeader is the managed representation of a System.String value.
// Data points at UTF-8 bytes that are not NUL-terminated; this is
// distinct from the raw byte spans internal/binreader hands back, which
// point directly into the mapped module file and are never copied into
// a StringHeader until an LDSTR or constant-pool reference needs a
// managed string.
type StringHeader struct {
	Tag  TypeTag
	Len  int32
	Data unsafe.Pointer
}

// ArrayHeader is the fixed header prefixing array storage. ElemIsRef
// tells the GC shim whether Mark/Unmark must be invoked per slot when an
// element is replaced (the array-set write-barrier rule).
type ArrayHeader struct {
	Tag       TypeTag
	Length    int32
	ElemIsRef bool
}

// StackEntry is a raw 64-bit word tagged with its managed type, an
// IR-independent shape for a host embedder. The verifier's typed
// evaluation stack is *ir.Node (each node carries its own ResultType);
// neither CodeGen nor the Invoker constructs a StackEntry: CodeGen binds
// call arguments as emitter registers, and WrapArgs builds StringHeader
// values directly.
type StackEntry struct {
	Type *types.Type
	Bits uint64
}

// NewStackEntry boxes a raw 64-bit word under the given managed type.
func NewStackEntry(t *types.Type, bits uint64) StackEntry {
	return StackEntry{Type: t, Bits: bits}
}
