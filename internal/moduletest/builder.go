// Package moduletest builds raw UAL module byte streams matching the
// wire format in spec §4.3, for use by tests in internal/module,
// internal/verifier, internal/codegen, and internal/invoker. It is only
// ever imported from _test.go files.
package moduletest

import (
	"bytes"
	"encoding/binary"
)

// ModuleBuilder assembles a UAL module's bytes incrementally for test fixtures,
// mirroring the header layout in spec §4.3.
type ModuleBuilder struct {
	classes []classBuild
	imports []importBuild
}

type classBuild struct {
	name string
	body []byte
}

type importBuild struct {
	handle uint32
	sig    string
}

func NewModuleBuilder() *ModuleBuilder { return &ModuleBuilder{} }

func (b *ModuleBuilder) AddClass(name string, body []byte) *ModuleBuilder {
	b.classes = append(b.classes, classBuild{name: name, body: body})
	return b
}

func (b *ModuleBuilder) AddImport(handle uint32, signature string) *ModuleBuilder {
	b.imports = append(b.imports, importBuild{handle: handle, sig: signature})
	return b
}

func (b *ModuleBuilder) Bytes() []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(len(b.classes)))
	for _, c := range b.classes {
		writeCString(&buf, c.name)
		writeU32(&buf, uint32(len(c.body)))
		buf.Write(c.body)
	}
	writeU32(&buf, uint32(len(b.imports)))
	for _, imp := range b.imports {
		writeU32(&buf, imp.handle)
		writeCString(&buf, imp.sig)
	}
	return buf.Bytes()
}

// ClassBuilder assembles one class's method table.
type ClassBuilder struct {
	methods []methodBuild
}

type methodBuild struct {
	sig  string
	body []byte
}

func NewClassBuilder() *ClassBuilder { return &ClassBuilder{} }

func (c *ClassBuilder) AddMethod(signature string, body []byte) *ClassBuilder {
	c.methods = append(c.methods, methodBuild{sig: signature, body: body})
	return c
}

func (c *ClassBuilder) Bytes() []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(len(c.methods)))
	for _, m := range c.methods {
		writeCString(&buf, m.sig)
		writeU32(&buf, uint32(len(m.body)))
		buf.Write(m.body)
	}
	return buf.Bytes()
}

// ManagedBody builds a managed method body: isManaged=1, local count +
// local type names, then the raw opcode stream.
func ManagedBody(localTypes []string, opcodes []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(1)
	writeU32(&buf, uint32(len(localTypes)))
	for _, t := range localTypes {
		writeCString(&buf, t)
	}
	buf.Write(opcodes)
	return buf.Bytes()
}

// UnmanagedBody builds an extern stub method body: isManaged=0.
func UnmanagedBody() []byte {
	return []byte{0}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
