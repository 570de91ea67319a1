// Package module implements the UAL binary module format described in
// spec §4.3: a header listing classes and a method-import table, each
// class owning a lazily-parsed method table (ClassLoader), and a
// module-wide signature cache used for cross-class call resolution.
//
// Loading mirrors the teacher's serializer.go: the module header is
// decoded with internal/binreader the same way Serializer.writeHeader's
// counterpart would be read back, just specialized to UAL's class/method
// table layout instead of a single Chunk.
package module

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/cwbudde/go-ual/internal/binreader"
	"github.com/cwbudde/go-ual/internal/diag"
	"github.com/cwbudde/go-ual/internal/runtime"
	"github.com/cwbudde/go-ual/internal/sig"
)

// Module owns all classes and methods parsed from one UAL binary.
type Module struct {
	Runtime       *runtime.Runtime
	MethodImports map[uint32]string

	// BuildID uniquely tags this loaded module instance for diagnostics
	// across multi-module debugging sessions (SPEC_FULL §11).
	BuildID uuid.UUID

	classOrder []string
	classes    map[string]*Class

	// sigCache indexes every compiled Method across all classes by its
	// full signature text, for cross-class Call resolution (spec §3).
	sigCache map[string]*Method
}

// Class owns the methods parsed from one class's byte span.
type Class struct {
	Name   string
	rawBody []byte

	loaded  bool
	methods map[string]*Method // keyed by method name
}

// Load parses a module header (spec §4.3) from buf: the class table
// (name + byte span per class, left unparsed until first use) and the
// method-import table. It does not parse any class's method table yet —
// that happens lazily, mirroring "Modules are compiled lazily at first
// invocation of LoadMain" (spec §4.3).
func Load(buf []byte, rt *runtime.Runtime) (*Module, error) {
	r := binreader.New(buf)

	classCount, err := r.U32()
	if err != nil {
		return nil, shortRead("class count", err)
	}

	m := &Module{
		Runtime:       rt,
		MethodImports: make(map[uint32]string),
		BuildID:       uuid.New(),
		classes:       make(map[string]*Class, classCount),
		sigCache:      make(map[string]*Method),
	}

	for i := uint32(0); i < classCount; i++ {
		name, err := r.CStringStr()
		if err != nil {
			return nil, shortRead("class name", err)
		}
		length, err := r.U32()
		if err != nil {
			return nil, shortRead("class byte length", err)
		}
		body, err := r.Span(int(length))
		if err != nil {
			return nil, shortRead("class body", err)
		}

		cls := &Class{Name: name, rawBody: body, methods: make(map[string]*Method)}
		m.classes[name] = cls
		m.classOrder = append(m.classOrder, name)
	}

	importCount, err := r.U32()
	if err != nil {
		return nil, shortRead("method import count", err)
	}
	for i := uint32(0); i < importCount; i++ {
		handle, err := r.U32()
		if err != nil {
			return nil, shortRead("import handle", err)
		}
		sigText, err := r.CStringStr()
		if err != nil {
			return nil, shortRead("import signature", err)
		}
		m.MethodImports[handle] = sigText
	}

	return m, nil
}

func shortRead(what string, cause error) *diag.Error {
	return diag.New(diag.ShortRead, diag.Site{Offset: -1}, "%s: %v", what, cause)
}

// ClassNames returns the class names in file order (the order Invoker and
// CodeGen's class-level compile step must honor to be deterministic).
func (m *Module) ClassNames() []string {
	return append([]string(nil), m.classOrder...)
}

// Class returns a class by name.
func (m *Module) Class(name string) (*Class, bool) {
	c, ok := m.classes[name]
	return c, ok
}

// Method looks up a method by name within a compiled class (CompileClass
// must have been called first), rather than through the module-wide
// signature cache.
func (c *Class) Method(name string) (*Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// CompileClass parses cls's method table (spec §4.3's per-class
// `methodCount` / `methodSignature` / `bodyLength` / `methodBody`
// records) if not already done, constructing Method objects and
// registering each in the module-wide signature cache. Duplicate
// signatures across the whole module are a load-time error
// (DuplicateSignature, spec §7).
func (m *Module) CompileClass(name string) (*Class, error) {
	cls, ok := m.classes[name]
	if !ok {
		return nil, diag.New(diag.UnknownType, diag.Site{Class: name, Offset: -1}, "no such class")
	}
	if cls.loaded {
		return cls, nil
	}

	r := binreader.New(cls.rawBody)
	methodCount, err := r.U32()
	if err != nil {
		return nil, shortRead("method count", err)
	}

	for i := uint32(0); i < methodCount; i++ {
		sigText, err := r.CStringStr()
		if err != nil {
			return nil, shortRead("method signature", err)
		}
		bodyLen, err := r.U32()
		if err != nil {
			return nil, shortRead("method body length", err)
		}
		body, err := r.Span(int(bodyLen))
		if err != nil {
			return nil, shortRead("method body", err)
		}

		parsed, err := sig.Parse(sigText)
		if err != nil {
			return nil, diag.New(diag.BadSignature, diag.Site{Class: name, Offset: -1}, "%v", err)
		}

		method, err := parseMethodBody(parsed, body)
		if err != nil {
			return nil, err
		}
		method.Owner = cls

		if _, exists := m.sigCache[parsed.Full]; exists {
			return nil, diag.New(diag.DuplicateSignature, diag.Site{Class: name, Method: parsed.MethodName, Offset: -1}, "duplicate signature %q", parsed.Full)
		}
		m.sigCache[parsed.Full] = method
		cls.methods[parsed.MethodName] = method
	}

	cls.loaded = true
	return cls, nil
}

// parseMethodBody decodes the per-method header (spec §4.3): a 1-byte
// isManaged flag, and for managed methods a local count plus local type
// names, leaving the opcode stream (up through but not including the
// trailing 255 sentinel handling, which the Verifier does) as Method.Body.
func parseMethodBody(signature *sig.Signature, body []byte) (*Method, error) {
	r := binreader.New(body)
	isManagedByte, err := r.U8()
	if err != nil {
		return nil, shortRead("isManaged flag", err)
	}

	method := &Method{Signature: signature}
	if isManagedByte == 0 {
		method.IsManaged = false
		return method, nil
	}
	method.IsManaged = true

	localCount, err := r.U32()
	if err != nil {
		return nil, shortRead("local count", err)
	}
	method.LocalTypes = make([]string, 0, localCount)
	for i := uint32(0); i < localCount; i++ {
		name, err := r.CStringStr()
		if err != nil {
			return nil, shortRead("local type name", err)
		}
		method.LocalTypes = append(method.LocalTypes, name)
	}

	opcodes, err := r.Advance(r.Remaining())
	if err != nil {
		return nil, shortRead("opcode stream", err)
	}
	method.Body = opcodes
	return method, nil
}

// Resolve looks up a compiled Method by full signature text across every
// already-compiled class (used by Call opcode resolution and by the
// Invoker's Main search). The caller must have compiled the owning class
// first via CompileClass.
func (m *Module) Resolve(fullSignature string) (*Method, bool) {
	method, ok := m.sigCache[fullSignature]
	return method, ok
}

// ResolveImport resolves a numeric import handle to its compiled Method,
// compiling the owning class on demand. Returns diag.UnresolvedExtern if
// the handle's signature names an extern with no ABI registration and no
// managed method of that signature exists anywhere in the module.
func (m *Module) ResolveImport(handle uint32) (*Method, error) {
	sigText, ok := m.MethodImports[handle]
	if !ok {
		return nil, diag.New(diag.UnresolvedExtern, diag.Site{}, "unknown import handle %d", handle)
	}
	if method, ok := m.sigCache[sigText]; ok {
		return method, nil
	}

	parsed, err := sig.Parse(sigText)
	if err != nil {
		return nil, diag.New(diag.BadSignature, diag.Site{}, "%v", err)
	}

	// Cross-class calls: the callee may live in a class we have not yet
	// compiled. Compile every class until found, matching the spec's
	// module-wide cache semantics.
	for _, className := range m.classOrder {
		if _, err := m.CompileClass(className); err != nil {
			return nil, err
		}
		if method, ok := m.sigCache[parsed.Full]; ok {
			return method, nil
		}
	}

	if _, ok := m.Runtime.ABI.Lookup(parsed.MethodName); ok {
		method := &Method{Signature: parsed, IsManaged: false}
		m.sigCache[parsed.Full] = method
		return method, nil
	}

	return nil, diag.New(diag.UnresolvedExtern, diag.Site{Method: parsed.MethodName, Offset: -1}, "extern %q is not registered in the ABI registry", parsed.MethodName)
}

// AllMethods returns every compiled method across every already-compiled
// class, in deterministic class-then-name order.
func (m *Module) AllMethods() []*Method {
	names := m.ClassNames()
	methodsByClass := lo.Map(names, func(name string, _ int) []*Method {
		cls := m.classes[name]
		if cls == nil || !cls.loaded {
			return nil
		}
		keys := lo.Keys(cls.methods)
		slices.Sort(keys)
		return lo.Map(keys, func(k string, _ int) *Method { return cls.methods[k] })
	})
	var out []*Method
	for _, ms := range methodsByClass {
		out = append(out, ms...)
	}
	return out
}

func (m *Module) String() string {
	return fmt.Sprintf("Module{classes=%d, build=%s}", len(m.classes), m.BuildID)
}
