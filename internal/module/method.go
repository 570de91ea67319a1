package module

import (
	"github.com/cwbudde/go-ual/internal/diag"
	"github.com/cwbudde/go-ual/internal/sig"
	"github.com/cwbudde/go-ual/internal/types"
)

// Method is a single class method: either a managed UAL body to be
// verified and JIT-compiled, or an unmanaged extern stub resolved
// through the ABI registry (spec §3).
type Method struct {
	Signature  *sig.Signature
	IsManaged  bool
	LocalTypes []string
	Body       []byte // opcode stream, only populated for managed methods
	Owner      *Class

	// IR and EmittedEntry are filled in by later stages (Verifier and
	// CodeGen respectively). Typed as `any` here so the module package,
	// which is a dependency of both, never has to import them.
	IR           any // *ir.Builder
	EmittedEntry any // opaque native entry handle from CodeGen/Invoker
	ConstPool    any // *constpool.Pool
}

// ResolveTypes resolves this method's return type and argument types
// against the TypeTable, returning UnknownType if any name was never
// registered (spec §6: "all other type strings must be present in the
// TypeTable at first reference").
func (m *Method) ResolveTypes(tt *types.Table) (ret *types.Type, args []*types.Type, err *diag.Error) {
	ret, ok := tt.Lookup(m.Signature.ReturnType)
	if !ok && m.Signature.ReturnType != types.Void {
		return nil, nil, diag.New(diag.UnknownType, m.Site(-1), "unknown return type %q", m.Signature.ReturnType)
	}
	if !ok {
		ret = &types.Type{Name: types.Void}
	}

	args = make([]*types.Type, 0, len(m.Signature.Args))
	for _, a := range m.Signature.Args {
		t, ok := tt.Lookup(a)
		if !ok {
			return nil, nil, diag.New(diag.UnknownType, m.Site(-1), "unknown argument type %q", a)
		}
		args = append(args, t)
	}
	return ret, args, nil
}

// Site builds a diag.Site identifying this method (and, if offset >= 0,
// the UAL byte offset within it) for error reporting.
func (m *Method) Site(offset int) diag.Site {
	site := diag.Site{Method: m.Signature.MethodName, Offset: offset}
	if m.Owner != nil {
		site.Class = m.Owner.Name
	}
	return site
}

// Name returns the class-qualified method name for diagnostics/logging.
func (m *Method) Name() string {
	if m.Owner == nil {
		return m.Signature.MethodName
	}
	return m.Owner.Name + "::" + m.Signature.MethodName
}
