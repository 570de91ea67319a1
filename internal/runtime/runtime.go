// Package runtime implements the explicit Runtime context design note §9
// calls for: the source treats the TypeTable, method cache, and ABI
// registry as process-wide singletons; here the TypeTable and ABI
// registry are owned by one Runtime value threaded explicitly through
// Module load, Verifier, and CodeGen, created once before the first
// module and torn down after the last. The method signature cache is not
// part of Runtime: each Module keeps its own. Nothing mutates it once
// emission begins (spec §5).
package runtime

import (
	"github.com/cwbudde/go-ual/internal/abi"
	"github.com/cwbudde/go-ual/internal/types"
)

// Runtime bundles the shared, load-time-mutable state every stage needs.
type Runtime struct {
	Types *types.Table
	ABI   *abi.Registry
}

// New creates a Runtime with built-in types and built-in ABI externs
// pre-registered (spec §6 "Built-in registrations").
func New() *Runtime {
	return &Runtime{
		Types: types.New(),
		ABI:   abi.NewRegistry(),
	}
}
