package cmd

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-ual/internal/abi"
	"github.com/cwbudde/go-ual/internal/module"
	"github.com/cwbudde/go-ual/internal/runtime"
)

// loadModuleFile reads path and constructs a Runtime whose ABI registry
// has abiManifest's metadata applied (if non-empty), mirroring how the
// teacher's run command resolves its own search-path/unit flags before
// ever touching the parser.
func loadModuleFile(path, abiManifest string) (*module.Module, *runtime.Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read module %s: %w", path, err)
	}

	rt := runtime.New()
	if abiManifest != "" {
		manifest, err := abi.LoadManifest(abiManifest)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load ABI manifest %s: %w", abiManifest, err)
		}
		manifest.Apply(rt.ABI)
	}

	m, err := module.Load(data, rt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load module %s: %w", path, err)
	}
	return m, rt, nil
}

// compileAllClasses forces every class in m to parse its method table,
// surfacing the first load-time error (duplicate signature, short read,
// bad signature) eagerly instead of lazily at first call.
func compileAllClasses(m *module.Module) error {
	for _, name := range m.ClassNames() {
		if _, err := m.CompileClass(name); err != nil {
			return err
		}
	}
	return nil
}
