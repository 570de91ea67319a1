package abi

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the top-level shape of an --abi-manifest YAML document: a
// list of externs with human-readable documentation. Apply stores each
// entry as metadata retrievable through Registry.Info; nothing else in
// this module reads that metadata (UnresolvedExtern messages do not
// include it). It never registers a HostFunc itself — function pointers
// are always wired from Go at startup (spec §6).
type Manifest struct {
	Externs []ExternInfo `yaml:"externs"`
}

// LoadManifest reads and parses a YAML extern manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("abi: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("abi: parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Apply registers every manifest entry's metadata on the registry.
func (m *Manifest) Apply(r *Registry) {
	for _, e := range m.Externs {
		r.RegisterInfo(e)
	}
}
