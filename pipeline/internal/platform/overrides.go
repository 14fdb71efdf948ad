package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile is the on-disk shape of a catalog override: a map of
// platform name to partial catalog. Listed events replace the built-in
// entry wholesale; unlisted events keep their built-in mapping.
type overrideFile struct {
	Platforms map[string]struct {
		Category string             `yaml:"category"`
		Events   map[string]Mapping `yaml:"events"`
	} `yaml:"platforms"`
}

// LoadOverrides merges a YAML catalog file over the built-in tables.
// Unknown platform names in the file create new catalogs, so a
// deployment can add a destination without a code change; such
// platforms receive the generic parameter set from synthesize.
func (m *Mapper) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog overrides: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing catalog overrides: %w", err)
	}

	for name, ov := range file.Platforms {
		cat, ok := m.catalogs[name]
		if !ok {
			cat = &Catalog{Category: "marketing", Events: map[string]Mapping{}}
			m.catalogs[name] = cat
		}
		if ov.Category != "" {
			cat.Category = ov.Category
		}
		for eventName, mapping := range ov.Events {
			cat.Events[eventName] = mapping
		}
	}
	return nil
}
