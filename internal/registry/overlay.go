package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// overlayFile is the on-disk format of a catalog overlay:
//
//	models:
//	  - provider: hosted-api
//	    model_name: text-embedding-3-small
//	    dimensions: 1536
//	    cost_class: metered
//	    privacy_class: external-api
type overlayFile struct {
	Models []types.ModelDescriptor `yaml:"models"`
}

// LoadOverlay merges models from a YAML file into the catalog. Entries with
// a provider/name pair already present override the builtin descriptor.
// Call during startup, before the registry is shared.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model overlay: %w", err)
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse model overlay %s: %w", path, err)
	}

	for i, d := range overlay.Models {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("model overlay %s entry %d: %w", path, i, err)
		}
		r.add(d)
	}
	return nil
}
