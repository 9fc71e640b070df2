// Package registry holds the catalog of known embedding models and their
// static metadata. The catalog is populated at startup (builtin entries plus
// an optional overlay file) and read-only afterwards.
package registry

import (
	"iter"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// modelKey identifies a catalog entry. Lookup is by provider and name; the
// catalogued dimensionality belongs to the descriptor, not the key.
type modelKey struct {
	provider types.Provider
	name     string
}

// Registry is a read-only table of embedding models.
type Registry struct {
	models map[modelKey]types.ModelDescriptor
	order  []modelKey // insertion order, for deterministic listings
}

// New returns a registry populated with the builtin catalog.
func New() *Registry {
	r := &Registry{models: make(map[modelKey]types.ModelDescriptor)}
	for _, d := range builtinCatalog {
		r.add(d)
	}
	return r
}

func (r *Registry) add(d types.ModelDescriptor) {
	k := modelKey{provider: d.Provider, name: d.Name}
	if _, exists := r.models[k]; !exists {
		r.order = append(r.order, k)
	}
	r.models[k] = d
}

// Lookup resolves a provider/name pair to its catalogued descriptor.
func (r *Registry) Lookup(provider types.Provider, name string) (types.ModelDescriptor, error) {
	d, ok := r.models[modelKey{provider: provider, name: name}]
	if !ok {
		return types.ModelDescriptor{}, &types.UnknownModelError{Provider: provider, Name: name}
	}
	return d, nil
}

// ListCompatible produces a lazy sequence of all registered models matching
// the given dimensionality exactly, in catalog order. Used to propose
// migration targets and switch alternatives.
func (r *Registry) ListCompatible(dimensions int) iter.Seq[types.ModelDescriptor] {
	return func(yield func(types.ModelDescriptor) bool) {
		for _, k := range r.order {
			d := r.models[k]
			if d.Dimensions != dimensions {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// All returns every catalogued model in catalog order.
func (r *Registry) All() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.models[k])
	}
	return out
}

// Len returns the number of catalogued models.
func (r *Registry) Len() int {
	return len(r.models)
}
