package embedder

import (
	"fmt"

	"github.com/anhhai680/vecguard-mcp/internal/config"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// New builds the embedder for the configured model selection. The selection
// is resolved through the registry first, so an unknown model surfaces the
// typed lookup error before any provider is constructed.
func New(reg *registry.Registry, cfg *config.Config) (Embedder, error) {
	d, err := reg.Lookup(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}
	return ForDescriptor(d, cfg.OllamaHost)
}

// ForDescriptor builds an embedder for an already-resolved descriptor.
// ollamaHost only applies to local-server models; empty means the default
// local address.
func ForDescriptor(d types.ModelDescriptor, ollamaHost string) (Embedder, error) {
	cache := NewCache(0) // default size

	switch d.Provider {
	case types.ProviderLocalServer:
		return NewOllamaProvider(ollamaHost, d, cache), nil
	case types.ProviderHostedAPI:
		return NewOpenAIProvider("", d, cache)
	case types.ProviderSelfHostedTransformer:
		// No transformer runtime is linked in; serve these models with the
		// deterministic offline provider.
		return NewLocalProvider(d, cache), nil
	default:
		return nil, fmt.Errorf("%w: provider %q", ErrNoProviderEnabled, d.Provider)
	}
}
