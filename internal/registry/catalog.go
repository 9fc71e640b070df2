package registry

import "github.com/anhhai680/vecguard-mcp/pkg/types"

// builtinCatalog lists the models vecguard knows out of the box, grouped by
// provider. text-embedding-3-small is catalogued at 768 dimensions because
// deployments truncate it to pair with nomic-embed-text; the API's native
// 1536 output is not what gets stored.
var builtinCatalog = []types.ModelDescriptor{
	// Ollama local server
	{
		Provider:   types.ProviderLocalServer,
		Name:       "nomic-embed-text",
		Dimensions: 768,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	},
	{
		Provider:   types.ProviderLocalServer,
		Name:       "all-minilm",
		Dimensions: 384,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	},
	{
		Provider:   types.ProviderLocalServer,
		Name:       "mxbai-embed-large",
		Dimensions: 1024,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	},

	// OpenAI hosted API
	{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-small",
		Dimensions: 768,
		Cost:       types.CostMetered,
		Privacy:    types.PrivacyExternalAPI,
	},
	{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-ada-002",
		Dimensions: 1536,
		Cost:       types.CostMetered,
		Privacy:    types.PrivacyExternalAPI,
	},
	{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-large",
		Dimensions: 3072,
		Cost:       types.CostMetered,
		Privacy:    types.PrivacyExternalAPI,
	},

	// Self-hosted sentence transformers
	{
		Provider:   types.ProviderSelfHostedTransformer,
		Name:       "all-mpnet-base-v2",
		Dimensions: 768,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	},
	{
		Provider:   types.ProviderSelfHostedTransformer,
		Name:       "all-MiniLM-L6-v2",
		Dimensions: 384,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	},
	{
		Provider:   types.ProviderSelfHostedTransformer,
		Name:       "e5-large-v2",
		Dimensions: 1024,
		Cost:       types.CostFree,
		Privacy:    types.PrivacyLocalOnly,
	},
}
