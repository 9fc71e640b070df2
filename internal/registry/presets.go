package registry

import "github.com/anhhai680/vecguard-mcp/pkg/types"

// Preset names a recommended embedding deployment profile. GenerationModel is
// an informational label for the pairing documentation only; vecguard never
// talks to generation providers.
type Preset struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Embedding       types.ModelDescriptor `json:"embedding"`
	GenerationModel string                `json:"generation_model"`
	Benefits        []string              `json:"benefits"`
	Recommended     bool                  `json:"recommended,omitempty"`
}

type presetSpec struct {
	id              string
	name            string
	description     string
	provider        types.Provider
	model           string
	generationModel string
	benefits        []string
	recommended     bool
}

var builtinPresets = []presetSpec{
	{
		id:              "hybrid_optimal",
		name:            "Hybrid Optimal (Recommended)",
		description:     "Best balance of privacy, cost, and performance using local embeddings with external generation",
		provider:        types.ProviderLocalServer,
		model:           "nomic-embed-text",
		generationModel: "openai/gpt-4o-mini",
		benefits:        []string{"100% Privacy for Documents", "Zero Embedding Costs", "High-Quality Answers", "No API Limits for Embeddings"},
		recommended:     true,
	},
	{
		id:              "openai_compatible",
		name:            "OpenAI Compatible",
		description:     "Use OpenAI for both embeddings and generation with 768D compatibility",
		provider:        types.ProviderHostedAPI,
		model:           "text-embedding-3-small",
		generationModel: "openai/gpt-4o-mini",
		benefits:        []string{"Single Provider", "Enterprise Support", "High Reliability", "Dimension Compatibility"},
	},
	{
		id:              "google_hybrid",
		name:            "Google Gemini Hybrid",
		description:     "Local embeddings with Google Gemini for generation",
		provider:        types.ProviderLocalServer,
		model:           "nomic-embed-text",
		generationModel: "google/gemini-2.5-flash",
		benefits:        []string{"Free Embeddings", "Fast Google Generation", "Cost Effective", "Privacy for Documents"},
	},
	{
		id:              "fully_local",
		name:            "Fully Local (Privacy First)",
		description:     "Complete local processing using only Ollama models",
		provider:        types.ProviderLocalServer,
		model:           "nomic-embed-text",
		generationModel: "ollama/llama3.1",
		benefits:        []string{"100% Local", "Complete Privacy", "Zero API Costs", "No Internet Required"},
	},
}

// Presets returns the deployment presets with their embedding descriptors
// resolved through the catalog, so overlay overrides flow into the presets
// as well. Presets naming a model absent from the catalog are skipped.
func (r *Registry) Presets() []Preset {
	out := make([]Preset, 0, len(builtinPresets))
	for _, p := range builtinPresets {
		desc, err := r.Lookup(p.provider, p.model)
		if err != nil {
			continue
		}
		out = append(out, Preset{
			ID:              p.id,
			Name:            p.name,
			Description:     p.description,
			Embedding:       desc,
			GenerationModel: p.generationModel,
			Benefits:        p.benefits,
			Recommended:     p.recommended,
		})
	}
	return out
}
