package types

import (
	"errors"
	"fmt"
)

// Provider identifies where an embedding model runs.
type Provider string

const (
	// ProviderLocalServer is a model served by a local inference server (Ollama).
	ProviderLocalServer Provider = "local-server"
	// ProviderHostedAPI is a model behind a metered external API (OpenAI).
	ProviderHostedAPI Provider = "hosted-api"
	// ProviderSelfHostedTransformer is a sentence-transformer model on
	// operator-managed hardware.
	ProviderSelfHostedTransformer Provider = "self-hosted-transformer"
)

// CostClass describes how usage of a model is billed.
type CostClass string

const (
	CostFree    CostClass = "free"
	CostMetered CostClass = "metered"
)

// PrivacyClass describes where document text travels during embedding.
type PrivacyClass string

const (
	PrivacyLocalOnly   PrivacyClass = "local-only"
	PrivacyExternalAPI PrivacyClass = "external-api"
)

// ModelDescriptor identifies an embedding model and its static metadata.
// Descriptors are immutable values. Equality is by provider, name, and
// dimensions only; cost and privacy classes are informational.
type ModelDescriptor struct {
	Provider   Provider     `json:"provider" yaml:"provider"`
	Name       string       `json:"model_name" yaml:"model_name"`
	Dimensions int          `json:"dimensions" yaml:"dimensions"`
	Cost       CostClass    `json:"cost_class,omitempty" yaml:"cost_class,omitempty"`
	Privacy    PrivacyClass `json:"privacy_class,omitempty" yaml:"privacy_class,omitempty"`
}

// Equal reports whether two descriptors identify the same model.
func (d ModelDescriptor) Equal(other ModelDescriptor) bool {
	return d.Provider == other.Provider &&
		d.Name == other.Name &&
		d.Dimensions == other.Dimensions
}

// String returns the canonical provider/name@dimensions form.
func (d ModelDescriptor) String() string {
	return fmt.Sprintf("%s/%s@%d", d.Provider, d.Name, d.Dimensions)
}

// Validate checks the descriptor for structural sanity.
func (d ModelDescriptor) Validate() error {
	switch d.Provider {
	case ProviderLocalServer, ProviderHostedAPI, ProviderSelfHostedTransformer:
	default:
		return fmt.Errorf("unknown provider %q", d.Provider)
	}
	if d.Name == "" {
		return errors.New("model name cannot be empty")
	}
	if d.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", d.Dimensions)
	}
	switch d.Cost {
	case "", CostFree, CostMetered:
	default:
		return fmt.Errorf("unknown cost class %q", d.Cost)
	}
	switch d.Privacy {
	case "", PrivacyLocalOnly, PrivacyExternalAPI:
	default:
		return fmt.Errorf("unknown privacy class %q", d.Privacy)
	}
	return nil
}
