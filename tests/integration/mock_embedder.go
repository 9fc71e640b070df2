package integration

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/anhhai680/vecguard-mcp/internal/embedder"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// MockEmbedder provides a fake embedder for testing. It generates
// deterministic unit vectors of its descriptor's dimensionality from the
// text hash, so no model server is needed and results are reproducible.
type MockEmbedder struct {
	descriptor types.ModelDescriptor
}

// NewMockEmbedder creates a mock that impersonates the given catalog model.
func NewMockEmbedder(d types.ModelDescriptor) *MockEmbedder {
	return &MockEmbedder{descriptor: d}
}

// GenerateEmbedding generates a deterministic fake embedding
func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if req.Text == "" {
		return nil, embedder.ErrEmptyText
	}

	// Generate deterministic vector from text hash
	hash := sha256.Sum256([]byte(req.Text))
	vector := make([]float32, m.descriptor.Dimensions)

	// Use hash bytes to generate pseudo-random but deterministic floats
	for i := range vector {
		idx := (i * 4) % 32
		val := binary.BigEndian.Uint32(hash[idx : idx+4])
		// Normalize to [-1, 1]
		vector[i] = (float32(val)/float32(1<<32))*2 - 1
	}
	vector = embedder.NormalizeVector(vector)

	return &embedder.Embedding{
		Vector:    vector,
		Dimension: m.descriptor.Dimensions,
		Provider:  string(m.descriptor.Provider),
		Model:     m.descriptor.Name,
		Hash:      embedder.ComputeHash(m.descriptor, req.Text),
	}, nil
}

// GenerateBatch generates embeddings for multiple texts
func (m *MockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if len(req.Texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return &embedder.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   string(m.descriptor.Provider),
		Model:      m.descriptor.Name,
	}, nil
}

// Descriptor returns the impersonated catalog model
func (m *MockEmbedder) Descriptor() types.ModelDescriptor {
	return m.descriptor
}

// Close releases resources (no-op for mock)
func (m *MockEmbedder) Close() error {
	return nil
}

var _ embedder.Embedder = (*MockEmbedder)(nil)
