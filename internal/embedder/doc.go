// Package embedder generates vector embeddings for document text.
//
// Each Embedder instance is bound to exactly one catalogued model descriptor
// and produces vectors of that descriptor's dimensionality, nothing else.
// Providers verify the dimensionality of every vector they receive from the
// model; a model answering with the wrong width is an error, not data.
//
// # Basic Usage
//
//	emb, err := embedder.ForDescriptor(descriptor, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "release notes for v2.1",
//	})
//
// # Batch Processing
//
// For indexing runs, use batch processing:
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
// # Providers
//
// Three providers are available, selected by the descriptor's provider class:
//
//   - local-server: a local Ollama instance (POST /api/embeddings)
//   - hosted-api: the OpenAI embeddings API, client-side rate limited
//   - self-hosted-transformer: a deterministic offline stand-in
//
// All providers share an LRU cache keyed by model and content hash, and the
// HTTP providers retry transient failures with exponential backoff.
package embedder
