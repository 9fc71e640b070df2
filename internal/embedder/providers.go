package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// Provider configuration
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	DefaultOllamaHost = "http://localhost:11434"
	openAIEndpoint    = "https://api.openai.com/v1/embeddings"

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// OpenAI client-side throttle, requests per second with a small burst
	openAIRequestsPerSec = 3
	openAIBurst          = 6
)

// OllamaProvider implements Embedder against a local Ollama server.
type OllamaProvider struct {
	host       string
	descriptor types.ModelDescriptor
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an embedder backed by an Ollama instance. An
// empty host falls back to the default local address.
func NewOllamaProvider(host string, d types.ModelDescriptor, cache *Cache) *OllamaProvider {
	if host == "" {
		host = DefaultOllamaHost
	}
	return &OllamaProvider{
		host:       host,
		descriptor: d,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

func (p *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Check cache
	hash := ComputeHash(p.descriptor, req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	// Use retry logic with exponential backoff
	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return p.callAPI(ctx, req.Texts)
	})

	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	// Cache successful embeddings
	if p.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(p.descriptor, req.Texts[i])
			emb.Hash = hash
			p.cache.Set(hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   string(p.descriptor.Provider),
		Model:      p.descriptor.Name,
	}, nil
}

// callAPI walks the batch one prompt at a time; the Ollama embeddings
// endpoint accepts a single prompt per call.
func (p *OllamaProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	url := p.host + "/api/embeddings"
	embeddings := make([]*Embedding, len(texts))

	for i, text := range texts {
		reqBody := map[string]interface{}{
			"model":  p.descriptor.Name,
			"prompt": text,
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("api call: %w", err)
		}

		emb, err := p.decodeResponse(resp)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return embeddings, nil
}

func (p *OllamaProvider) decodeResponse(resp *http.Response) (*Embedding, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vector := make([]float32, len(apiResp.Embedding))
	for j, v := range apiResp.Embedding {
		vector[j] = float32(v)
	}
	if err := checkDimension(p.descriptor, vector); err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  string(p.descriptor.Provider),
		Model:     p.descriptor.Name,
	}, nil
}

func (p *OllamaProvider) Descriptor() types.ModelDescriptor {
	return p.descriptor
}

func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI API.
type OpenAIProvider struct {
	apiKey     string
	endpoint   string
	descriptor types.ModelDescriptor
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *Cache
}

// NewOpenAIProvider creates an embedder against the OpenAI API. The key
// falls back to OPENAI_API_KEY when empty.
func NewOpenAIProvider(apiKey string, d types.ModelDescriptor, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}

	return &OpenAIProvider{
		apiKey:     apiKey,
		endpoint:   openAIEndpoint,
		descriptor: d,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(openAIRequestsPerSec), openAIBurst),
		cache:   cache,
	}, nil
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Check cache
	hash := ComputeHash(p.descriptor, req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	// Use retry logic with exponential backoff
	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return p.callAPI(ctx, req.Texts)
	})

	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	// Cache successful embeddings
	if p.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(p.descriptor, req.Texts[i])
			emb.Hash = hash
			p.cache.Set(hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   string(p.descriptor.Provider),
		Model:      p.descriptor.Name,
	}, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"input": texts,
		"model": p.descriptor.Name,
	}
	// The v3 models accept an output dimensionality; the catalog entry is
	// what gets stored, so request exactly that. ada-002 predates the
	// parameter and always emits its native width.
	if p.descriptor.Name != "text-embedding-ada-002" {
		reqBody["dimensions"] = p.descriptor.Dimensions
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		if err := checkDimension(p.descriptor, data.Embedding); err != nil {
			return nil, err
		}
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  string(p.descriptor.Provider),
			Model:     p.descriptor.Name,
		}
	}

	return embeddings, nil
}

func (p *OpenAIProvider) Descriptor() types.ModelDescriptor {
	return p.descriptor
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic vectors without any model server.
// It stands in for a self-hosted sentence transformer in offline runs and
// tests: same text, same vector, correct dimensionality.
type LocalProvider struct {
	descriptor types.ModelDescriptor
	cache      *Cache
}

// NewLocalProvider creates a deterministic offline embedder.
func NewLocalProvider(d types.ModelDescriptor, cache *Cache) *LocalProvider {
	return &LocalProvider{
		descriptor: d,
		cache:      cache,
	}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	// Check cache
	hash := ComputeHash(l.descriptor, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    deterministicVector(req.Text, l.descriptor.Dimensions),
		Dimension: l.descriptor.Dimensions,
		Provider:  string(l.descriptor.Provider),
		Model:     l.descriptor.Name,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   string(l.descriptor.Provider),
		Model:      l.descriptor.Name,
	}, nil
}

func (l *LocalProvider) Descriptor() types.ModelDescriptor {
	return l.descriptor
}

func (l *LocalProvider) Close() error {
	return nil
}

// deterministicVector expands a text hash into a unit vector of the given
// width. The hash is re-digested in blocks so any dimensionality can be
// filled.
func deterministicVector(text string, dims int) []float32 {
	vector := make([]float32, dims)
	block := sha256.Sum256([]byte(text))
	for i := 0; i < dims; i++ {
		if i > 0 && i%sha256.Size == 0 {
			block = sha256.Sum256(block[:])
		}
		vector[i] = float32(block[i%sha256.Size])/255.0 - 0.5
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
