package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

var (
	nomicModel = types.ModelDescriptor{
		Provider:   types.ProviderLocalServer,
		Name:       "nomic-embed-text",
		Dimensions: 4,
	}
	smallModel = types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-small",
		Dimensions: 4,
	}
)

// newOllamaServer fakes the Ollama embeddings endpoint, answering every
// prompt with a vector of the given width.
func newOllamaServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Prompt)

		embedding := make([]float64, dims)
		embedding[0] = 1
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"embedding": embedding})
	}))
}

func TestOllamaProviderBatch(t *testing.T) {
	calls := 0
	server := newOllamaServer(t, nomicModel.Dimensions, &calls)
	defer server.Close()

	provider := NewOllamaProvider(server.URL, nomicModel, NewCache(10))
	defer provider.Close()

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"alpha", "beta"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	// One HTTP call per prompt, the endpoint has no batch form.
	assert.Equal(t, 2, calls)
	assert.Equal(t, "nomic-embed-text", resp.Model)
	assert.Len(t, resp.Embeddings[0].Vector, nomicModel.Dimensions)
}

func TestOllamaProviderCacheHit(t *testing.T) {
	calls := 0
	server := newOllamaServer(t, nomicModel.Dimensions, &calls)
	defer server.Close()

	provider := NewOllamaProvider(server.URL, nomicModel, NewCache(10))
	defer provider.Close()
	ctx := context.Background()

	_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached text"})
	require.NoError(t, err)
	_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached text"})
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second request should be served from cache")
}

func TestOllamaProviderDimensionDrift(t *testing.T) {
	calls := 0
	// Server answers with 8 dimensions against a 4-dimension catalog entry.
	server := newOllamaServer(t, 8, &calls)
	defer server.Close()

	provider := NewOllamaProvider(server.URL, nomicModel, nil)
	defer provider.Close()

	_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "drift"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned 8 dimensions")
}

func TestOllamaProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, nomicModel, nil)
	defer provider.Close()

	_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestOllamaProviderDefaultHost(t *testing.T) {
	provider := NewOllamaProvider("", nomicModel, nil)
	defer provider.Close()
	assert.Equal(t, DefaultOllamaHost, provider.host)
}

func TestOllamaProviderBatchTooLarge(t *testing.T) {
	provider := NewOllamaProvider("http://example.invalid", nomicModel, nil)
	defer provider.Close()

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "text"
	}
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

// newOpenAIProviderForTest builds a provider pointed at a test server with
// an effectively unlimited rate limiter.
func newOpenAIProviderForTest(serverURL string, d types.ModelDescriptor, cache *Cache) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:     "test-key",
		endpoint:   serverURL,
		descriptor: d,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		cache:      cache,
	}
}

func TestOpenAIProviderBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, smallModel.Dimensions, req.Dimensions)

		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{
				"index":     i,
				"embedding": make([]float32, smallModel.Dimensions),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model,
			"data":  data,
		})
	}))
	defer server.Close()

	provider := newOpenAIProviderForTest(server.URL, smallModel, NewCache(10))
	defer provider.Close()

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"one", "two"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, "text-embedding-3-small", resp.Model)
}

func TestOpenAIProviderRetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": smallModel.Name,
			"data": []map[string]interface{}{
				{"index": 0, "embedding": make([]float32, smallModel.Dimensions)},
			},
		})
	}))
	defer server.Close()

	provider := newOpenAIProviderForTest(server.URL, smallModel, nil)
	defer provider.Close()

	_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "retry me"})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestOpenAIProviderMissingAPIKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	_, err := NewOpenAIProvider("", smallModel, nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := retryWithBackoff(ctx, RetryConfig{
		MaxRetries: 5,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		Multiplier: 2,
	}, func() (int, error) {
		attempts++
		cancel()
		return 0, assert.AnError
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
