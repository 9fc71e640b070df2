package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

func TestLookup(t *testing.T) {
	reg := New()

	d, err := reg.Lookup(types.ProviderLocalServer, "nomic-embed-text")
	require.NoError(t, err)
	assert.Equal(t, 768, d.Dimensions)
	assert.Equal(t, types.CostFree, d.Cost)
	assert.Equal(t, types.PrivacyLocalOnly, d.Privacy)
}

func TestLookupUnknownModel(t *testing.T) {
	reg := New()

	_, err := reg.Lookup(types.ProviderHostedAPI, "no-such-model")
	var unknown *types.UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, types.ProviderHostedAPI, unknown.Provider)
	assert.Equal(t, "no-such-model", unknown.Name)

	// Same name under the wrong provider is still unknown.
	_, err = reg.Lookup(types.ProviderHostedAPI, "nomic-embed-text")
	assert.ErrorAs(t, err, &unknown)
}

func TestListCompatible(t *testing.T) {
	reg := New()

	var names []string
	for d := range reg.ListCompatible(768) {
		names = append(names, d.Name)
		assert.Equal(t, 768, d.Dimensions)
	}
	assert.Equal(t, []string{"nomic-embed-text", "text-embedding-3-small", "all-mpnet-base-v2"}, names,
		"catalog order must be stable")

	var none []types.ModelDescriptor
	for d := range reg.ListCompatible(999) {
		none = append(none, d)
	}
	assert.Empty(t, none)
}

func TestListCompatibleEarlyStop(t *testing.T) {
	reg := New()

	count := 0
	for range reg.ListCompatible(768) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestAllStableOrder(t *testing.T) {
	reg := New()
	first := reg.All()
	second := reg.All()
	assert.Equal(t, first, second)
	assert.Equal(t, reg.Len(), len(first))
}

func TestLoadOverlayAddsAndOverrides(t *testing.T) {
	overlay := `models:
  - provider: local-server
    model_name: snowflake-arctic-embed
    dimensions: 1024
    cost_class: free
    privacy_class: local-only
  - provider: hosted-api
    model_name: text-embedding-3-small
    dimensions: 1536
    cost_class: metered
    privacy_class: external-api
`
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	reg := New()
	builtinLen := reg.Len()
	require.NoError(t, reg.LoadOverlay(path))

	// New entry added.
	added, err := reg.Lookup(types.ProviderLocalServer, "snowflake-arctic-embed")
	require.NoError(t, err)
	assert.Equal(t, 1024, added.Dimensions)

	// Existing entry overridden in place, not duplicated.
	overridden, err := reg.Lookup(types.ProviderHostedAPI, "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, 1536, overridden.Dimensions)
	assert.Equal(t, builtinLen+1, reg.Len())
}

func TestLoadOverlayRejectsInvalidEntry(t *testing.T) {
	overlay := `models:
  - provider: local-server
    model_name: bad-model
    dimensions: 0
`
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	reg := New()
	err := reg.LoadOverlay(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}

func TestLoadOverlayMissingFile(t *testing.T) {
	reg := New()
	err := reg.LoadOverlay(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPresetsResolveThroughCatalog(t *testing.T) {
	reg := New()
	presets := reg.Presets()
	require.NotEmpty(t, presets)

	var recommended int
	for _, p := range presets {
		assert.NotEmpty(t, p.ID)
		assert.Positive(t, p.Embedding.Dimensions)
		if p.Recommended {
			recommended++
		}
	}
	assert.Equal(t, 1, recommended)
}
