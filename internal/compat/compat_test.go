package compat

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhhai680/vecguard-mcp/internal/logging"
	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

func setupValidator(t *testing.T) (*Validator, *metastore.Store) {
	t.Helper()
	store, err := metastore.New(t.TempDir(), logging.Noop())
	require.NoError(t, err)
	return New(store, logging.Noop()), store
}

func descriptor(p types.Provider, name string, dims int) types.ModelDescriptor {
	return types.ModelDescriptor{Provider: p, Name: name, Dimensions: dims}
}

func TestCheckNoMetadata(t *testing.T) {
	v, _ := setupValidator(t)

	// A brand-new collection with no prior record: any descriptor yields
	// NoMetadata.
	verdict, meta, err := v.Check("repo-b",
		descriptor(types.ProviderLocalServer, "nomic-embed-text", 768))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictNoMetadata, verdict)
	assert.Nil(t, meta)
	assert.False(t, verdict.Blocks())
}

func TestCheckSameDimensionsDifferentProvider(t *testing.T) {
	v, store := setupValidator(t)

	_, err := store.Record("repo-a",
		descriptor(types.ProviderLocalServer, "nomic-embed-text", 768), 100)
	require.NoError(t, err)

	// Different provider and model name, same dimensionality: compatible.
	verdict, meta, err := v.Check("repo-a",
		descriptor(types.ProviderHostedAPI, "text-embedding-3-small", 768))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictCompatible, verdict)
	require.NotNil(t, meta)
	assert.Equal(t, 768, meta.ProducedBy.Dimensions)
}

func TestCheckDimensionMismatch(t *testing.T) {
	v, store := setupValidator(t)

	_, err := store.Record("repo-a",
		descriptor(types.ProviderLocalServer, "nomic-embed-text", 768), 100)
	require.NoError(t, err)

	verdict, meta, err := v.Check("repo-a",
		descriptor(types.ProviderHostedAPI, "text-embedding-ada-002", 1536))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictDimensionMismatch, verdict)
	require.NotNil(t, meta)
	assert.Equal(t, 768, meta.ProducedBy.Dimensions)
	assert.True(t, verdict.Blocks())
}

func TestCheckRejectsInvalidDescriptor(t *testing.T) {
	v, _ := setupValidator(t)

	_, _, err := v.Check("repo-a", descriptor(types.ProviderLocalServer, "nomic-embed-text", 0))
	assert.Error(t, err)

	_, _, err = v.Check("repo-a", descriptor("faiss", "index", 768))
	assert.Error(t, err)
}

func TestCheckCorruptMetadataTreatedAsUnrecorded(t *testing.T) {
	home := t.TempDir()
	store, err := metastore.New(home, logging.Noop())
	require.NoError(t, err)

	// Write garbage where a metadata document should be.
	path := filepath.Join(home, "metadata", "damaged.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var logOutput bytes.Buffer
	v := New(store, logging.NewWithWriter(&logOutput, "warn", false))

	verdict, meta, err := v.Check("damaged",
		descriptor(types.ProviderLocalServer, "nomic-embed-text", 768))
	require.NoError(t, err)
	assert.Equal(t, types.VerdictNoMetadata, verdict)
	assert.Nil(t, meta)

	// The corruption is logged distinctly, never silent.
	assert.Contains(t, logOutput.String(), "corrupt")
	assert.Contains(t, logOutput.String(), "damaged")
}

func TestCheckTableDriven(t *testing.T) {
	tests := []struct {
		name      string
		stored    int // 0 means no record
		requested int
		want      types.Verdict
	}{
		{"equal 768", 768, 768, types.VerdictCompatible},
		{"equal 384", 384, 384, types.VerdictCompatible},
		{"768 vs 1536", 768, 1536, types.VerdictDimensionMismatch},
		{"1536 vs 768", 1536, 768, types.VerdictDimensionMismatch},
		{"unrecorded", 0, 3072, types.VerdictNoMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, store := setupValidator(t)
			if tt.stored > 0 {
				_, err := store.Record("repo-a",
					descriptor(types.ProviderLocalServer, "m", tt.stored), 1)
				require.NoError(t, err)
			}
			verdict, _, err := v.Check("repo-a",
				descriptor(types.ProviderHostedAPI, "other", tt.requested))
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict)
		})
	}
}
