package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhhai680/vecguard-mcp/internal/logging"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	m := NewManager(t.TempDir(), logging.Noop())

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, cfg.Provider)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir(), logging.Noop())

	cfg := &Config{
		Provider:   types.ProviderHostedAPI,
		Model:      "text-embedding-3-small",
		OllamaHost: "http://ollama.internal:11434",
		BatchSize:  25,
	}
	require.NoError(t, m.Save(cfg))

	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveBacksUpPrevious(t *testing.T) {
	home := t.TempDir()
	m := NewManager(home, logging.Noop())

	// First save: nothing to back up.
	require.NoError(t, m.Save(&Config{Provider: types.ProviderLocalServer, Model: "all-minilm"}))
	_, err := os.Stat(filepath.Join(home, "config.json.bak"))
	assert.True(t, os.IsNotExist(err))

	// Second save: previous document preserved as .bak.
	require.NoError(t, m.Save(&Config{Provider: types.ProviderHostedAPI, Model: "text-embedding-ada-002"}))

	backup, err := os.ReadFile(filepath.Join(home, "config.json.bak"))
	require.NoError(t, err)
	assert.Contains(t, string(backup), "all-minilm")

	current, err := os.ReadFile(filepath.Join(home, "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(current), "text-embedding-ada-002")
}

func TestEnvOverrides(t *testing.T) {
	m := NewManager(t.TempDir(), logging.Noop())
	require.NoError(t, m.Save(&Config{Provider: types.ProviderLocalServer, Model: "nomic-embed-text"}))

	t.Setenv(EnvProvider, string(types.ProviderHostedAPI))
	t.Setenv(EnvModel, "text-embedding-3-large")
	t.Setenv(EnvOllamaHost, "http://other:11434")

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, types.ProviderHostedAPI, cfg.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Model)
	assert.Equal(t, "http://other:11434", cfg.OllamaHost)
}

func TestActive(t *testing.T) {
	m := NewManager(t.TempDir(), logging.Noop())
	reg := registry.New()

	// Defaults resolve to the builtin nomic-embed-text entry.
	desc, err := m.Active(reg)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", desc.Name)
	assert.Equal(t, 768, desc.Dimensions)

	// A selection outside the catalog is a typed UnknownModel error.
	require.NoError(t, m.Save(&Config{Provider: types.ProviderHostedAPI, Model: "made-up"}))
	_, err = m.Active(reg)
	var unknown *types.UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "made-up", unknown.Name)
}

func TestSetActive(t *testing.T) {
	m := NewManager(t.TempDir(), logging.Noop())
	require.NoError(t, m.Save(&Config{
		Provider:   types.ProviderLocalServer,
		Model:      "nomic-embed-text",
		OllamaHost: "http://custom:11434",
	}))

	require.NoError(t, m.SetActive(types.ModelDescriptor{
		Provider:   types.ProviderHostedAPI,
		Name:       "text-embedding-3-small",
		Dimensions: 768,
	}))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, types.ProviderHostedAPI, cfg.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	// Fields outside the selection survive.
	assert.Equal(t, "http://custom:11434", cfg.OllamaHost)
}

func TestHome(t *testing.T) {
	t.Setenv(EnvHome, "/tmp/vecguard-test-home")
	home, err := Home()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vecguard-test-home", home)
}
