// Package config is the configuration surface supplying the active embedding
// model selection. The selection lives in <home>/config.json; Save copies the
// previous document to config.json.bak before every update so a bad switch
// can be rolled back by hand.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// Environment variables recognized by the manager.
const (
	EnvProvider   = "VECGUARD_EMBEDDING_PROVIDER"
	EnvModel      = "VECGUARD_EMBEDDING_MODEL"
	EnvOllamaHost = "OLLAMA_HOST"
	EnvHome       = "VECGUARD_HOME"
)

// Defaults for a fresh installation.
const (
	DefaultProvider  = types.ProviderLocalServer
	DefaultModel     = "nomic-embed-text"
	DefaultBatchSize = 50
)

// Config is the persisted configuration document.
type Config struct {
	Provider   types.Provider `json:"provider"`
	Model      string         `json:"model"`
	OllamaHost string         `json:"ollama_host,omitempty"`
	BatchSize  int            `json:"batch_size,omitempty"`
}

// Manager loads and saves the configuration document, serializing writers.
type Manager struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewManager creates a manager for <home>/config.json.
func NewManager(home string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		path:   filepath.Join(home, "config.json"),
		logger: logger,
	}
}

// Load reads the configuration, falling back to defaults when the file does
// not exist, then applies environment overrides. Environment always wins:
// an operator can retarget one invocation without editing the file.
func (m *Manager) Load() (*Config, error) {
	cfg := &Config{
		Provider:  DefaultProvider,
		Model:     DefaultModel,
		BatchSize: DefaultBatchSize,
	}

	data, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fresh installation, defaults apply.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", m.path, err)
		}
	}

	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider = types.Provider(v)
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		cfg.OllamaHost = v
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return cfg, nil
}

// Save writes the configuration document, copying any existing file to
// config.json.bak first and then replacing the original atomically.
func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.backupExisting(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// backupExisting copies the current config to config.json.bak. Missing
// original means first save, nothing to back up.
func (m *Manager) backupExisting() error {
	src, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open config for backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(m.path + ".bak")
	if err != nil {
		return fmt.Errorf("create config backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write config backup: %w", err)
	}
	return dst.Close()
}

// Active resolves the current selection to its catalogued descriptor. A
// selection naming a model absent from the registry surfaces the typed
// UnknownModel error.
func (m *Manager) Active(reg *registry.Registry) (types.ModelDescriptor, error) {
	cfg, err := m.Load()
	if err != nil {
		return types.ModelDescriptor{}, err
	}
	return reg.Lookup(cfg.Provider, cfg.Model)
}

// SetActive updates only the model selection, preserving the rest of the
// document. This is the setter the migration orchestrator's switch action
// consumes.
func (m *Manager) SetActive(d types.ModelDescriptor) error {
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	cfg.Provider = d.Provider
	cfg.Model = d.Name
	if err := m.Save(cfg); err != nil {
		return err
	}
	m.logger.Info("active embedding model updated", "model", d.String())
	return nil
}

// Path returns the location of the configuration document.
func (m *Manager) Path() string {
	return m.path
}

// Home returns the vecguard home directory: $VECGUARD_HOME when set,
// otherwise ~/.vecguard.
func Home() (string, error) {
	if v := os.Getenv(EnvHome); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".vecguard"), nil
}
