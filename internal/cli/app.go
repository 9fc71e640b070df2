package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anhhai680/vecguard-mcp/internal/compat"
	"github.com/anhhai680/vecguard-mcp/internal/config"
	"github.com/anhhai680/vecguard-mcp/internal/logging"
	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/internal/migrate"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// app bundles the components a CLI command operates on. Commands that only
// read the catalog use newCatalog instead; an app opens the index database.
type app struct {
	home      string
	logger    *slog.Logger
	registry  *registry.Registry
	config    *config.Manager
	meta      *metastore.Store
	index     vecstore.Index
	validator *compat.Validator
	orch      *migrate.Orchestrator
}

func resolveHome() (string, error) {
	if flagHome != "" {
		return flagHome, nil
	}
	return config.Home()
}

func newLogger() *slog.Logger {
	// Stderr only; stdout is for command output (and the MCP protocol
	// under serve).
	return logging.New(flagLogLevel, flagLogJSON)
}

// newCatalog loads the registry with any overlay from the home directory.
func newCatalog(home string) (*registry.Registry, error) {
	reg := registry.New()
	overlayPath := filepath.Join(home, "models.yaml")
	if err := reg.LoadOverlay(overlayPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return reg, nil
}

func newApp() (*app, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	logger := newLogger()

	reg, err := newCatalog(home)
	if err != nil {
		return nil, err
	}

	cfg := config.NewManager(home, logger)

	meta, err := metastore.New(home, logger)
	if err != nil {
		return nil, err
	}

	index, err := vecstore.NewSQLiteIndex(filepath.Join(home, "index.db"))
	if err != nil {
		return nil, err
	}

	validator := compat.New(meta, logger)

	return &app{
		home:      home,
		logger:    logger,
		registry:  reg,
		config:    cfg,
		meta:      meta,
		index:     index,
		validator: validator,
		orch:      migrate.New(meta, index, reg, validator, cfg, logger),
	}, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

// activeModel resolves the current selection, honoring the same
// --provider/--model override pattern several commands share.
func (a *app) requestedModel(provider, model string) (types.ModelDescriptor, error) {
	if provider == "" && model == "" {
		return a.config.Active(a.registry)
	}
	if provider == "" || model == "" {
		return types.ModelDescriptor{}, errors.New("--provider and --model must be supplied together")
	}
	return a.registry.Lookup(types.Provider(provider), model)
}
