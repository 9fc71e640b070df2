package mcp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/anhhai680/vecguard-mcp/internal/compat"
	"github.com/anhhai680/vecguard-mcp/internal/config"
	"github.com/anhhai680/vecguard-mcp/internal/embedder"
	"github.com/anhhai680/vecguard-mcp/internal/guard"
	"github.com/anhhai680/vecguard-mcp/internal/metastore"
	"github.com/anhhai680/vecguard-mcp/internal/migrate"
	"github.com/anhhai680/vecguard-mcp/internal/registry"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "vecguard-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// OverlayFileName is the optional catalog overlay in the home directory
	OverlayFileName = "models.yaml"
	// IndexFileName is the SQLite vector index in the home directory
	IndexFileName = "index.db"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	home      string
	logger    *slog.Logger
	registry  *registry.Registry
	config    *config.Manager
	meta      *metastore.Store
	index     vecstore.Index
	validator *compat.Validator
	guard     *guard.Guard
	orch      *migrate.Orchestrator

	// embMu guards the lazily built embedder; switch_model invalidates it.
	embMu sync.Mutex
	emb   embedder.Embedder
}

// NewServer creates a new MCP server instance rooted at the given home
// directory. Empty home resolves through the usual config lookup.
func NewServer(home string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if home == "" {
		var err error
		home, err = config.Home()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	reg := registry.New()
	overlayPath := filepath.Join(home, OverlayFileName)
	if err := reg.LoadOverlay(overlayPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// No overlay file, builtin catalog only.
	} else {
		logger.Info("loaded model catalog overlay", "path", overlayPath)
	}

	cfg := config.NewManager(home, logger)

	meta, err := metastore.New(home, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
	}

	index, err := vecstore.NewSQLiteIndex(filepath.Join(home, IndexFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	validator := compat.New(meta, logger)

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		home:      home,
		logger:    logger,
		registry:  reg,
		config:    cfg,
		meta:      meta,
		index:     index,
		validator: validator,
		guard:     guard.New(validator, meta, index, logger),
		orch:      migrate.New(meta, index, reg, validator, cfg, logger),
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the server's storage resources.
func (s *Server) Close() error {
	s.embMu.Lock()
	if s.emb != nil {
		_ = s.emb.Close()
		s.emb = nil
	}
	s.embMu.Unlock()
	return s.index.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(checkCompatibilityTool(), s.handleCheckCompatibility)
	s.mcp.AddTool(inspectCollectionTool(), s.handleInspectCollection)
	s.mcp.AddTool(listModelsTool(), s.handleListModels)
	s.mcp.AddTool(proposeMigrationTool(), s.handleProposeMigration)
	s.mcp.AddTool(executeMigrationTool(), s.handleExecuteMigration)
	s.mcp.AddTool(switchModelTool(), s.handleSwitchModel)
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}

// activeModel resolves the current model selection to its descriptor.
func (s *Server) activeModel() (types.ModelDescriptor, error) {
	return s.config.Active(s.registry)
}

// activeEmbedder returns an embedder for the active model, rebuilding it when
// the selection changed since the last call.
func (s *Server) activeEmbedder() (embedder.Embedder, error) {
	d, err := s.activeModel()
	if err != nil {
		return nil, err
	}

	s.embMu.Lock()
	defer s.embMu.Unlock()

	if s.emb != nil && s.emb.Descriptor().Equal(d) {
		return s.emb, nil
	}
	if s.emb != nil {
		_ = s.emb.Close()
		s.emb = nil
	}

	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	emb, err := embedder.ForDescriptor(d, cfg.OllamaHost)
	if err != nil {
		return nil, err
	}
	s.emb = emb
	return emb, nil
}

// dropEmbedder discards the cached embedder after a model switch.
func (s *Server) dropEmbedder() {
	s.embMu.Lock()
	defer s.embMu.Unlock()
	if s.emb != nil {
		_ = s.emb.Close()
		s.emb = nil
	}
}
