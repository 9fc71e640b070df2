package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/internal/mcp"
	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Start the vecguard MCP server. The server speaks the Model Context
Protocol on stdin/stdout; all logging goes to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	logger.Info("starting MCP server",
		"build_mode", vecstore.BuildMode,
		"driver", vecstore.DriverName,
		"vector_extension", vecstore.VectorExtensionAvailable)

	home, err := resolveHome()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(home, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		return nil
	case err := <-errChan:
		return err
	}
}
