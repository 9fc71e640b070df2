// Package cli implements the vecguard administrative command surface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

// Exit codes. Scripts branch on these, so each typed failure gets its own.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitUnknownModel       = 3
	ExitCollectionNotFound = 4
	ExitMigrationFailed    = 5
	ExitRetrievalBlocked   = 6
)

var (
	flagHome     string
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:          "vecguard",
	Short:        "Guard a vector index against embedding model mismatches",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `vecguard tracks which embedding model produced the vectors of every stored
collection and refuses retrievals, insertions, and model switches that would
mix dimensionalities. Run "vecguard serve" to expose the guard over MCP, or
use the subcommands directly for inspection and migration.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "vecguard home directory (default $VECGUARD_HOME or ~/.vecguard)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
}

// SetVersion wires build metadata into the --version output.
func SetVersion(version, buildTime string) {
	rootCmd.Version = fmt.Sprintf("%s\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\nVector Extension: %v",
		version, buildTime, vecstore.BuildMode, vecstore.DriverName, vecstore.VectorExtensionAvailable)
}

// Execute runs the command tree and exits with the code mapped from the
// resulting error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps typed domain errors to their exit codes.
func exitCode(err error) int {
	var unknown *types.UnknownModelError
	var notFound *types.CollectionNotFoundError
	var failed *types.MigrationFailedError
	var blocked *types.RetrievalBlockedError

	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &unknown):
		return ExitUnknownModel
	case errors.As(err, &notFound):
		return ExitCollectionNotFound
	case errors.As(err, &failed):
		return ExitMigrationFailed
	case errors.As(err, &blocked):
		return ExitRetrievalBlocked
	default:
		return ExitFailure
	}
}
