package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <collection>",
	Short: "Show the recorded embedding metadata for a collection",
	Long: `Print the metadata record of a collection as JSON: the model that
produced its vectors, the vector count, and validation timestamps.

Example:
  vecguard inspect repo-a`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	collectionID := args[0]
	meta, err := a.meta.Get(collectionID)
	if errors.Is(err, types.ErrNotFound) {
		return &types.CollectionNotFoundError{CollectionID: collectionID}
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
