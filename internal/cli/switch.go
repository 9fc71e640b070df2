package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

var switchForce bool

var switchCmd = &cobra.Command{
	Use:   "switch <provider> <model>",
	Short: "Change the active embedding model",
	Long: `Switch the active embedding model selection. The switch is refused when
any recorded collection has a different dimensionality, because retrievals
against it would be blocked afterwards. Pass --force to switch anyway; the
blocked collections stay unreadable until cleared.

Examples:
  vecguard switch local-server all-minilm
  vecguard switch hosted-api text-embedding-ada-002 --force`,
	Args: cobra.ExactArgs(2),
	RunE: runSwitch,
}

func init() {
	switchCmd.Flags().BoolVar(&switchForce, "force", false, "switch even when collections would be blocked")
	rootCmd.AddCommand(switchCmd)
}

func runSwitch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	target, err := a.registry.Lookup(types.Provider(args[0]), args[1])
	if err != nil {
		return err
	}

	ids, err := a.meta.List()
	if err != nil {
		return err
	}

	var blocked []*types.IndexMetadata
	for _, id := range ids {
		verdict, meta, err := a.validator.Check(id, target)
		if err != nil {
			return err
		}
		if verdict.Blocks() {
			blocked = append(blocked, meta)
		}
	}

	if len(blocked) > 0 && !switchForce {
		fmt.Fprintf(cmd.OutOrStdout(), "switch to %s refused, %d collection(s) would be blocked:\n",
			target.String(), len(blocked))
		for _, meta := range blocked {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s stored %s\n", meta.CollectionID, meta.ProducedBy.String())
		}
		fmt.Fprintln(cmd.OutOrStdout(), "clear them first (vecguard clear) or pass --force")
		return &types.RetrievalBlockedError{
			CollectionID:        blocked[0].CollectionID,
			StoredDimensions:    blocked[0].ProducedBy.Dimensions,
			RequestedDimensions: target.Dimensions,
		}
	}

	if err := a.config.SetActive(target); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "active model is now %s\n", target.String())
	for _, meta := range blocked {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %s remains blocked until cleared (stored %s)\n",
			meta.CollectionID, meta.ProducedBy.String())
	}
	return nil
}
