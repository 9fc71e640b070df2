package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

var (
	checkProvider string
	checkModel    string
)

var checkCmd = &cobra.Command{
	Use:   "check [collection]",
	Short: "Check model compatibility for one or all collections",
	Long: `Compare an embedding model against the recorded metadata of stored
collections. With no argument every recorded collection is checked. The
model defaults to the active selection; override with --provider/--model.

The command exits non-zero when any checked collection would block, so it
can gate scripted model changes.

Examples:
  vecguard check repo-a
  vecguard check --provider hosted-api --model text-embedding-ada-002`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkProvider, "provider", "", "provider of the model to check")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "name of the model to check")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	requested, err := a.requestedModel(checkProvider, checkModel)
	if err != nil {
		return err
	}

	var collections []string
	if len(args) == 1 {
		collections = []string{args[0]}
	} else {
		collections, err = a.meta.List()
		if err != nil {
			return err
		}
		if len(collections) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no collections recorded")
			return nil
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checking against %s\n\n", requested.String())

	var firstBlocked *types.RetrievalBlockedError
	for _, id := range collections {
		verdict, meta, err := a.validator.Check(id, requested)
		if err != nil {
			return err
		}

		switch verdict {
		case types.VerdictCompatible:
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s (stored: %s, %d vectors)\n",
				id, verdict, meta.ProducedBy.String(), meta.VectorCount)
		case types.VerdictDimensionMismatch:
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s (stored: %s, requested %d dims)\n",
				id, verdict, meta.ProducedBy.String(), requested.Dimensions)
			if firstBlocked == nil {
				firstBlocked = &types.RetrievalBlockedError{
					CollectionID:        id,
					StoredDimensions:    meta.ProducedBy.Dimensions,
					RequestedDimensions: requested.Dimensions,
				}
			}
		case types.VerdictNoMetadata:
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s (first write will record the model)\n", id, verdict)
		}
	}

	if firstBlocked != nil {
		return firstBlocked
	}
	return nil
}
