package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

var (
	clearAll bool
	clearYes bool
)

var clearCmd = &cobra.Command{
	Use:   "clear [collection]",
	Short: "Delete a collection's vectors and metadata so it can be regenerated",
	Long: `Clear a collection: back up its metadata, drop the stored vectors, and
remove the metadata record. The next indexing run repopulates the collection
under the then-active model. Clearing a collection that does not exist is a
success; there is simply nothing to clear.

Examples:
  vecguard clear repo-a
  vecguard clear --all --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "clear every collection")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if clearAll == (len(args) == 1) {
		return errors.New("specify either a collection or --all")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !clearYes {
		target := "ALL collections"
		if !clearAll {
			target = fmt.Sprintf("collection %q", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "This deletes the stored vectors and metadata of %s. Continue? [y/N] ", target)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted")
			return nil
		}
	}

	if clearAll {
		cleared, err := a.orch.ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(cleared) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to clear")
			return nil
		}
		for _, id := range cleared {
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", id)
		}
		return nil
	}

	requested, err := a.config.Active(a.registry)
	if err != nil {
		return err
	}

	plan := &types.MigrationPlan{
		Action:              types.ActionClearAndRegenerate,
		Requested:           requested,
		AffectedCollections: []string{args[0]},
		CreatedAt:           time.Now().UTC(),
	}
	if err := a.orch.Execute(cmd.Context(), plan); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s (backup %s)\n", args[0], plan.BackupRef)
	return nil
}
