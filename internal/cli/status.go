package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/internal/vecstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active model and the state of every collection",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	active, err := a.config.Active(a.registry)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "home:         %s\n", a.home)
	fmt.Fprintf(cmd.OutOrStdout(), "active model: %s\n", active.String())
	fmt.Fprintf(cmd.OutOrStdout(), "build:        %s (%s, vector extension %v)\n\n",
		vecstore.BuildMode, vecstore.DriverName, vecstore.VectorExtensionAvailable)

	ids, err := a.meta.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no collections recorded")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-38s %8s  %s\n", "COLLECTION", "PRODUCED BY", "VECTORS", "VERDICT")
	for _, id := range ids {
		verdict, meta, err := a.validator.Check(id, active)
		if err != nil {
			return err
		}
		produced := "-"
		var count int64
		if meta != nil {
			produced = meta.ProducedBy.String()
			count = meta.VectorCount
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-38s %8d  %s\n", id, produced, count, verdict)
	}
	return nil
}
