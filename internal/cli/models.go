package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anhhai680/vecguard-mcp/pkg/types"
)

var modelsDimensions int

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the embedding model catalog",
	Long: `Print the catalog of known embedding models. Use --dimensions to list
only the models that could be switched to for an index of that width.

Examples:
  vecguard models
  vecguard models --dimensions 768
  vecguard models presets`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

var modelsPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the recommended deployment presets",
	Args:  cobra.NoArgs,
	RunE:  runModelsPresets,
}

func init() {
	modelsCmd.Flags().IntVar(&modelsDimensions, "dimensions", 0, "only list models with this dimensionality")
	modelsCmd.AddCommand(modelsPresetsCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	reg, err := newCatalog(home)
	if err != nil {
		return err
	}

	var models []types.ModelDescriptor
	if modelsDimensions > 0 {
		for d := range reg.ListCompatible(modelsDimensions) {
			models = append(models, d)
		}
		if len(models) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no catalogued model produces %d dimensions\n", modelsDimensions)
			return nil
		}
	} else {
		models = reg.All()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-26s %-28s %6s  %-8s %s\n",
		"PROVIDER", "MODEL", "DIMS", "COST", "PRIVACY")
	for _, d := range models {
		fmt.Fprintf(cmd.OutOrStdout(), "%-26s %-28s %6d  %-8s %s\n",
			d.Provider, d.Name, d.Dimensions, d.Cost, d.Privacy)
	}
	return nil
}

func runModelsPresets(cmd *cobra.Command, args []string) error {
	home, err := resolveHome()
	if err != nil {
		return err
	}
	reg, err := newCatalog(home)
	if err != nil {
		return err
	}

	for _, p := range reg.Presets() {
		marker := " "
		if p.Recommended {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", marker, p.Name, p.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", p.Description)
		fmt.Fprintf(cmd.OutOrStdout(), "    embedding: %s, generation: %s\n",
			p.Embedding.String(), p.GenerationModel)
	}
	return nil
}
