package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/facematch"
)

var outliersCmd = &cobra.Command{
	Use:   "outliers <label>",
	Short: "List the samples least similar to their label centroid",
	Long: `Rank the samples of a label by cosine similarity to the label centroid,
least similar first. Samples at the top are the most likely to be mislabeled.

Examples:
  faceprints outliers alice
  faceprints outliers alice --limit 0   # all samples`,
	Args: cobra.ExactArgs(1),
	RunE: runOutliers,
}

func init() {
	rootCmd.AddCommand(outliersCmd)

	outliersCmd.Flags().Int("limit", constants.DefaultOutlierLimit, "Maximum number of samples to return (0 = all)")
}

// OutliersOutput is the JSON output of the outliers command
type OutliersOutput struct {
	Operation string              `json:"operation"`
	Label     string              `json:"label"`
	Outliers  []facematch.Outlier `json:"outliers"`
}

func runOutliers(cmd *cobra.Command, args []string) error {
	limit, err := intFlagAtLeast(cmd, "limit", 0)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	outliers, err := facematch.Outliers(ctx, a.index, args[0], limit)
	if err != nil {
		return a.labelHint(ctx, args[0], err)
	}
	return outputJSON(cmd.OutOrStdout(), OutliersOutput{Operation: "outliers", Label: args[0], Outliers: outliers})
}
