package cmd

import (
	"github.com/spf13/cobra"
)

var samplesCmd = &cobra.Command{
	Use:   "samples <label>",
	Short: "List the sample ids of a label in insertion order",
	Args:  cobra.ExactArgs(1),
	RunE:  runSamples,
}

func init() {
	rootCmd.AddCommand(samplesCmd)
}

// SamplesOutput is the JSON output of the samples command
type SamplesOutput struct {
	Operation string   `json:"operation"`
	Label     string   `json:"label"`
	Samples   []string `json:"samples"`
}

func runSamples(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	ids, err := a.index.SampleIDs(ctx, args[0])
	if err != nil {
		return a.labelHint(ctx, args[0], err)
	}
	return outputJSON(cmd.OutOrStdout(), SamplesOutput{Operation: "samples", Label: args[0], Samples: ids})
}
