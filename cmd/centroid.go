package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var centroidCmd = &cobra.Command{
	Use:   "centroid <label>",
	Short: "Print the centroid of a label",
	Args:  cobra.ExactArgs(1),
	RunE:  runCentroid,
}

func init() {
	rootCmd.AddCommand(centroidCmd)
}

func runCentroid(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	centroid, ok, err := a.index.CentroidFor(ctx, args[0])
	if err != nil {
		return a.labelHint(ctx, args[0], err)
	}
	if !ok {
		return fmt.Errorf("label %s has no samples", args[0])
	}
	return outputJSON(cmd.OutOrStdout(), centroid)
}
