package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [label...]",
	Short: "Recompute label centroids from the samples on disk",
	Long: `Recompute the centroid of each given label (or of every label) from the
sample files. Only needed after sample files were added or deleted by hand.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

// RebuildOutput is the JSON output of the rebuild command
type RebuildOutput struct {
	Operation string   `json:"operation"`
	Rebuilt   []string `json:"rebuilt"`
	Empty     []string `json:"empty"`
}

func runRebuild(cmd *cobra.Command, args []string) error {
	noProgress := mustGetBool(cmd, "no-progress")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	labels := args
	if len(labels) == 0 {
		labels, err = a.index.ListLabels(ctx)
		if err != nil {
			return err
		}
	}

	bar := newProgressBar(len(labels), "Rebuilding centroids", "labels", !noProgress && len(labels) > 1)
	out := RebuildOutput{Operation: "rebuild", Rebuilt: []string{}, Empty: []string{}}
	for _, label := range labels {
		ok, err := a.index.Rebuild(ctx, label)
		if err != nil {
			return fmt.Errorf("label %s: %w", label, err)
		}
		if ok {
			out.Rebuilt = append(out.Rebuilt, label)
		} else {
			out.Empty = append(out.Empty, label)
		}
		a.logger.Debug("centroid rebuilt", zap.String("label", label), zap.Bool("populated", ok))
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return outputJSON(cmd.OutOrStdout(), out)
}
