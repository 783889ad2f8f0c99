package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove <label> [sample-id]",
	Aliases: []string{"rm"},
	Short:   "Remove a sample or a whole label",
	Long: `Remove one sample from a label and recompute the label centroid, or
remove the label with all its samples using --label.

Sample ids are listed by "faceprints list --details" and "faceprints samples".

Examples:
  faceprints remove alice 01890f3c-8a4e-7c2b-9d1e-0a1b2c3d4e5f
  faceprints remove alice --label`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)

	removeCmd.Flags().Bool("label", false, "Remove the whole label")
}

// RemoveOutput is the JSON output of the remove command
type RemoveOutput struct {
	Operation string `json:"operation"`
	Label     string `json:"label"`
	ID        string `json:"id,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

func runRemove(cmd *cobra.Command, args []string) error {
	wholeLabel := mustGetBool(cmd, "label")

	label := args[0]
	switch {
	case wholeLabel && len(args) == 2:
		return errors.New("--label removes the whole label, do not pass a sample id")
	case !wholeLabel && len(args) == 1:
		return errors.New("a sample id is required (or --label to remove the whole label)")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if wholeLabel {
		if err := a.index.RemoveLabel(ctx, label); err != nil {
			return a.labelHint(ctx, label, err)
		}
		return outputJSON(cmd.OutOrStdout(), RemoveOutput{Operation: "remove", Label: label})
	}

	id := args[1]
	if err := a.index.RemoveSample(ctx, label, id); err != nil {
		return a.labelHint(ctx, label, err)
	}
	info, err := a.index.Describe(ctx, label)
	if err != nil {
		return err
	}
	return outputJSON(cmd.OutOrStdout(), RemoveOutput{
		Operation: "remove",
		Label:     info.Name,
		ID:        id,
		Remaining: &info.Samples,
	})
}
