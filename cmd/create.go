package cmd

import (
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <label>",
	Short: "Create an empty label",
	Long: `Create a label without samples. Empty labels are listed but never take
part in classification. Creating an existing label changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

// CreateOutput is the JSON output of the create command
type CreateOutput struct {
	Operation string `json:"operation"`
	Label     string `json:"label"`
	Created   bool   `json:"created"`
}

func runCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	created, err := a.index.CreateLabel(ctx, args[0])
	if err != nil {
		return err
	}
	return outputJSON(cmd.OutOrStdout(), CreateOutput{Operation: "create", Label: args[0], Created: created})
}
