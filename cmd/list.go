package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceprints/internal/faceindex"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the labels in the index",
	Long: `List every label in the index, including labels without samples.

Examples:
  faceprints list
  faceprints list --details
  faceprints list --plaintext`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("details", false, "Include sample counts and label state")
	listCmd.Flags().BoolP("plaintext", "p", false, "Print a table instead of JSON")
}

// ListOutput is the JSON output of the list command
type ListOutput struct {
	Operation string                `json:"operation"`
	Labels    []string              `json:"labels"`
	Details   []faceindex.LabelInfo `json:"details,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	details := mustGetBool(cmd, "details")
	plaintext := mustGetBool(cmd, "plaintext")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	out := ListOutput{Operation: "list", Labels: []string{}}
	if details || plaintext {
		infos, err := a.index.ListLabelInfo(ctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			out.Labels = append(out.Labels, info.Name)
		}
		if details {
			out.Details = infos
		}
		if plaintext {
			return printLabelTable(cmd, infos, details)
		}
	} else {
		labels, err := a.index.ListLabels(ctx)
		if err != nil {
			return err
		}
		out.Labels = append(out.Labels, labels...)
	}

	return outputJSON(cmd.OutOrStdout(), out)
}

func printLabelTable(cmd *cobra.Command, infos []faceindex.LabelInfo, details bool) error {
	if len(infos) == 0 {
		fmt.Fprintln(os.Stderr, "No labels in the index")
		return nil
	}
	if !details {
		for _, info := range infos {
			fmt.Fprintln(cmd.OutOrStdout(), info.Name)
		}
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSAMPLES\tSTATE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Samples, info.State)
	}
	return tw.Flush()
}
