package cmd

import (
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Print the embedding of a face as a JSON array",
	Long: `Detect the faces in the image and print the embedding of the first one
(or the one chosen with --face) as a JSON array of floats. The output can be
passed back with --embedding.

Examples:
  faceprints extract photo.jpg > face.json
  faceprints add alice --embedding face.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Int("face", 0, "Index of the face to extract")
	extractCmd.Flags().Bool("all", false, "Print every face with its bounding box")
}

func runExtract(cmd *cobra.Command, args []string) error {
	faceIndex, err := intFlagAtLeast(cmd, "face", 0)
	if err != nil {
		return err
	}
	all := mustGetBool(cmd, "all")

	cfg := loadConfig()
	a := &app{cfg: cfg}
	logger, err := newCommandLogger(cfg)
	if err != nil {
		return err
	}
	a.logger = logger
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	faces, err := detectFaces(ctx, a.provider(), args[0])
	if err != nil {
		return err
	}
	if all {
		return outputJSON(cmd.OutOrStdout(), faces)
	}

	face, err := pickFace(faces, faceIndex)
	if err != nil {
		return err
	}
	return outputJSON(cmd.OutOrStdout(), face.Embedding)
}
