package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/facematch"
)

var similarCmd = &cobra.Command{
	Use:   "similar [image]",
	Short: "Find the stored samples closest to a face",
	Long: `Search every sample in the index (not just the centroids) for the ones
most similar to the face in the image, using an HNSW graph and exact cosine
rescoring. Useful to spot mislabeled samples or duplicate entries.

Examples:
  faceprints similar photo.jpg --limit 5
  faceprints similar --embedding face.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().String("embedding", "", "Search with a raw embedding from a JSON file (- for stdin)")
	similarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Maximum number of samples to return")
	similarCmd.Flags().Int("face", -1, "Index of the face to use when the image contains several faces")
}

// SimilarOutput is the JSON output of the similar command
type SimilarOutput struct {
	Operation string                  `json:"operation"`
	Input     string                  `json:"input"`
	Matches   []facematch.SampleMatch `json:"matches"`
}

func runSimilar(cmd *cobra.Command, args []string) error {
	embeddingPath := mustGetString(cmd, "embedding")
	limit, err := intFlagAtLeast(cmd, "limit", 1)
	if err != nil {
		return err
	}
	faceIndex, err := intFlagAtLeast(cmd, "face", -1)
	if err != nil {
		return err
	}

	if (len(args) == 0) == (embeddingPath == "") {
		return errors.New("exactly one of an image or --embedding is required")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var query []float32
	input := embeddingPath
	if embeddingPath != "" {
		query, err = readEmbeddingFile(embeddingPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
	} else {
		input = args[0]
		faces, err := detectFaces(ctx, a.provider(), input)
		if err != nil {
			return err
		}
		face, err := pickFace(faces, faceIndex)
		if err != nil {
			return err
		}
		query = face.Embedding
	}

	matches, err := facematch.NearestSamples(ctx, a.index, query, limit)
	if err != nil {
		return err
	}
	return outputJSON(cmd.OutOrStdout(), SimilarOutput{Operation: "similar", Input: input, Matches: matches})
}
