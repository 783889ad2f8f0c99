package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceprints/internal/faceindex"
	"github.com/kozaktomas/faceprints/internal/facematch"
	"github.com/kozaktomas/faceprints/internal/fingerprint"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [image]",
	Short: "Classify the faces in an image against the index",
	Long: `Classify every face in the image by ranking all labels by the cosine
similarity between the face embedding and the label centroid.

This is the default command: "faceprints photo.jpg" classifies photo.jpg.

Examples:
  faceprints classify photo.jpg
  faceprints photo.jpg --plaintext
  faceprints classify --embedding face.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolP("plaintext", "p", false, "Print only the closest label of the first face")
	classifyCmd.Flags().String("embedding", "", "Classify a raw embedding from a JSON file (- for stdin)")
}

// ClassifiedFace is the classification of one detected face
type ClassifiedFace struct {
	BoundingBox    *facematch.Region `json:"boundingBox,omitempty"`
	FaceConfidence *float64          `json:"faceConfidence,omitempty"`
	TopLabel       string            `json:"topLabel"`
	TopConfidence  float64           `json:"topConfidence"`
	Ranks          []facematch.Score `json:"ranks"`
}

// ClassifyOutput is the JSON output of the classify command
type ClassifyOutput struct {
	Operation string           `json:"operation"`
	Input     string           `json:"input"`
	Faces     []ClassifiedFace `json:"faces"`
}

func runClassify(cmd *cobra.Command, args []string) error {
	plaintext := mustGetBool(cmd, "plaintext")
	embeddingPath := mustGetString(cmd, "embedding")

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

	var out ClassifyOutput
	if embeddingPath != "" {
		embedding, err := readEmbeddingFile(embeddingPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		out, err = classifyEmbedding(ctx, a.index, embeddingPath, embedding)
		if err != nil {
			return err
		}
	} else {
		out, err = classifyImage(ctx, a.index, a.provider(), args[0])
		if err != nil {
			return err
		}
	}

	if plaintext {
		return printTopMatch(cmd.OutOrStdout(), out)
	}
	return outputJSON(cmd.OutOrStdout(), out)
}

func classifyEmbedding(ctx context.Context, idx *faceindex.Index, input string, embedding []float32) (ClassifyOutput, error) {
	scores, err := facematch.Classify(ctx, idx, embedding)
	if err != nil {
		return ClassifyOutput{}, err
	}
	return ClassifyOutput{
		Operation: "classify",
		Input:     input,
		Faces:     []ClassifiedFace{newClassifiedFace(scores)},
	}, nil
}

func classifyImage(ctx context.Context, idx *faceindex.Index, p fingerprint.Provider, path string) (ClassifyOutput, error) {
	faces, err := detectFaces(ctx, p, path)
	if err != nil {
		return ClassifyOutput{}, err
	}

	out := ClassifyOutput{Operation: "classify", Input: path, Faces: make([]ClassifiedFace, 0, len(faces))}
	for i, face := range faces {
		scores, err := facematch.Classify(ctx, idx, face.Embedding)
		if err != nil {
			return ClassifyOutput{}, fmt.Errorf("face %d: %w", i, err)
		}
		cf := newClassifiedFace(scores)
		cf.BoundingBox = &face.Region
		cf.FaceConfidence = &face.Confidence
		out.Faces = append(out.Faces, cf)
	}
	return out, nil
}

func newClassifiedFace(scores []facematch.Score) ClassifiedFace {
	return ClassifiedFace{
		TopLabel:      scores[0].Label,
		TopConfidence: scores[0].Score,
		Ranks:         scores,
	}
}

// printTopMatch prints "label (score)" for the first face.
func printTopMatch(w io.Writer, out ClassifyOutput) error {
	if len(out.Faces) == 0 {
		return fingerprint.ErrNoFace
	}
	_, err := fmt.Fprintf(w, "%s (%.6f)\n", out.Faces[0].TopLabel, out.Faces[0].TopConfidence)
	return err
}
