package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/fingerprint"
)

var addCmd = &cobra.Command{
	Use:   "add <label> [image...]",
	Short: "Add face samples to a label",
	Long: `Detect the face in each image and add its embedding as a sample of the label.
The label is created if it does not exist and its centroid is recomputed.

Each image must contain exactly one face; use --face to pick one face by its
index when an image contains several. Near-identical images (re-encoded or
resized copies) are skipped with --skip-duplicates.

Examples:
  # Add two photos of Alice
  faceprints add alice alice1.jpg alice2.jpg

  # Use the second face of a group photo
  faceprints add bob group.jpg --face 1

  # Add a raw embedding (JSON array) from a file or stdin
  faceprints add carol --embedding carol.json
  extract-tool | faceprints add carol --embedding -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().String("embedding", "", "Add a raw embedding from a JSON file (- for stdin) instead of images")
	addCmd.Flags().Int("face", -1, "Index of the face to use when an image contains several faces")
	addCmd.Flags().Bool("skip-duplicates", false, "Skip images that are near-identical to an earlier image in this run")
	addCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

// AddedSample is one sample stored by the add command
type AddedSample struct {
	Input   string `json:"input"`
	ID      string `json:"id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AddOutput is the JSON output of the add command
type AddOutput struct {
	Operation string        `json:"operation"`
	Label     string        `json:"label"`
	Path      string        `json:"path"`
	Count     int           `json:"count"`
	Samples   []AddedSample `json:"samples"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	embeddingPath := mustGetString(cmd, "embedding")
	faceIndex, err := intFlagAtLeast(cmd, "face", -1)
	if err != nil {
		return err
	}
	skipDuplicates := mustGetBool(cmd, "skip-duplicates")
	noProgress := mustGetBool(cmd, "no-progress")

	label, images := args[0], args[1:]
	if embeddingPath == "" && len(images) == 0 {
		return errors.New("at least one image or --embedding is required")
	}
	if embeddingPath != "" && len(images) > 0 {
		return errors.New("--embedding cannot be combined with images")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var samples []AddedSample
	if embeddingPath != "" {
		embedding, err := readEmbeddingFile(embeddingPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		id, err := a.index.AddSample(ctx, label, embedding)
		if err != nil {
			return err
		}
		samples = append(samples, AddedSample{Input: embeddingPath, ID: id})
	} else {
		adder := &imageAdder{
			app:            a,
			provider:       a.provider(),
			label:          label,
			faceIndex:      faceIndex,
			skipDuplicates: skipDuplicates,
		}
		samples = adder.addAll(ctx, images, !noProgress && len(images) > 1)
	}

	info, err := a.index.Describe(ctx, label)
	if err != nil {
		return err
	}

	out := AddOutput{
		Operation: "add",
		Label:     info.Name,
		Path:      a.index.Root(),
		Count:     info.Samples,
		Samples:   samples,
	}
	if err := outputJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	var failed int
	for _, s := range samples {
		if s.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be added", failed, len(samples))
	}
	return nil
}

// imageAdder adds the face of each image to one label.
type imageAdder struct {
	app            *app
	provider       fingerprint.Provider
	label          string
	faceIndex      int
	skipDuplicates bool
	seen           []uint64
}

func (ad *imageAdder) addAll(ctx context.Context, images []string, progress bool) []AddedSample {
	bar := newProgressBar(len(images), "Adding "+ad.label, "images", progress)

	samples := make([]AddedSample, 0, len(images))
	for _, path := range images {
		if ctx.Err() != nil {
			samples = append(samples, AddedSample{Input: path, Error: ctx.Err().Error()})
			continue
		}
		id, err := ad.add(ctx, path)
		sample := AddedSample{Input: path, ID: id}
		switch {
		case errors.Is(err, errDuplicateImage):
			sample.Skipped = true
		case err != nil:
			sample.Error = err.Error()
			ad.app.logger.Warn("failed to add image", zap.String("image", path), zap.Error(err))
		}
		samples = append(samples, sample)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return samples
}

// errDuplicateImage marks an image skipped by --skip-duplicates
var errDuplicateImage = errors.New("duplicate of an earlier image")

func (ad *imageAdder) add(ctx context.Context, path string) (string, error) {
	if ad.skipDuplicates {
		data, err := readImage(path)
		if err != nil {
			return "", err
		}
		hash, err := fingerprint.DHash(data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		for _, h := range ad.seen {
			if fingerprint.SameImage(h, hash) {
				return "", errDuplicateImage
			}
		}
		ad.seen = append(ad.seen, hash)
	}

	faces, err := detectFaces(ctx, ad.provider, path)
	if err != nil {
		return "", err
	}
	face, err := pickFace(faces, ad.faceIndex)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return ad.app.index.AddSample(ctx, ad.label, face.Embedding)
}

// pickFace selects the face to add: the only face when index is negative,
// otherwise the face at index.
func pickFace(faces []fingerprint.Face, index int) (fingerprint.Face, error) {
	if index < 0 {
		if len(faces) != 1 {
			return fingerprint.Face{}, fmt.Errorf("found %d faces, use --face to pick one", len(faces))
		}
		return faces[0], nil
	}
	if index >= len(faces) {
		return fingerprint.Face{}, fmt.Errorf("face %d requested but only %d found", index, len(faces))
	}
	return faces[index], nil
}
