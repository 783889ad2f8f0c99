package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/config"
	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/database"
	"github.com/kozaktomas/faceprints/internal/faceindex"
	"github.com/kozaktomas/faceprints/internal/facematch"
	"github.com/kozaktomas/faceprints/internal/fingerprint"
	"github.com/kozaktomas/faceprints/internal/logging"
)

// app bundles what every index command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	index  *faceindex.Index
}

// loadConfig reads the environment and applies the persistent flags on top.
func loadConfig() *config.Config {
	cfg := config.Load()
	if indexDir != "" {
		cfg.Index.Dir = indexDir
	}
	if debugMode {
		cfg.Log.Debug = true
	}
	return cfg
}

func newCommandLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.Log.Debug, cfg.Log.Level)
}

// openApp loads the configuration, builds the logger and opens the index.
func openApp() (*app, error) {
	cfg := loadConfig()

	logger, err := newCommandLogger(cfg)
	if err != nil {
		return nil, err
	}

	idx, err := faceindex.Open(cfg.Index.Dir,
		faceindex.WithLogger(logger),
		faceindex.WithDimension(cfg.Index.Dim),
	)
	if err != nil {
		return nil, err
	}
	logger.Debug("index opened", zap.String("dir", idx.Root()))

	return &app{cfg: cfg, logger: logger, index: idx}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// labelHint adds similarly named labels to a label-not-found error.
func (a *app) labelHint(ctx context.Context, label string, err error) error {
	if !errors.Is(err, database.ErrLabelNotFound) {
		return err
	}
	labels, lerr := a.index.ListLabels(ctx)
	if lerr != nil {
		return err
	}
	if suggestions := facematch.SuggestLabels(label, labels); len(suggestions) > 0 {
		return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(suggestions, ", "))
	}
	return err
}

// provider returns the embedding server client.
func (a *app) provider() *fingerprint.HTTPProvider {
	return fingerprint.NewHTTPProvider(a.cfg.Embedding.URL, fingerprint.WithLogger(a.logger))
}

// commandContext returns a context cancelled on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// outputJSON writes data as indented JSON.
func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// readEmbeddingFile reads a JSON array of numbers from path ("-" for stdin).
func readEmbeddingFile(path string, stdin io.Reader) ([]float32, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, fmt.Errorf("embedding must be a JSON array of numbers: %w", err)
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding is empty")
	}
	return embedding, nil
}

// readImage reads an image file, refusing files above the size limit.
func readImage(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > constants.MaxImageBytes {
		return nil, fmt.Errorf("%s: %w", path, fingerprint.ErrImageTooLarge)
	}
	return os.ReadFile(path)
}

// detectFaces reads an image and returns its faces, failing when there are none.
func detectFaces(ctx context.Context, p fingerprint.Provider, path string) ([]fingerprint.Face, error) {
	data, err := readImage(path)
	if err != nil {
		return nil, err
	}
	faces, err := p.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%s: %w", path, fingerprint.ErrNoFace)
	}
	return faces, nil
}

// newProgressBar returns a progress bar on stderr, or nil when disabled.
func newProgressBar(count int, description, unit string, enabled bool) *progressbar.ProgressBar {
	if !enabled {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
}
