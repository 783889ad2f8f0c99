// Package facematch classifies face embeddings against the label index:
// nearest-centroid ranking, nearest-sample search and outlier detection.
package facematch

import (
	"context"
	"errors"

	"github.com/kozaktomas/faceprints/internal/database"
)

// ErrEmptyIndex is returned when no label has a centroid to compare against
var ErrEmptyIndex = errors.New("index has no populated labels")

// Score is the similarity of a query to one label
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SampleMatch is the similarity of a query to one stored sample
type SampleMatch struct {
	Label string  `json:"label"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// CentroidSource provides label centroids. *faceindex.Index implements it.
type CentroidSource interface {
	ListLabels(ctx context.Context) ([]string, error)
	CentroidFor(ctx context.Context, label string) ([]float32, bool, error)
	Dimension() (int, bool, error)
}

// SampleSource provides label centroids and the samples behind them.
type SampleSource interface {
	CentroidSource
	Samples(ctx context.Context, label string) ([]database.Sample, error)
}
