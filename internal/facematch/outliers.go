package facematch

import (
	"context"
	"fmt"
	"sort"

	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// Outlier is a sample together with its similarity to its own label centroid
type Outlier struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Outliers returns the samples of label least similar to the label
// centroid, lowest score first. limit <= 0 returns every sample.
// A sample with zero magnitude scores -1 so it sorts first.
func Outliers(ctx context.Context, src SampleSource, label string, limit int) ([]Outlier, error) {
	centroid, ok, err := src.CentroidFor(ctx, label)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Outlier{}, nil
	}

	samples, err := src.Samples(ctx, label)
	if err != nil {
		return nil, err
	}

	outliers := make([]Outlier, 0, len(samples))
	for _, s := range samples {
		if vecmath.Norm(s.Embedding) == 0 || vecmath.Norm(centroid) == 0 {
			outliers = append(outliers, Outlier{ID: s.ID, Score: -1})
			continue
		}
		sim, err := vecmath.CosineSimilarity(s.Embedding, centroid)
		if err != nil {
			return nil, fmt.Errorf("sample %s/%s: %w", label, s.ID, err)
		}
		outliers = append(outliers, Outlier{ID: s.ID, Score: sim})
	}

	sort.Slice(outliers, func(i, j int) bool {
		if outliers[i].Score != outliers[j].Score {
			return outliers[i].Score < outliers[j].Score
		}
		return outliers[i].ID < outliers[j].ID
	})
	if limit > 0 && len(outliers) > limit {
		outliers = outliers[:limit]
	}
	return outliers, nil
}
