package facematch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kozaktomas/faceprints/internal/database"
	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// Classify ranks every populated label by cosine similarity between query
// and the label centroid. The result is ordered by descending score, ties
// broken by label name. Labels without samples are skipped.
func Classify(ctx context.Context, src CentroidSource, query []float32) ([]Score, error) {
	if err := validateQuery(src, query); err != nil {
		return nil, err
	}

	labels, err := src.ListLabels(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]Score, 0, len(labels))
	for _, label := range labels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		centroid, ok, err := src.CentroidFor(ctx, label)
		if errors.Is(err, database.ErrLabelNotFound) {
			continue // removed since listing
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		sim, err := vecmath.CosineSimilarity(query, centroid)
		if err != nil {
			return nil, fmt.Errorf("label %s: %w", label, err)
		}
		scores = append(scores, Score{Label: label, Score: sim})
	}

	if len(scores) == 0 {
		return nil, ErrEmptyIndex
	}

	SortScores(scores)
	return scores, nil
}

// TopMatch returns the best scoring label for query.
func TopMatch(ctx context.Context, src CentroidSource, query []float32) (Score, error) {
	scores, err := Classify(ctx, src, query)
	if err != nil {
		return Score{}, err
	}
	return scores[0], nil
}

// ClassifyAll classifies several queries (e.g. every face detected in one
// image) independently of each other.
func ClassifyAll(ctx context.Context, src CentroidSource, queries [][]float32) ([][]Score, error) {
	results := make([][]Score, len(queries))
	for i, q := range queries {
		scores, err := Classify(ctx, src, q)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		results[i] = scores
	}
	return results, nil
}

// SortScores orders scores by descending score, then ascending label.
func SortScores(scores []Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
}

// validateQuery checks the query length against the index dimension (when
// known) and rejects zero vectors.
func validateQuery(src CentroidSource, query []float32) error {
	dim, ok, err := src.Dimension()
	if err != nil {
		return err
	}
	if ok {
		if err := vecmath.ValidateDimension(query, dim); err != nil {
			return err
		}
	}
	if len(query) == 0 || vecmath.Norm(query) == 0 {
		return fmt.Errorf("%w: query has zero magnitude", vecmath.ErrDegenerateVector)
	}
	return vecmath.ValidateFinite(query)
}
