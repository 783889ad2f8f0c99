package database

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// Recompute derives the centroid of label from samples and persists it.
// When samples is empty the persisted centroid is removed and ok is false;
// a zero vector is never written to mean "no centroid".
// The caller must hold the label lock.
func (s *Store) Recompute(label string, samples iter.Seq2[Sample, error]) (centroid []float32, ok bool, err error) {
	name, dir, err := s.requireLabel(label)
	if err != nil {
		return nil, false, err
	}

	var acc *vecmath.Accumulator
	for sample, err := range samples {
		if err != nil {
			return nil, false, err
		}
		if acc == nil {
			acc = vecmath.NewAccumulator(len(sample.Embedding))
		}
		if err := acc.Add(sample.Embedding); err != nil {
			return nil, false, fmt.Errorf("sample %s/%s: %w", name, sample.ID, err)
		}
	}

	path := centroidPath(dir)
	if acc == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, false, storageErr("clear centroid", path, err)
		}
		s.logger.Debug("centroid cleared", zap.String("label", name))
		return nil, false, nil
	}

	centroid, err = acc.Mean()
	if err != nil {
		return nil, false, err
	}
	if err := writeEmbedding(path, centroid); err != nil {
		return nil, false, storageErr("write centroid", path, err)
	}

	s.logger.Debug("centroid recomputed", zap.String("label", name), zap.Int("samples", acc.Count()))
	return centroid, true, nil
}

// LoadCentroid returns the last computed centroid of label. ok is false when
// the label has no centroid.
func (s *Store) LoadCentroid(label string) ([]float32, bool, error) {
	_, dir, err := s.requireLabel(label)
	if err != nil {
		return nil, false, err
	}

	path := centroidPath(dir)
	centroid, err := readEmbedding(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("read centroid", path, err)
	}
	return centroid, true, nil
}

func centroidPath(dir string) string {
	return filepath.Join(dir, CentroidName+SampleExt)
}
