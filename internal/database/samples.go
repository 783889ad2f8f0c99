package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// NewSampleID returns a fresh sample id. Ids are UUIDv7, so sorting them by
// name yields insertion order.
func NewSampleID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate sample id: %w", err)
	}
	return id.String(), nil
}

// Put persists a new sample. The label directory is created when missing.
// The caller must hold the label lock.
func (s *Store) Put(label, id string, embedding []float32) error {
	name, dir, err := s.resolve(label)
	if err != nil {
		return err
	}
	if err := ValidateSampleID(id); err != nil {
		return err
	}
	if err := vecmath.ValidateFinite(embedding); err != nil {
		return err
	}

	path := samplePath(dir, id)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateSample, name, id)
	} else if !errors.Is(err, os.ErrNotExist) {
		return storageErr("put sample", path, err)
	}

	write := func() error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return storageErr("put sample", dir, err)
		}
		if err := writeEmbedding(path, embedding); err != nil {
			return storageErr("put sample", path, err)
		}
		return nil
	}
	undo := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove sample after metadata error", zap.String("path", path), zap.Error(err))
		}
	}
	if err := s.commitWithDimension(embedding, write, undo); err != nil {
		return err
	}

	s.logger.Debug("sample stored", zap.String("label", name), zap.String("id", id))
	return nil
}

// Get reads a single sample.
func (s *Store) Get(label, id string) (Sample, error) {
	name, dir, err := s.requireLabel(label)
	if err != nil {
		return Sample{}, err
	}
	if err := ValidateSampleID(id); err != nil {
		return Sample{}, err
	}

	path := samplePath(dir, id)
	embedding, err := readEmbedding(path)
	if errors.Is(err, os.ErrNotExist) {
		return Sample{}, fmt.Errorf("%w: %s/%s", ErrSampleNotFound, name, id)
	}
	if err != nil {
		return Sample{}, storageErr("read sample", path, err)
	}
	return Sample{Label: name, ID: id, Embedding: embedding}, nil
}

// SampleIDs lists the ids of all samples of label in insertion order.
func (s *Store) SampleIDs(label string) ([]string, error) {
	_, dir, err := s.requireLabel(label)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &labelNotFoundError{label: filepath.Base(dir)}
	}
	if err != nil {
		return nil, storageErr("list samples", dir, err)
	}

	// os.ReadDir returns entries sorted by file name
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, SampleExt) {
			continue
		}
		id := strings.TrimSuffix(name, SampleExt)
		if id == CentroidName {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CountSamples returns the number of samples stored under label
func (s *Store) CountSamples(label string) (int, error) {
	ids, err := s.SampleIDs(label)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Samples returns a lazy enumeration of all samples of label. Each range over
// the sequence lists the directory again, so the sequence can be restarted.
// A sample removed between listing and reading is skipped.
func (s *Store) Samples(ctx context.Context, label string) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		ids, err := s.SampleIDs(label)
		if err != nil {
			yield(Sample{}, err)
			return
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(Sample{}, err)
				return
			}
			sample, err := s.Get(label, id)
			if errors.Is(err, ErrSampleNotFound) {
				continue
			}
			if !yield(sample, err) || err != nil {
				return
			}
		}
	}
}

// Remove deletes one sample. The caller must hold the label lock.
func (s *Store) Remove(label, id string) error {
	name, dir, err := s.requireLabel(label)
	if err != nil {
		return err
	}
	if err := ValidateSampleID(id); err != nil {
		return err
	}

	path := samplePath(dir, id)
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrSampleNotFound, name, id)
	}
	if err != nil {
		return storageErr("remove sample", path, err)
	}

	s.logger.Debug("sample removed", zap.String("label", name), zap.String("id", id))
	return nil
}

// RemoveAll deletes every sample, the centroid and the label itself.
// The label directory is renamed aside before deletion so readers never see
// a half-deleted label. The caller must hold the label lock.
func (s *Store) RemoveAll(label string) error {
	name, dir, err := s.requireLabel(label)
	if err != nil {
		return err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("failed to generate trash name: %w", err)
	}
	trash := filepath.Join(s.root, trashPrefix+id.String())
	if err := os.Rename(dir, trash); err != nil {
		return storageErr("remove label", dir, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		// the label is already gone from the index; Open sweeps leftovers
		s.logger.Warn("failed to delete removed label directory", zap.String("path", trash), zap.Error(err))
	}

	s.logger.Debug("label removed", zap.String("label", name))
	return nil
}

func samplePath(dir, id string) string {
	return filepath.Join(dir, id+SampleExt)
}

// writeEmbedding atomically writes embedding as a JSON array of floats
func writeEmbedding(path string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	return renameio.WriteFile(path, data, 0o644)
}

func readEmbedding(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return embedding, nil
}
