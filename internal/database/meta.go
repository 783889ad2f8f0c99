package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// Dimension returns the index embedding dimension. ok is false while no
// sample has ever been stored and no dimension was configured.
func (s *Store) Dimension() (int, bool, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return 0, false, err
	}
	if meta != nil {
		return meta.Dimension, true, nil
	}
	if s.dim > 0 {
		return s.dim, true, nil
	}
	return 0, false, nil
}

// CheckDimension validates v against the index dimension without
// establishing one.
func (s *Store) CheckDimension(v []float32) error {
	dim, ok, err := s.Dimension()
	if err != nil {
		return err
	}
	if !ok {
		if len(v) == 0 {
			return &vecmath.DimensionError{Want: 1, Got: 0}
		}
		return nil
	}
	return vecmath.ValidateDimension(v, dim)
}

// commitWithDimension validates v against the index dimension and runs
// write. When the index has no dimension yet, it is recorded only after write
// succeeded, so a failed first write leaves no metadata behind. undo reverts
// write if the metadata itself cannot be stored.
func (s *Store) commitWithDimension(v []float32, write func() error, undo func()) error {
	meta, err := s.loadMeta()
	if err != nil {
		return err
	}
	if meta != nil {
		if err := vecmath.ValidateDimension(v, meta.Dimension); err != nil {
			return err
		}
		return write()
	}

	unlock, err := s.lock(indexLockName)
	if err != nil {
		return err
	}
	defer unlock()

	// another process may have won the race
	s.dropMeta()
	meta, err = s.loadMeta()
	if err != nil {
		return err
	}
	if meta != nil {
		if err := vecmath.ValidateDimension(v, meta.Dimension); err != nil {
			return err
		}
		return write()
	}

	dim := s.dim
	if dim == 0 {
		dim = len(v)
	}
	if dim == 0 {
		return &vecmath.DimensionError{Want: 1, Got: 0}
	}
	if err := vecmath.ValidateDimension(v, dim); err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}

	meta = &Meta{
		Version:   currentMetaVersion,
		Dimension: dim,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.writeMeta(meta); err != nil {
		undo()
		return err
	}
	s.logger.Debug("index dimension established", zap.Int("dimension", dim), zap.String("root", s.root))
	return nil
}

func (s *Store) loadMeta() (*Meta, error) {
	s.metaMu.RLock()
	meta := s.meta
	s.metaMu.RUnlock()
	if meta != nil {
		return meta, nil
	}

	path := filepath.Join(s.root, MetaFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read meta", path, err)
	}

	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, storageErr("read meta", path, fmt.Errorf("failed to parse: %w", err))
	}
	if m.Dimension <= 0 {
		return nil, storageErr("read meta", path, fmt.Errorf("invalid dimension %d", m.Dimension))
	}
	if s.dim > 0 && s.dim != m.Dimension {
		s.logger.Warn("configured dimension differs from index dimension",
			zap.Int("configured", s.dim), zap.Int("index", m.Dimension))
	}

	s.metaMu.Lock()
	s.meta = &m
	s.metaMu.Unlock()
	return &m, nil
}

func (s *Store) dropMeta() {
	s.metaMu.Lock()
	s.meta = nil
	s.metaMu.Unlock()
}

func (s *Store) writeMeta(m *Meta) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return storageErr("write meta", s.root, err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	path := filepath.Join(s.root, MetaFile)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return storageErr("write meta", path, err)
	}

	s.metaMu.Lock()
	s.meta = m
	s.metaMu.Unlock()
	return nil
}
