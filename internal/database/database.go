// Package database persists faceprint samples and label centroids on the
// local filesystem. Every label is a directory under the index root holding
// one JSON file per sample plus the derived avg.faceprint centroid.
package database

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store is a file-backed sample store rooted at a directory.
// It is safe for concurrent use; mutations of a label must be wrapped in
// LockLabel by the caller.
type Store struct {
	root   string
	dim    int // configured dimension, 0 = decided by the first sample
	locks  *lockTable
	logger *zap.Logger

	metaMu sync.RWMutex
	meta   *Meta
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for debug output and cleanup warnings
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDimension fixes the embedding dimension for a new index. An existing
// index with a different dimension rejects every embedding.
func WithDimension(dim int) Option {
	return func(s *Store) {
		if dim > 0 {
			s.dim = dim
		}
	}
}

// Open returns a store rooted at root. Nothing is created on disk until the
// first mutation.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("index root not set")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, storageErr("open", root, err)
	}

	s := &Store{
		root:   abs,
		locks:  newLockTable(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sweepTrash()
	return s, nil
}

// Root returns the absolute index root directory
func (s *Store) Root() string {
	return s.root
}

// Labels returns all label names in the index, sorted. Labels without
// samples are included.
func (s *Store) Labels() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, storageErr("list labels", s.root, err)
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		labels = append(labels, e.Name())
	}
	sort.Strings(labels)
	return labels, nil
}

// LabelExists reports whether label has a directory in the index
func (s *Store) LabelExists(label string) (bool, error) {
	_, dir, err := s.resolve(label)
	if err != nil {
		return false, err
	}
	return dirExists(dir)
}

// CreateLabel creates an empty label. It returns true if the label did not
// exist before.
func (s *Store) CreateLabel(label string) (bool, error) {
	_, dir, err := s.resolve(label)
	if err != nil {
		return false, err
	}
	exists, err := dirExists(dir)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, storageErr("create label", dir, err)
	}
	return true, nil
}

// resolve normalizes label and returns it with its directory path
func (s *Store) resolve(label string) (string, string, error) {
	name, err := NormalizeLabel(label)
	if err != nil {
		return "", "", err
	}
	return name, filepath.Join(s.root, name), nil
}

// requireLabel resolves label and fails with ErrLabelNotFound when its
// directory does not exist
func (s *Store) requireLabel(label string) (string, string, error) {
	name, dir, err := s.resolve(label)
	if err != nil {
		return "", "", err
	}
	exists, err := dirExists(dir)
	if err != nil {
		return "", "", err
	}
	if !exists {
		return "", "", &labelNotFoundError{label: name}
	}
	return name, dir, nil
}

type labelNotFoundError struct {
	label string
}

func (e *labelNotFoundError) Error() string {
	return "label not found: " + e.label
}

func (e *labelNotFoundError) Is(target error) bool {
	return target == ErrLabelNotFound
}

func dirExists(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("stat", dir, err)
	}
	return info.IsDir(), nil
}

// sweepTrash removes label directories left behind by an interrupted RemoveAll
func (s *Store) sweepTrash() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), trashPrefix) {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove trashed label directory", zap.String("path", path), zap.Error(err))
		}
	}
}
