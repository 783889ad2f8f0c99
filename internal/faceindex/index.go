// Package faceindex maintains the label index: named labels owning face
// embedding samples and a centroid that always equals the mean of the
// current samples.
package faceindex

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/database"
	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// LabelState is the lifecycle state of a label
type LabelState string

const (
	StateNonExistent LabelState = "nonexistent"
	StateEmpty       LabelState = "empty"
	StatePopulated   LabelState = "populated"
)

// LabelInfo summarizes a label
type LabelInfo struct {
	Name        string     `json:"name"`
	Samples     int        `json:"samples"`
	HasCentroid bool       `json:"hasCentroid"`
	State       LabelState `json:"state"`
}

// Index is the handle to one on-disk label index. There is no process-wide
// default index; every caller passes its handle explicitly.
type Index struct {
	store  *database.Store
	logger *zap.Logger
}

// Option configures an Index
type Option func(*options)

type options struct {
	logger    *zap.Logger
	dimension int
}

// WithLogger sets the logger for debug and rollback messages
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDimension fixes the embedding dimension of a new index
func WithDimension(dim int) Option {
	return func(o *options) { o.dimension = dim }
}

// Open opens the index rooted at dir. The directory is created lazily on the
// first mutation.
func Open(dir string, opts ...Option) (*Index, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	store, err := database.Open(dir,
		database.WithLogger(o.logger),
		database.WithDimension(o.dimension),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &Index{store: store, logger: o.logger}, nil
}

// Root returns the index root directory
func (x *Index) Root() string {
	return x.store.Root()
}

// Store exposes the underlying sample store for read-only helpers
func (x *Index) Store() *database.Store {
	return x.store
}

// Dimension returns the index embedding dimension; ok is false until it is known
func (x *Index) Dimension() (int, bool, error) {
	return x.store.Dimension()
}

// AddSample stores embedding under label with a fresh id and recomputes the
// label centroid. The label is created when it does not exist. If the
// centroid cannot be written the sample (and a label created by this call)
// is removed again before the error is returned.
func (x *Index) AddSample(ctx context.Context, label string, embedding []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := database.NormalizeLabel(label)
	if err != nil {
		return "", err
	}
	if err := x.store.CheckDimension(embedding); err != nil {
		return "", err
	}
	if err := vecmath.ValidateFinite(embedding); err != nil {
		return "", err
	}

	unlock, err := x.store.LockLabel(name)
	if err != nil {
		return "", err
	}
	defer unlock()

	existed, err := x.store.LabelExists(name)
	if err != nil {
		return "", err
	}

	id, err := database.NewSampleID()
	if err != nil {
		return "", err
	}
	if err := x.store.Put(name, id, embedding); err != nil {
		if !existed {
			x.rollbackLabel(name)
		}
		return "", err
	}

	if _, _, err := x.store.Recompute(name, x.store.Samples(ctx, name)); err != nil {
		x.logger.Warn("centroid update failed, rolling back sample",
			zap.String("label", name), zap.String("id", id), zap.Error(err))
		if rbErr := x.store.Remove(name, id); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback of sample %s failed: %w", id, rbErr))
		} else if !existed {
			x.rollbackLabel(name)
		}
		return "", err
	}

	x.logger.Debug("sample added", zap.String("label", name), zap.String("id", id))
	return id, nil
}

// rollbackLabel removes a label directory created by a failed AddSample
func (x *Index) rollbackLabel(name string) {
	exists, err := x.store.LabelExists(name)
	if err != nil || !exists {
		return
	}
	if err := x.store.RemoveAll(name); err != nil {
		x.logger.Warn("failed to roll back label creation", zap.String("label", name), zap.Error(err))
	}
}

// RemoveSample deletes one sample and recomputes the centroid, clearing it
// when the label becomes empty. Removing the same id twice fails with
// database.ErrSampleNotFound the second time.
func (x *Index) RemoveSample(ctx context.Context, label, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := database.NormalizeLabel(label)
	if err != nil {
		return err
	}

	unlock, err := x.store.LockLabel(name)
	if err != nil {
		return err
	}
	defer unlock()

	removed, err := x.store.Get(name, id)
	if err != nil {
		return err
	}
	if err := x.store.Remove(name, id); err != nil {
		return err
	}

	if _, _, err := x.store.Recompute(name, x.store.Samples(ctx, name)); err != nil {
		x.logger.Warn("centroid update failed, restoring sample",
			zap.String("label", name), zap.String("id", id), zap.Error(err))
		if rbErr := x.store.Put(name, id, removed.Embedding); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("restore of sample %s failed: %w", id, rbErr))
		}
		return err
	}

	x.logger.Debug("sample removed", zap.String("label", name), zap.String("id", id))
	return nil
}

// RemoveLabel deletes a label with all its samples and its centroid.
func (x *Index) RemoveLabel(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := database.NormalizeLabel(label)
	if err != nil {
		return err
	}

	unlock, err := x.store.LockLabel(name)
	if err != nil {
		return err
	}
	defer unlock()

	return x.store.RemoveAll(name)
}

// CreateLabel creates an empty label. Creating an existing label is a no-op.
func (x *Index) CreateLabel(ctx context.Context, label string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := database.NormalizeLabel(label)
	if err != nil {
		return false, err
	}

	unlock, err := x.store.LockLabel(name)
	if err != nil {
		return false, err
	}
	defer unlock()

	return x.store.CreateLabel(name)
}

// ListLabels returns every label name, including labels without samples.
func (x *Index) ListLabels(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return x.store.Labels()
}

// CentroidFor returns the centroid of label; ok is false when the label has
// no samples.
func (x *Index) CentroidFor(ctx context.Context, label string) ([]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return x.store.LoadCentroid(label)
}

// Describe returns the state of a single label. A missing label is reported
// as StateNonExistent rather than an error.
func (x *Index) Describe(ctx context.Context, label string) (LabelInfo, error) {
	if err := ctx.Err(); err != nil {
		return LabelInfo{}, err
	}
	name, err := database.NormalizeLabel(label)
	if err != nil {
		return LabelInfo{}, err
	}

	info := LabelInfo{Name: name, State: StateNonExistent}
	count, err := x.store.CountSamples(name)
	if errors.Is(err, database.ErrLabelNotFound) {
		return info, nil
	}
	if err != nil {
		return LabelInfo{}, err
	}
	_, hasCentroid, err := x.store.LoadCentroid(name)
	if errors.Is(err, database.ErrLabelNotFound) {
		return info, nil
	}
	if err != nil {
		return LabelInfo{}, err
	}

	info.Samples = count
	info.HasCentroid = hasCentroid
	info.State = StateEmpty
	if count > 0 {
		info.State = StatePopulated
	}
	return info, nil
}

// ListLabelInfo describes every label in the index.
func (x *Index) ListLabelInfo(ctx context.Context) ([]LabelInfo, error) {
	labels, err := x.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]LabelInfo, 0, len(labels))
	for _, label := range labels {
		info, err := x.Describe(ctx, label)
		if err != nil {
			return nil, err
		}
		if info.State == StateNonExistent {
			continue // removed while listing
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SampleIDs returns the sample ids of label in insertion order.
func (x *Index) SampleIDs(ctx context.Context, label string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return x.store.SampleIDs(label)
}

// Samples reads every sample of label in insertion order.
func (x *Index) Samples(ctx context.Context, label string) ([]database.Sample, error) {
	var samples []database.Sample
	for sample, err := range x.store.Samples(ctx, label) {
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// Rebuild recomputes the centroid of label from the samples on disk. It is
// only needed after sample files were changed outside of the index.
func (x *Index) Rebuild(ctx context.Context, label string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := database.NormalizeLabel(label)
	if err != nil {
		return false, err
	}

	unlock, err := x.store.LockLabel(name)
	if err != nil {
		return false, err
	}
	defer unlock()

	_, ok, err := x.store.Recompute(name, x.store.Samples(ctx, name))
	return ok, err
}
