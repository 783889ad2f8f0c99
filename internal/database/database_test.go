package database

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/faceprints/internal/vecmath"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

func collect(t *testing.T, s *Store, label string) []Sample {
	t.Helper()
	var out []Sample
	for sample, err := range s.Samples(context.Background(), label) {
		require.NoError(t, err)
		out = append(out, sample)
	}
	return out
}

func TestOpen_EmptyRoot(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)

	s := newTestStore(t)
	labels, err := s.Labels()
	require.NoError(t, err)
	assert.Empty(t, labels)

	_, ok, err := s.Dimension()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPut_SamplesInInsertionOrder(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for i := range 5 {
		id, err := NewSampleID()
		require.NoError(t, err)
		require.NoError(t, s.Put("alice", id, []float32{float32(i), 1}))
		ids = append(ids, id)
	}

	samples := collect(t, s, "alice")
	require.Len(t, samples, 5)
	for i, sample := range samples {
		assert.Equal(t, ids[i], sample.ID)
		assert.Equal(t, "alice", sample.Label)
		assert.Equal(t, []float32{float32(i), 1}, sample.Embedding)
	}

	// the sequence can be ranged over again
	assert.Len(t, collect(t, s, "alice"), 5)
}

func TestPut_Duplicate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "one", []float32{1, 2}))

	err := s.Put("alice", "one", []float32{3, 4})
	require.ErrorIs(t, err, ErrDuplicateSample)

	sample, err := s.Get("alice", "one")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, sample.Embedding)
}

func TestPut_DimensionEstablishedByFirstSample(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "one", []float32{1, 2, 3}))

	dim, ok, err := s.Dimension()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, dim)

	err = s.Put("bob", "two", []float32{1, 2})
	require.ErrorIs(t, err, vecmath.ErrDimensionMismatch)

	exists, err := s.LabelExists("bob")
	require.NoError(t, err)
	assert.False(t, exists, "rejected put must not create the label")

	// dimension survives reopening and removing every sample
	require.NoError(t, s.RemoveAll("alice"))
	reopened, err := Open(s.Root())
	require.NoError(t, err)
	err = reopened.Put("carol", "three", []float32{1})
	assert.ErrorIs(t, err, vecmath.ErrDimensionMismatch)
}

func TestPut_ConfiguredDimension(t *testing.T) {
	s := newTestStore(t, WithDimension(4))

	err := s.Put("alice", "one", []float32{1, 2})
	require.ErrorIs(t, err, vecmath.ErrDimensionMismatch)
	require.NoError(t, s.Put("alice", "two", []float32{1, 2, 3, 4}))

	data, err := os.ReadFile(filepath.Join(s.Root(), MetaFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "dimension: 4")
}

func TestMetaFileOutsideLabelNamespace(t *testing.T) {
	s := newTestStore(t)

	// a label may carry the name of an ordinary file in the index root
	created, err := s.CreateLabel("index.yaml")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, s.Put("alice", "one", []float32{1, 0}))
	dim, ok, err := s.Dimension()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, dim)

	require.NoError(t, s.Put("index.yaml", "two", []float32{0, 1}))
	assert.Len(t, collect(t, s, "index.yaml"), 1)

	labels, err := s.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "index.yaml"}, labels)

	_, err = NormalizeLabel(MetaFile)
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestPut_FailedFirstWriteLeavesNoDimension(t *testing.T) {
	s := newTestStore(t)

	// a regular file where the label directory should go
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "bob"), []byte("x"), 0o644))
	err := s.Put("bob", "one", []float32{1, 2})
	require.ErrorIs(t, err, ErrStorageIO)

	_, ok, err := s.Dimension()
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(s.Root(), MetaFile))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, s.Put("alice", "one", []float32{1, 2, 3}))
	dim, ok, err := s.Dimension()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, dim)
}

func TestPut_NonFiniteRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.Put("alice", "one", []float32{float32(math.NaN()), 1})
	require.ErrorIs(t, err, vecmath.ErrDegenerateVector)
	err = s.Put("alice", "two", []float32{float32(math.Inf(-1)), 1})
	require.ErrorIs(t, err, vecmath.ErrDegenerateVector)

	_, ok, err := s.Dimension()
	require.NoError(t, err)
	assert.False(t, ok)
	labels, err := s.Labels()
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestPut_InvalidNames(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Put("../escape", "one", []float32{1}), ErrInvalidLabel)
	assert.ErrorIs(t, s.Put("alice", "../one", []float32{1}), ErrInvalidSampleID)
	assert.ErrorIs(t, s.Put("alice", CentroidName, []float32{1}), ErrInvalidSampleID)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "one", []float32{1, 2}))

	require.NoError(t, s.Remove("alice", "one"))
	err := s.Remove("alice", "one")
	assert.ErrorIs(t, err, ErrSampleNotFound)

	err = s.Remove("nobody", "one")
	assert.ErrorIs(t, err, ErrLabelNotFound)

	// the label stays, now empty
	labels, err := s.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, labels)
}

func TestRemoveAll(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "one", []float32{1, 2}))
	_, _, err := s.Recompute("alice", s.Samples(context.Background(), "alice"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveAll("alice"))

	labels, err := s.Labels()
	require.NoError(t, err)
	assert.Empty(t, labels)

	assert.ErrorIs(t, s.RemoveAll("alice"), ErrLabelNotFound)
	_, _, err = s.LoadCentroid("alice")
	assert.ErrorIs(t, err, ErrLabelNotFound)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), trashPrefix)
	}
}

func TestLabels_IncludesEmptyAndSkipsInternals(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateLabel("zoe")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateLabel("zoe")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.Put("alice", "one", []float32{1}))
	unlock, err := s.LockLabel("alice")
	require.NoError(t, err)
	unlock()

	labels, err := s.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "zoe"}, labels)

	n, err := s.CountSamples("zoe")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecompute(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put("alice", "a", []float32{1, 0}))
	require.NoError(t, s.Put("alice", "b", []float32{0, 1}))
	require.NoError(t, s.Put("alice", "c", []float32{2, 2}))

	centroid, ok, err := s.Recompute("alice", s.Samples(ctx, "alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{1, 1}, centroid, 1e-6)

	loaded, ok, err := s.LoadCentroid("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, centroid, loaded)

	// the centroid file is not a sample
	ids, err := s.SampleIDs("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	for _, id := range ids {
		require.NoError(t, s.Remove("alice", id))
	}
	_, ok, err = s.Recompute("alice", s.Samples(ctx, "alice"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.LoadCentroid("alice")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(s.Root(), "alice", CentroidName+SampleExt))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRecompute_ZeroCentroidIsKept(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "a", []float32{1, -1}))
	require.NoError(t, s.Put("alice", "b", []float32{-1, 1}))

	centroid, ok, err := s.Recompute("alice", s.Samples(context.Background(), "alice"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0, 0}, centroid)
}

func TestSamples_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "a", []float32{1, 2}))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "alice", "b"+SampleExt), []byte("{not json"), 0o644))

	var gotErr error
	for _, err := range s.Samples(context.Background(), "alice") {
		if err != nil {
			gotErr = err
		}
	}
	require.ErrorIs(t, gotErr, ErrStorageIO)

	var storageErr *StorageError
	require.True(t, errors.As(gotErr, &storageErr))
	assert.Equal(t, "read sample", storageErr.Op)
}

func TestSamples_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put("alice", "a", []float32{1, 2}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range s.Samples(ctx, "alice") {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestSamples_UnknownLabel(t *testing.T) {
	s := newTestStore(t)
	for _, err := range s.Samples(context.Background(), "nobody") {
		assert.ErrorIs(t, err, ErrLabelNotFound)
	}
}

func TestLockLabel_SerializesMutations(t *testing.T) {
	s := newTestStore(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxSeen int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.LockLabel("alice")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			holders++
			maxSeen = max(maxSeen, holders)
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestLockLabel_DifferentLabelsIndependent(t *testing.T) {
	s := newTestStore(t)
	unlockA, err := s.LockLabel("alice")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := s.LockLabel("bob")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on bob blocked by lock on alice")
	}
}
