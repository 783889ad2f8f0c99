package faceindex

import (
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/faceprints/internal/database"
	"github.com/kozaktomas/faceprints/internal/vecmath"
)

func newTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	x, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	return x
}

// breakCentroid replaces the centroid file of label with a non-empty
// directory so that every centroid write or removal fails.
func breakCentroid(t *testing.T, x *Index, label string) {
	t.Helper()
	path := filepath.Join(x.Root(), label, database.CentroidName+database.SampleExt)
	require.NoError(t, os.RemoveAll(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))
}

func TestAddSample_CentroidIsMean(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	id1, err := x.AddSample(ctx, "alice", []float32{1, 0, 2})
	require.NoError(t, err)
	id2, err := x.AddSample(ctx, "alice", []float32{3, 2, 0})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	centroid, ok, err := x.CentroidFor(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{2, 1, 1}, centroid, 1e-6)

	ids, err := x.SampleIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{id1, id2}, ids)
}

func TestAddSample_DimensionMismatchLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	_, err := x.AddSample(ctx, "alice", []float32{1, 2})
	require.NoError(t, err)
	before, _, err := x.CentroidFor(ctx, "alice")
	require.NoError(t, err)

	_, err = x.AddSample(ctx, "alice", []float32{1, 2, 3})
	require.ErrorIs(t, err, vecmath.ErrDimensionMismatch)
	_, err = x.AddSample(ctx, "bob", []float32{1})
	require.ErrorIs(t, err, vecmath.ErrDimensionMismatch)

	after, _, err := x.CentroidFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	ids, err := x.SampleIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	labels, err := x.ListLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, labels)
}

func TestAddSample_RollsBackWhenCentroidWriteFails(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	_, err := x.AddSample(ctx, "alice", []float32{1, 1})
	require.NoError(t, err)
	breakCentroid(t, x, "alice")

	_, err = x.AddSample(ctx, "alice", []float32{5, 5})
	require.ErrorIs(t, err, database.ErrStorageIO)

	ids, err := x.SampleIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, ids, 1, "failed add must not leave its sample behind")
}

func TestAddSample_NonFiniteLeavesIndexUntouched(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	_, err := x.AddSample(ctx, "alice", []float32{float32(math.NaN()), 1})
	require.ErrorIs(t, err, vecmath.ErrDegenerateVector)
	assert.NotErrorIs(t, err, database.ErrStorageIO)

	_, ok, err := x.Dimension()
	require.NoError(t, err)
	assert.False(t, ok)
	labels, err := x.ListLabels(ctx)
	require.NoError(t, err)
	assert.Empty(t, labels)

	// the first successful sample still decides the dimension
	_, err = x.AddSample(ctx, "alice", []float32{1, 2, 3})
	require.NoError(t, err)
	dim, ok, err := x.Dimension()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, dim)
}

func TestAddSample_FailedFirstWriteKeepsDimensionOpen(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, os.WriteFile(filepath.Join(x.Root(), "bob"), []byte("x"), 0o644))
	_, err := x.AddSample(ctx, "bob", []float32{1, 2})
	require.ErrorIs(t, err, database.ErrStorageIO)

	_, ok, err := x.Dimension()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = x.AddSample(ctx, "alice", []float32{1, 2, 3})
	require.NoError(t, err)
}

func TestAddSample_InvalidLabel(t *testing.T) {
	x := newTestIndex(t)
	_, err := x.AddSample(context.Background(), "../alice", []float32{1})
	assert.ErrorIs(t, err, database.ErrInvalidLabel)
}

func TestRemoveSample(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	id1, err := x.AddSample(ctx, "alice", []float32{1, 0})
	require.NoError(t, err)
	id2, err := x.AddSample(ctx, "alice", []float32{0, 1})
	require.NoError(t, err)

	require.NoError(t, x.RemoveSample(ctx, "alice", id1))
	centroid, ok, err := x.CentroidFor(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 1}, centroid)

	// second removal of the same id is an error
	err = x.RemoveSample(ctx, "alice", id1)
	require.ErrorIs(t, err, database.ErrSampleNotFound)
	after, _, err := x.CentroidFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, centroid, after)

	require.NoError(t, x.RemoveSample(ctx, "alice", id2))
	_, ok, err = x.CentroidFor(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok, "empty label has no centroid")

	info, err := x.Describe(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, info.State)

	err = x.RemoveSample(ctx, "nobody", id2)
	assert.ErrorIs(t, err, database.ErrLabelNotFound)
}

func TestRemoveSample_RestoresWhenCentroidWriteFails(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	id1, err := x.AddSample(ctx, "alice", []float32{1, 0})
	require.NoError(t, err)
	_, err = x.AddSample(ctx, "alice", []float32{0, 1})
	require.NoError(t, err)
	breakCentroid(t, x, "alice")

	err = x.RemoveSample(ctx, "alice", id1)
	require.ErrorIs(t, err, database.ErrStorageIO)

	ids, err := x.SampleIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, ids, id1)
}

func TestRemoveLabel(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	_, err := x.AddSample(ctx, "alice", []float32{1, 0})
	require.NoError(t, err)
	_, err = x.AddSample(ctx, "bob", []float32{0, 1})
	require.NoError(t, err)

	require.NoError(t, x.RemoveLabel(ctx, "alice"))
	labels, err := x.ListLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, labels)

	assert.ErrorIs(t, x.RemoveLabel(ctx, "alice"), database.ErrLabelNotFound)

	info, err := x.Describe(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateNonExistent, info.State)
}

func TestLabelStateMachine(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	info, err := x.Describe(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, StateNonExistent, info.State)

	created, err := x.CreateLabel(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, created)
	info, err = x.Describe(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, LabelInfo{Name: "carol", State: StateEmpty}, info)

	id, err := x.AddSample(ctx, "carol", []float32{1, 2})
	require.NoError(t, err)
	info, err = x.Describe(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, LabelInfo{Name: "carol", Samples: 1, HasCentroid: true, State: StatePopulated}, info)

	require.NoError(t, x.RemoveSample(ctx, "carol", id))
	infos, err := x.ListLabelInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LabelInfo{{Name: "carol", State: StateEmpty}}, infos)
}

func TestCentroidMatchesMean_RandomOperations(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)
	rng := rand.New(rand.NewPCG(7, 11))
	const dim = 16

	live := map[string]map[string][]float32{}
	labels := []string{"alice", "bob", "carol"}

	for range 120 {
		label := labels[rng.IntN(len(labels))]
		samples := live[label]
		if len(samples) > 0 && rng.IntN(3) == 0 {
			for id := range samples {
				require.NoError(t, x.RemoveSample(ctx, label, id))
				delete(samples, id)
				break
			}
		} else {
			v := make([]float32, dim)
			for i := range v {
				v[i] = rng.Float32()*2 - 1
			}
			id, err := x.AddSample(ctx, label, v)
			require.NoError(t, err)
			if samples == nil {
				samples = map[string][]float32{}
				live[label] = samples
			}
			samples[id] = v
		}

		for _, l := range labels {
			centroid, ok, err := x.CentroidFor(ctx, l)
			if _, known := live[l]; !known {
				require.ErrorIs(t, err, database.ErrLabelNotFound)
				continue
			}
			require.NoError(t, err)
			if len(live[l]) == 0 {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			vectors := make([][]float32, 0, len(live[l]))
			for _, v := range live[l] {
				vectors = append(vectors, v)
			}
			want, err := vecmath.Mean(vectors)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, centroid, 1e-5)
		}
	}
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	var wg sync.WaitGroup
	for i := range 4 {
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				label := []string{"alice", "bob"}[i%2]
				if _, err := x.AddSample(ctx, label, []float32{float32(i), 1}); err != nil {
					t.Error(err)
				}
			}()
		}
	}
	wg.Wait()

	for _, label := range []string{"alice", "bob"} {
		samples, err := x.Samples(ctx, label)
		require.NoError(t, err)
		require.Len(t, samples, 20)

		vectors := make([][]float32, len(samples))
		for i, s := range samples {
			vectors[i] = s.Embedding
		}
		want, err := vecmath.Mean(vectors)
		require.NoError(t, err)
		centroid, ok, err := x.CentroidFor(ctx, label)
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDeltaSlice(t, want, centroid, 1e-6)
	}
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)
	_, err := x.AddSample(ctx, "alice", []float32{2, 2})
	require.NoError(t, err)

	// a sample file copied in by hand is picked up by Rebuild
	require.NoError(t, os.WriteFile(
		filepath.Join(x.Root(), "alice", "manual"+database.SampleExt), []byte("[0,0]"), 0o644))
	ok, err := x.Rebuild(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	centroid, _, err := x.CentroidFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, centroid)
}

func TestCancelledContext(t *testing.T) {
	x := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := x.AddSample(ctx, "alice", []float32{1})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = x.ListLabels(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
