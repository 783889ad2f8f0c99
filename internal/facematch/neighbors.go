package facematch

import (
	"context"
	"errors"
	"sort"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/database"
	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// SampleGraph is an HNSW graph over every sample of the index, used to find
// the individual samples closest to a query.
type SampleGraph struct {
	graph   *hnsw.Graph[string]
	samples map[string]database.Sample
}

// BuildSampleGraph loads every sample of src into a new HNSW graph.
// Samples with zero magnitude have no direction and are left out.
func BuildSampleGraph(ctx context.Context, src SampleSource) (*SampleGraph, error) {
	labels, err := src.ListLabels(ctx)
	if err != nil {
		return nil, err
	}

	g := hnsw.NewGraph[string]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.CosineDistance

	sg := &SampleGraph{graph: g, samples: make(map[string]database.Sample)}
	for _, label := range labels {
		samples, err := src.Samples(ctx, label)
		if errors.Is(err, database.ErrLabelNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			if vecmath.Norm(s.Embedding) == 0 {
				continue
			}
			key := s.Label + "/" + s.ID
			g.Add(hnsw.MakeNode(key, s.Embedding))
			sg.samples[key] = s
		}
	}
	return sg, nil
}

// Len returns the number of samples in the graph
func (sg *SampleGraph) Len() int {
	return len(sg.samples)
}

// Search returns up to k samples most similar to query, scored exactly by
// cosine similarity and ordered by descending score.
func (sg *SampleGraph) Search(query []float32, k int) ([]SampleMatch, error) {
	if k <= 0 || len(sg.samples) == 0 {
		return []SampleMatch{}, nil
	}
	for _, s := range sg.samples {
		if err := vecmath.ValidateDimension(query, len(s.Embedding)); err != nil {
			return nil, err
		}
		break
	}

	// Search with more candidates for better recall before exact rescoring
	searchK := max(k*constants.HNSWSearchMultiplier, constants.HNSWEfSearch)
	neighbors := sg.graph.Search(query, min(searchK, len(sg.samples)))

	matches := make([]SampleMatch, 0, len(neighbors))
	for _, n := range neighbors {
		s, ok := sg.samples[n.Key]
		if !ok {
			continue
		}
		sim, err := vecmath.CosineSimilarity(query, s.Embedding)
		if err != nil {
			return nil, err
		}
		matches = append(matches, SampleMatch{Label: s.Label, ID: s.ID, Score: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Label != matches[j].Label {
			return matches[i].Label < matches[j].Label
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// NearestSamples builds a sample graph for src and returns the k samples
// closest to query.
func NearestSamples(ctx context.Context, src SampleSource, query []float32, k int) ([]SampleMatch, error) {
	if err := validateQuery(src, query); err != nil {
		return nil, err
	}
	sg, err := BuildSampleGraph(ctx, src)
	if err != nil {
		return nil, err
	}
	if sg.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	return sg.Search(query, k)
}
