// Package vecmath provides the fixed-dimension vector operations used by the
// faceprint index: elementwise sums, scaling, means and cosine similarity.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors (or a vector and the
	// index dimension) disagree in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDegenerateVector is returned when a vector with zero magnitude is
	// used where a direction is required.
	ErrDegenerateVector = errors.New("degenerate vector")
)

// DimensionError describes a length mismatch. It matches ErrDimensionMismatch.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// Dimension returns the number of components of v.
func Dimension(v []float32) int {
	return len(v)
}

// ValidateDimension returns a *DimensionError if v does not have exactly want components.
func ValidateDimension(v []float32, want int) error {
	if len(v) != want {
		return &DimensionError{Want: want, Got: len(v)}
	}
	return nil
}

// ValidateFinite returns ErrDegenerateVector if any component of v is NaN or infinite.
func ValidateFinite(v []float32) error {
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrDegenerateVector, i)
		}
	}
	return nil
}

// Add returns the elementwise sum of a and b.
func Add(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, &DimensionError{Want: len(a), Got: len(b)}
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

// Scale returns v multiplied elementwise by s.
func Scale(v []float32, s float32) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] * s
	}
	return out
}

// Dot computes the dot product of a and b in float64.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Norm computes the L2 norm (magnitude) of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity computes dot(a,b) / (|a| * |b|).
// Returns a value between -1 and 1, where 1 means identical direction.
// Fails with ErrDimensionMismatch on unequal lengths and ErrDegenerateVector
// when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateVector)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero magnitude", ErrDegenerateVector)
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity, nil
}

// Mean returns the elementwise mean of vectors. The sum is accumulated in
// float64 so the result does not depend on the order of the vectors beyond
// float64 rounding.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("mean of zero vectors is undefined")
	}
	acc := NewAccumulator(len(vectors[0]))
	for _, v := range vectors {
		if err := acc.Add(v); err != nil {
			return nil, err
		}
	}
	return acc.Mean()
}

// Accumulator sums vectors of a fixed dimension so a mean can be taken over a
// stream without holding every vector in memory.
type Accumulator struct {
	sum   []float64
	count int
}

// NewAccumulator creates an accumulator for vectors of dimension dim.
func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{sum: make([]float64, dim)}
}

// Add adds v to the running sum.
func (a *Accumulator) Add(v []float32) error {
	if err := ValidateDimension(v, len(a.sum)); err != nil {
		return err
	}
	for i, x := range v {
		a.sum[i] += float64(x)
	}
	a.count++
	return nil
}

// Count returns the number of vectors added so far.
func (a *Accumulator) Count() int {
	return a.count
}

// Mean returns the elementwise mean of the added vectors.
func (a *Accumulator) Mean() ([]float32, error) {
	if a.count == 0 {
		return nil, errors.New("mean of zero vectors is undefined")
	}
	out := make([]float32, len(a.sum))
	n := float64(a.count)
	for i, s := range a.sum {
		out[i] = float32(s / n)
	}
	return out, nil
}
