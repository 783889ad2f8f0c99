// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Index constants
const (
	// DefaultIndexDirName is the index directory created in the user's home
	// directory when FACEPRINTS_DIR is not set
	DefaultIndexDirName = ".faceprints"

	// ObservedEmbeddingDim is the feature print length of the reference
	// embedding model. The index itself accepts any dimension fixed by its
	// first sample.
	ObservedEmbeddingDim = 768
)

// Face pipeline constants
const (
	// DefaultEmbeddingURL is the default embedding server address
	DefaultEmbeddingURL = "http://localhost:8000"

	// MaxImageBytes is the maximum size of an input image
	MaxImageBytes = 50 << 20

	// MaxUploadSide is the longest image side sent to the embedding server.
	// Larger images are downscaled first.
	MaxUploadSide = 2048

	// DuplicateImageThreshold is the dHash Hamming distance at or below which
	// two input images are treated as the same picture
	DuplicateImageThreshold = 4

	// DuplicateFaceIoU is the overlap at or above which two detections are
	// treated as the same face; the less confident one is dropped
	DuplicateFaceIoU = 0.8
)

// Search constants
const (
	// DefaultSimilarLimit is the default number of nearest samples returned
	DefaultSimilarLimit = 10

	// DefaultOutlierLimit is the default number of outliers returned per label
	DefaultOutlierLimit = 10

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// before exact rescoring.
	HNSWSearchMultiplier = 3
)

// Web server constants
const (
	// DefaultWebPort is the default HTTP port for `serve`
	DefaultWebPort = 8080

	// DefaultWebHost is the default bind address for `serve`
	DefaultWebHost = "127.0.0.1"

	// MaxRequestBodyBytes limits JSON request bodies
	MaxRequestBodyBytes = 8 << 20
)
