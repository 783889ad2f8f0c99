package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/faceindex"
	"github.com/kozaktomas/faceprints/internal/facematch"
	"github.com/kozaktomas/faceprints/internal/fingerprint"
)

// MatchHandler handles classification and similarity search.
type MatchHandler struct {
	index    *faceindex.Index
	provider fingerprint.Provider
	logger   *zap.Logger
}

// NewMatchHandler creates a new match handler. provider may be nil, in which
// case image classification is unavailable.
func NewMatchHandler(index *faceindex.Index, provider fingerprint.Provider, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{index: index, provider: provider, logger: logger}
}

// ClassifyRequest carries one or more query embeddings.
type ClassifyRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// FaceResult is the classification of one face or query embedding.
type FaceResult struct {
	BoundingBox    *facematch.Region `json:"boundingBox,omitempty"`
	FaceConfidence *float64          `json:"faceConfidence,omitempty"`
	TopLabel       string            `json:"topLabel"`
	TopConfidence  float64           `json:"topConfidence"`
	Ranks          []facematch.Score `json:"ranks"`
}

// ClassifyResponse holds one result per query, in request order.
type ClassifyResponse struct {
	Faces []FaceResult `json:"faces"`
}

// SimilarRequest carries a query embedding for nearest sample search.
type SimilarRequest struct {
	Embedding []float32 `json:"embedding"`
	Limit     int       `json:"limit"`
}

// SimilarResponse lists the nearest stored samples.
type SimilarResponse struct {
	Matches []facematch.SampleMatch `json:"matches"`
}

func newFaceResult(scores []facematch.Score) FaceResult {
	return FaceResult{
		TopLabel:      scores[0].Label,
		TopConfidence: scores[0].Score,
		Ranks:         scores,
	}
}

// Classify ranks every label for each query embedding.
func (h *MatchHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Embeddings) == 0 {
		respondError(w, http.StatusBadRequest, "embeddings are required")
		return
	}

	results, err := facematch.ClassifyAll(r.Context(), h.index, req.Embeddings)
	if err != nil {
		respondIndexError(w, h.logger, "failed to classify", err)
		return
	}

	resp := ClassifyResponse{Faces: make([]FaceResult, 0, len(results))}
	for _, scores := range results {
		resp.Faces = append(resp.Faces, newFaceResult(scores))
	}
	respondJSON(w, http.StatusOK, resp)
}

// ClassifyImage detects the faces in an uploaded image ("file" form field)
// and classifies each of them.
func (h *MatchHandler) ClassifyImage(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		respondError(w, http.StatusServiceUnavailable, "face provider not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxImageBytes+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	faces, err := h.provider.DetectFaces(r.Context(), data)
	if err != nil {
		respondIndexError(w, h.logger, "face detection failed", err)
		return
	}

	resp := ClassifyResponse{Faces: make([]FaceResult, 0, len(faces))}
	for _, face := range faces {
		scores, err := facematch.Classify(r.Context(), h.index, face.Embedding)
		if err != nil {
			respondIndexError(w, h.logger, "failed to classify", err)
			return
		}
		result := newFaceResult(scores)
		result.BoundingBox = &face.Region
		result.FaceConfidence = &face.Confidence
		resp.Faces = append(resp.Faces, result)
	}
	respondJSON(w, http.StatusOK, resp)
}

// Similar returns the stored samples closest to a query embedding.
func (h *MatchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Limit <= 0 {
		req.Limit = constants.DefaultSimilarLimit
	}

	matches, err := facematch.NearestSamples(r.Context(), h.index, req.Embedding, req.Limit)
	if err != nil {
		respondIndexError(w, h.logger, "failed to search samples", err)
		return
	}
	respondJSON(w, http.StatusOK, SimilarResponse{Matches: matches})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
