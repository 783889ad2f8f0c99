package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/faceindex"
	"github.com/kozaktomas/faceprints/internal/facematch"
)

// LabelsHandler handles label and sample endpoints.
type LabelsHandler struct {
	index  *faceindex.Index
	logger *zap.Logger
}

// NewLabelsHandler creates a new labels handler.
func NewLabelsHandler(index *faceindex.Index, logger *zap.Logger) *LabelsHandler {
	return &LabelsHandler{index: index, logger: logger}
}

// LabelsResponse lists every label with its details.
type LabelsResponse struct {
	Labels []faceindex.LabelInfo `json:"labels"`
}

// SamplesResponse lists the sample ids of a label in insertion order.
type SamplesResponse struct {
	Label   string   `json:"label"`
	Samples []string `json:"samples"`
}

// CentroidResponse is the centroid of a populated label.
type CentroidResponse struct {
	Label    string    `json:"label"`
	Centroid []float32 `json:"centroid"`
}

// AddSampleRequest carries one embedding to store under a label.
type AddSampleRequest struct {
	Embedding []float32 `json:"embedding"`
}

// AddSampleResponse is returned after a sample was stored.
type AddSampleResponse struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// OutliersResponse lists the samples least similar to their label centroid.
type OutliersResponse struct {
	Label    string              `json:"label"`
	Outliers []facematch.Outlier `json:"outliers"`
}

// List returns every label with sample counts.
func (h *LabelsHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.index.ListLabelInfo(r.Context())
	if err != nil {
		respondIndexError(w, h.logger, "failed to list labels", err)
		return
	}
	respondJSON(w, http.StatusOK, LabelsResponse{Labels: infos})
}

// Get describes a single label.
func (h *LabelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	info, err := h.index.Describe(r.Context(), label)
	if err != nil {
		respondIndexError(w, h.logger, "failed to describe label", err)
		return
	}
	if info.State == faceindex.StateNonExistent {
		respondError(w, http.StatusNotFound, "label not found")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// Create creates an empty label. Creating an existing label is a no-op.
func (h *LabelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	created, err := h.index.CreateLabel(r.Context(), label)
	if err != nil {
		respondIndexError(w, h.logger, "failed to create label", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]any{"label": label, "created": created})
}

// Delete removes a label with all its samples.
func (h *LabelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if err := h.index.RemoveLabel(r.Context(), label); err != nil {
		respondIndexError(w, h.logger, "failed to remove label", err)
		return
	}
	h.logger.Info("label removed", zap.String("label", sanitizeForLog(label)))
	w.WriteHeader(http.StatusNoContent)
}

// Centroid returns the centroid of a label.
func (h *LabelsHandler) Centroid(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	centroid, ok, err := h.index.CentroidFor(r.Context(), label)
	if err != nil {
		respondIndexError(w, h.logger, "failed to load centroid", err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "label has no samples")
		return
	}
	respondJSON(w, http.StatusOK, CentroidResponse{Label: label, Centroid: centroid})
}

// Samples lists the sample ids of a label.
func (h *LabelsHandler) Samples(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	ids, err := h.index.SampleIDs(r.Context(), label)
	if err != nil {
		respondIndexError(w, h.logger, "failed to list samples", err)
		return
	}
	respondJSON(w, http.StatusOK, SamplesResponse{Label: label, Samples: ids})
}

// AddSample stores an embedding under a label, creating the label if needed.
func (h *LabelsHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	var req AddSampleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.index.AddSample(r.Context(), label, req.Embedding)
	if err != nil {
		respondIndexError(w, h.logger, "failed to add sample", err)
		return
	}
	respondJSON(w, http.StatusCreated, AddSampleResponse{Label: label, ID: id})
}

// DeleteSample removes one sample from a label.
func (h *LabelsHandler) DeleteSample(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	id := chi.URLParam(r, "id")
	if err := h.index.RemoveSample(r.Context(), label, id); err != nil {
		respondIndexError(w, h.logger, "failed to remove sample", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Outliers returns the least typical samples of a label.
func (h *LabelsHandler) Outliers(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	limit := constants.DefaultOutlierLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	outliers, err := facematch.Outliers(r.Context(), h.index, label, limit)
	if err != nil {
		respondIndexError(w, h.logger, "failed to compute outliers", err)
		return
	}
	respondJSON(w, http.StatusOK, OutliersResponse{Label: label, Outliers: outliers})
}
