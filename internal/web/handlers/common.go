package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/database"
	"github.com/kozaktomas/faceprints/internal/facematch"
	"github.com/kozaktomas/faceprints/internal/fingerprint"
	"github.com/kozaktomas/faceprints/internal/vecmath"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a size-limited JSON request body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// statusForError maps index errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrLabelNotFound),
		errors.Is(err, database.ErrSampleNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicateSample),
		errors.Is(err, facematch.ErrEmptyIndex):
		return http.StatusConflict
	case errors.Is(err, vecmath.ErrDimensionMismatch),
		errors.Is(err, vecmath.ErrDegenerateVector),
		errors.Is(err, database.ErrInvalidLabel),
		errors.Is(err, database.ErrInvalidSampleID),
		errors.Is(err, fingerprint.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, fingerprint.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, fingerprint.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondIndexError sends err with the status it maps to. Server errors are
// logged and their details kept out of the response.
func respondIndexError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		respondError(w, status, msg)
		return
	}
	respondError(w, status, err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
