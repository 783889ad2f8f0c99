package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/faceindex"
)

// newTestIndex opens an empty index in a temporary directory
func newTestIndex(t *testing.T) *faceindex.Index {
	t.Helper()
	idx, err := faceindex.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	return idx
}

// seedSample stores an embedding under label
func seedSample(t *testing.T, idx *faceindex.Index, label string, emb ...float32) string {
	t.Helper()
	id, err := idx.AddSample(context.Background(), label, emb)
	if err != nil {
		t.Fatalf("failed to add sample: %v", err)
	}
	return id
}

// testLogger returns a logger that discards everything
func testLogger() *zap.Logger {
	return zap.NewNop()
}

// jsonRequest creates a request with a JSON encoded body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
