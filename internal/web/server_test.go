package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/faceprints/internal/config"
	"github.com/kozaktomas/faceprints/internal/faceindex"
)

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	idx, err := faceindex.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	cfg := &config.WebConfig{Host: "127.0.0.1", Port: 0, APIToken: token}
	srv := httptest.NewServer(NewServer(cfg, idx, nil, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Workflow(t *testing.T) {
	srv := newTestServer(t, "")
	api := srv.URL + "/api/v1"

	steps := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{"GET", "/health", nil, http.StatusOK},
		{"POST", "/classify", map[string]any{"embeddings": [][]float32{{1, 0}}}, http.StatusConflict},
		{"POST", "/labels/alice/samples", map[string]any{"embedding": []float32{1, 0}}, http.StatusCreated},
		{"POST", "/labels/bob/samples", map[string]any{"embedding": []float32{0, 1}}, http.StatusCreated},
		{"GET", "/labels", nil, http.StatusOK},
		{"GET", "/labels/alice", nil, http.StatusOK},
		{"GET", "/labels/alice/centroid", nil, http.StatusOK},
		{"GET", "/labels/alice/samples", nil, http.StatusOK},
		{"GET", "/labels/alice/outliers", nil, http.StatusOK},
		{"POST", "/classify", map[string]any{"embeddings": [][]float32{{1, 0}}}, http.StatusOK},
		{"POST", "/similar", map[string]any{"embedding": []float32{1, 0}}, http.StatusOK},
		{"POST", "/classify/image", nil, http.StatusServiceUnavailable},
		{"DELETE", "/labels/bob", nil, http.StatusNoContent},
		{"GET", "/labels/bob", nil, http.StatusNotFound},
	}

	for _, s := range steps {
		resp := do(t, s.method, api+s.path, "", s.body)
		if resp.StatusCode != s.want {
			t.Fatalf("%s %s: status %d, want %d", s.method, s.path, resp.StatusCode, s.want)
		}
	}
}

func TestServer_ClassifyRanks(t *testing.T) {
	srv := newTestServer(t, "")
	api := srv.URL + "/api/v1"
	do(t, "POST", api+"/labels/alice/samples", "", map[string]any{"embedding": []float32{1, 0}})
	do(t, "POST", api+"/labels/bob/samples", "", map[string]any{"embedding": []float32{0, 1}})

	resp := do(t, "POST", api+"/classify", "", map[string]any{"embeddings": [][]float32{{1, 0}}})
	var body struct {
		Faces []struct {
			TopLabel string `json:"topLabel"`
			Ranks    []struct {
				Label string  `json:"label"`
				Score float64 `json:"score"`
			} `json:"ranks"`
		} `json:"faces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Faces) != 1 || len(body.Faces[0].Ranks) != 2 {
		t.Fatalf("unexpected response %+v", body)
	}
	ranks := body.Faces[0].Ranks
	if ranks[0].Label != "alice" || ranks[0].Score < 0.999 || ranks[1].Label != "bob" || ranks[1].Score > 1e-6 {
		t.Errorf("unexpected ranks %+v", ranks)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	srv := newTestServer(t, "s3cret")
	api := srv.URL + "/api/v1"

	if resp := do(t, "GET", api+"/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health should not require a token, got %d", resp.StatusCode)
	}
	if resp := do(t, "GET", api+"/labels", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := do(t, "GET", api+"/labels", "s3cret", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", resp.StatusCode)
	}
}
