package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/constants"
	"github.com/kozaktomas/faceprints/internal/facematch"
)

var (
	// ErrProvider wraps failures of the embedding server
	ErrProvider = errors.New("face provider error")
	// ErrNoFace is returned when an image contains no detectable face
	ErrNoFace = errors.New("no face found")
)

// Face is a single face detected in an image
type Face struct {
	Region     facematch.Region `json:"boundingBox"`
	Confidence float64          `json:"faceConfidence"`
	Embedding  []float32        `json:"embedding"`
}

// Provider detects faces in an image and computes one feature print per face.
type Provider interface {
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
}

// faceDetection is a single face as returned by the embedding server
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response of the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// HTTPProvider computes face embeddings using the embedding server
type HTTPProvider struct {
	baseURL string
	maxSide int
	client  *http.Client
	logger  *zap.Logger
}

// HTTPOption configures an HTTPProvider
type HTTPOption func(*HTTPProvider)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *zap.Logger) HTTPOption {
	return func(p *HTTPProvider) { p.logger = logger }
}

// WithMaxSide sets the longest image side uploaded to the server.
// Zero disables downscaling.
func WithMaxSide(n int) HTTPOption {
	return func(p *HTTPProvider) { p.maxSide = n }
}

// NewHTTPProvider creates a new embedding server client
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	if baseURL == "" {
		baseURL = constants.DefaultEmbeddingURL
	}
	p := &HTTPProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSide: constants.MaxUploadSide,
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DetectFaces uploads the image to the face endpoint and returns the detected
// faces with bounding boxes normalized to the image size.
func (p *HTTPProvider) DetectFaces(ctx context.Context, imageData []byte) ([]Face, error) {
	data, info, err := PrepareImage(imageData, p.maxSide)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := p.postMultipartImage(ctx, "/embed/face", data, info.Format)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProvider, err)
	}
	p.logger.Debug("faces detected",
		zap.Int("faces", len(resp.Faces)),
		zap.String("model", resp.Model),
		zap.Duration("took", time.Since(start)))

	faces := make([]Face, 0, len(resp.Faces))
	for i, det := range resp.Faces {
		if len(det.Embedding) == 0 {
			return nil, fmt.Errorf("%w: face %d has an empty embedding", ErrProvider, i)
		}
		region, err := facematch.RegionFromPixelBBox(det.BBox, info.Width, info.Height)
		if err != nil {
			return nil, fmt.Errorf("%w: face %d: %v", ErrProvider, i, err)
		}
		faces = append(faces, Face{
			Region:     region,
			Confidence: det.DetScore,
			Embedding:  det.Embedding,
		})
	}
	return dropDuplicateFaces(faces), nil
}

// dropDuplicateFaces removes detections overlapping a more confident
// detection by at least constants.DuplicateFaceIoU. Order is preserved.
func dropDuplicateFaces(faces []Face) []Face {
	keep := make([]Face, 0, len(faces))
	for i, f := range faces {
		duplicate := false
		for j, other := range faces {
			if i == j || facematch.ComputeIoU(f.Region, other.Region) < constants.DuplicateFaceIoU {
				continue
			}
			if other.Confidence > f.Confidence || (other.Confidence == f.Confidence && j < i) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			keep = append(keep, f)
		}
	}
	return keep
}

// postMultipartImage posts the image as the "file" form field and returns the
// response body.
func (p *HTTPProvider) postMultipartImage(ctx context.Context, endpoint string, imageData []byte, format string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="image.%s"`, format))
	h.Set("Content-Type", "image/"+format)
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
