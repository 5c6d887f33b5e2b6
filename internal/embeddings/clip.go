package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// CLIPConfig holds configuration for a CLIP embedding sidecar.
//
// The sidecar exposes two endpoints on one joint vector space:
//
//	POST /embed/text   {"text": "..."}       -> {"vector": [...]}
//	POST /embed/image  multipart "file"      -> {"vector": [...]}
type CLIPConfig struct {
	// BaseURL is the base URL for the CLIP service.
	BaseURL string `koanf:"base_url"`

	// Dimension is the expected output dimension. Responses of any other
	// length are rejected.
	Dimension int `koanf:"dimension"`
}

// ApplyDefaults sets default values for unset fields.
func (c *CLIPConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8081"
	}
	if c.Dimension == 0 {
		c.Dimension = 512
	}
}

// Validate validates the configuration.
func (c CLIPConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// CLIPEmbedder generates image-space embeddings via a CLIP HTTP sidecar.
type CLIPEmbedder struct {
	config CLIPConfig
	client *http.Client
}

// NewCLIPEmbedder creates a new CLIP-backed image-space embedder.
func NewCLIPEmbedder(config CLIPConfig) (*CLIPEmbedder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &CLIPEmbedder{
		config: config,
		client: &http.Client{},
	}, nil
}

// clipResponse is the response body for both CLIP endpoints.
type clipResponse struct {
	Vector []float32 `json:"vector"`
}

// EmbedTextForImageSpace embeds text into the joint image space.
func (s *CLIPEmbedder) EmbedTextForImageSpace(ctx context.Context, text string) (ImageVector, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embed/text", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	vec, err := s.doEmbed(httpReq)
	if err != nil {
		return nil, err
	}
	return ImageVector(vec), nil
}

// EmbedImage embeds an image file into the joint image space.
func (s *CLIPEmbedder) EmbedImage(ctx context.Context, path string) (ImageVector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating multipart form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embed/image", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	vec, err := s.doEmbed(httpReq)
	if err != nil {
		return nil, err
	}
	return ImageVector(vec), nil
}

func (s *CLIPEmbedder) doEmbed(req *http.Request) ([]float32, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var out clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.config.Dimension, len(out.Vector))
	}
	return out.Vector, nil
}

// Dimension returns the image-space dimensionality.
func (s *CLIPEmbedder) Dimension() int {
	return s.config.Dimension
}

var _ ImageEmbedder = (*CLIPEmbedder)(nil)
