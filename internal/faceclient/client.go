package faceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Candidate is one gallery match returned by the face service, ordered by
// descending confidence. Identity is the enrollment image filename.
type Candidate struct {
	Identity   string  `json:"identity"`
	Confidence float64 `json:"confidence"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. Skip short-circuits every call with mock data for
// development without the face service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// Search runs 1:N identification of the image against the enrollment
// gallery. Detection enforcement is disabled and the detector backend is
// fixed; candidates come back best first. An empty slice means no match
// and is not an error.
func (c *Client) Search(ctx context.Context, image []byte, galleryDir string, topK int) ([]Candidate, error) {
	if c.Skip {
		return []Candidate{{Identity: "1__cap1__mock.jpg", Confidence: 0.99}}, nil
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image required")
	}

	body, _ := json.Marshal(map[string]interface{}{
		"image":             base64.StdEncoding.EncodeToString(image),
		"gallery_dir":       galleryDir,
		"top_k":             topK,
		"enforce_detection": false,
		"detector_backend":  "opencv",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Matches []Candidate `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Matches, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
