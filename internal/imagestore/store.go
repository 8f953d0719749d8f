// Package imagestore persists enrollment captures on the local filesystem.
// Files are named {student_id}__cap{sequence}__{token}.jpg so a face match
// against the directory can be traced back to a student id; parsing of that
// convention lives in the recognizer package.
package imagestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidImage signals a capture payload that is not a decodable
	// image data URL.
	ErrInvalidImage = errors.New("invalid image data")
)

// Store writes capture files under a per-deployment directory.
type Store struct {
	dir string
}

// New creates the directory if needed and returns a store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory captures are stored under; the recognizer
// points the matching service at it.
func (s *Store) Dir() string { return s.dir }

// CaptureFilename builds the canonical enrollment filename for a capture.
func CaptureFilename(studentID int64, seq int) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d__cap%d__%s.jpg", studentID, seq, token)
}

// SaveDataURL decodes a base64 image data URL and writes it as the
// student's next capture. Returns the stored path.
func (s *Store) SaveDataURL(studentID int64, seq int, dataURL string) (string, error) {
	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, CaptureFilename(studentID, seq))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return path, nil
}

// Remove deletes capture files, ignoring ones already gone. Used to clean
// up after a failed enrollment.
func (s *Store) Remove(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

// DecodeDataURL decodes a data:image/...;base64 payload with strict
// base64 validation.
func DecodeDataURL(dataURL string) ([]byte, error) {
	header, encoded, found := strings.Cut(dataURL, ",")
	if !found || !strings.HasPrefix(header, "data:image/") {
		return nil, fmt.Errorf("%w: not an image data URL", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	return data, nil
}

// AllowedExtension reports whether an uploaded filename has a supported
// image extension.
func AllowedExtension(filename string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "png", "jpg", "jpeg", "webp":
		return true
	}
	return false
}
