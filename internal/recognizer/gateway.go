// Package recognizer adapts the external face matching capability into
// student identities. Outcomes are tri-state: a resolved student, a clean
// no-match, or ErrRecognition for infrastructure failure — no-match is
// never an error.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/faceclient"
)

// ErrRecognition signals the matching capability itself failed (I/O,
// corrupt image, timeout). The caller may resubmit a new frame; the server
// does not retry.
var ErrRecognition = errors.New("recognition failed")

// Matcher is the slice of the face service the gateway consumes.
type Matcher interface {
	Search(ctx context.Context, image []byte, galleryDir string, topK int) ([]faceclient.Candidate, error)
}

// StudentDirectory confirms a parsed id references an enrolled student.
type StudentDirectory interface {
	StudentExists(ctx context.Context, id int64) (bool, error)
}

// Gateway resolves captured images to student ids.
type Gateway struct {
	matcher       Matcher
	students      StudentDirectory
	galleryDir    string
	minConfidence float64
	timeout       time.Duration
}

// New creates a gateway. timeout bounds each matching call; zero disables
// the bound and leaves it to the caller's context.
func New(matcher Matcher, students StudentDirectory, galleryDir string, minConfidence float64, timeout time.Duration) *Gateway {
	return &Gateway{
		matcher:       matcher,
		students:      students,
		galleryDir:    galleryDir,
		minConfidence: minConfidence,
		timeout:       timeout,
	}
}

// Resolve matches the image against the enrollment gallery and returns the
// student id of the top candidate. ok=false means the image resolved to no
// student: no confident match, a malformed identity filename, or a parsed
// id with no matching student. Only infrastructure failure returns an
// error, wrapped as ErrRecognition.
func (g *Gateway) Resolve(ctx context.Context, image []byte) (int64, bool, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	candidates, err := g.matcher.Search(ctx, image, g.galleryDir, 1)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}

	top := candidates[0]
	if top.Confidence < g.minConfidence {
		return 0, false, nil
	}

	id, ok := ParseEnrollmentFilename(top.Identity)
	if !ok {
		return 0, false, nil
	}

	exists, err := g.students.StudentExists(ctx, id)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, false, nil
	}
	return id, true, nil
}
