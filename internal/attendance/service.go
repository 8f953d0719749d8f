package attendance

import (
	"context"
	"fmt"
	"time"
)

// Store is the persistence surface the service drives. *Repository is the
// Postgres implementation.
type Store interface {
	InsertActiveSession(ctx context.Context, professorID int64, start time.Time) (Session, error)
	CloseSession(ctx context.Context, sessionID int64, end time.Time) (int64, error)
	ActiveSession(ctx context.Context) (*Session, error)
	StudentExists(ctx context.Context, id int64) (bool, error)
	InsertPresent(ctx context.Context, sessionID, studentID int64, at time.Time) (MarkResult, error)
	RecordsBySession(ctx context.Context, sessionID int64) ([]RecordView, error)
	LatestForStudent(ctx context.Context, studentID int64) (*StudentRecord, error)
	SessionCounts(ctx context.Context, sessionID int64) (Counts, error)
}

// Service owns the session lifecycle and the attendance ledger.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// StartSession opens a new attendance session for a professor. Fails with
// ErrConflict when any session is currently active.
func (s *Service) StartSession(ctx context.Context, professorID int64) (Session, error) {
	if professorID <= 0 {
		return Session{}, fmt.Errorf("%w: professor id required", ErrNotFound)
	}
	return s.store.InsertActiveSession(ctx, professorID, time.Now().UTC())
}

// StopSession closes the session and backfills an absent record for every
// student without a mark. Backfill and close commit as one unit; no reader
// observes a closed session with absences still missing. Returns the
// number of absences written.
func (s *Service) StopSession(ctx context.Context, sessionID int64) (int64, error) {
	return s.store.CloseSession(ctx, sessionID, time.Now().UTC())
}

// ActiveSession returns the unique active session, or nil.
func (s *Service) ActiveSession(ctx context.Context) (*Session, error) {
	return s.store.ActiveSession(ctx)
}

// MarkPresent records presence for a student in the given session. The
// session must be the currently active one and the student must exist.
// Repeated marks for the same pair return the existing record with
// Created=false rather than an error.
func (s *Service) MarkPresent(ctx context.Context, sessionID, studentID int64) (MarkResult, error) {
	active, err := s.store.ActiveSession(ctx)
	if err != nil {
		return MarkResult{}, err
	}
	if active == nil || active.ID != sessionID {
		return MarkResult{}, fmt.Errorf("%w: session %d is not active", ErrInvalidState, sessionID)
	}

	ok, err := s.store.StudentExists(ctx, studentID)
	if err != nil {
		return MarkResult{}, err
	}
	if !ok {
		return MarkResult{}, fmt.Errorf("%w: student %d", ErrNotFound, studentID)
	}

	return s.store.InsertPresent(ctx, sessionID, studentID, time.Now().UTC())
}

// Records returns the session ledger for dashboards, newest first.
func (s *Service) Records(ctx context.Context, sessionID int64) ([]RecordView, error) {
	return s.store.RecordsBySession(ctx, sessionID)
}

// LatestForStudent returns a student's most recent record, or nil.
func (s *Service) LatestForStudent(ctx context.Context, studentID int64) (*StudentRecord, error) {
	return s.store.LatestForStudent(ctx, studentID)
}

// CountsFor tallies a session's ledger by status.
func (s *Service) CountsFor(ctx context.Context, sessionID int64) (Counts, error) {
	return s.store.SessionCounts(ctx, sessionID)
}
