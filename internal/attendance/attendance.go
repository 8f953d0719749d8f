package attendance

import (
	"errors"
	"time"
)

// Status of an attendance record.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

var (
	// ErrConflict signals a precondition on unique state was violated,
	// e.g. starting a session while another one is active.
	ErrConflict = errors.New("conflicting state")
	// ErrInvalidState signals the operation requires a different lifecycle
	// state, e.g. stopping a session that is not active.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound signals a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Session is a bounded attendance-taking period owned by a professor.
type Session struct {
	ID          int64      `json:"id"`
	ProfessorID int64      `json:"professor_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// Record is a per-session, per-student attendance entry. Records are
// append-only: once written for a (session, student) pair they are never
// updated or deleted.
type Record struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	StudentID int64     `json:"student_id"`
	Status    Status    `json:"status"`
	MarkedAt  time.Time `json:"marked_at"`
}

// MarkResult reports whether MarkPresent inserted a new record or found
// an existing one.
type MarkResult struct {
	Created bool   `json:"created"`
	Record  Record `json:"record"`
}

// RecordView is a ledger row joined with the student's display name,
// as shown on dashboards.
type RecordView struct {
	Student  string    `json:"student"`
	Status   Status    `json:"status"`
	MarkedAt time.Time `json:"marked_at"`
}

// StudentRecord is a student's own record with the session window attached.
type StudentRecord struct {
	Status    Status     `json:"status"`
	MarkedAt  time.Time  `json:"marked_at"`
	StartTime time.Time  `json:"session_start"`
	EndTime   *time.Time `json:"session_end,omitempty"`
}

// Counts summarizes a session's ledger.
type Counts struct {
	Present int64 `json:"present"`
	Absent  int64 `json:"absent"`
}
