package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/store"
)

// Repository persists sessions and attendance records in Postgres. The
// database constraints carry the invariants: the partial unique index on
// class_sessions(is_active) admits one active session, and the unique
// (session_id, student_id) pair makes marks idempotent under races.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertActiveSession creates a new active session. Returns ErrConflict
// when another session is already active; the check and the insert are a
// single atomic step via the partial unique index.
func (r *Repository) InsertActiveSession(ctx context.Context, professorID int64, start time.Time) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO class_sessions (professor_id, start_time, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id
	`, professorID, start)
	s := Session{ProfessorID: professorID, StartTime: start, IsActive: true}
	if err := row.Scan(&s.ID); err != nil {
		if store.IsUniqueViolation(err, "class_sessions_one_active") {
			return Session{}, fmt.Errorf("%w: a session is already active", ErrConflict)
		}
		if store.IsForeignKeyViolation(err) {
			return Session{}, fmt.Errorf("%w: professor %d", ErrNotFound, professorID)
		}
		return Session{}, err
	}
	return s, nil
}

// CloseSession closes an active session and backfills absences in one
// transaction. The update runs first so the session row is locked and
// concurrent stops serialize; backfill tolerates marks racing the close
// through ON CONFLICT DO NOTHING. Returns the number of absences written,
// or ErrInvalidState when the session is not currently active.
func (r *Repository) CloseSession(ctx context.Context, sessionID int64, end time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE class_sessions
		SET is_active = FALSE, end_time = $2
		WHERE id = $1 AND is_active
	`, sessionID, end)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: session %d is not active", ErrInvalidState, sessionID)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO attendance_records (session_id, student_id, status, marked_at)
		SELECT $1, u.id, 'absent', $2
		FROM users u
		WHERE u.role = 'student'
		  AND NOT EXISTS (
			SELECT 1 FROM attendance_records ar
			WHERE ar.session_id = $1 AND ar.student_id = u.id
		  )
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, sessionID, end)
	if err != nil {
		return 0, err
	}
	backfilled, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return backfilled, tx.Commit()
}

// ActiveSession returns the unique active session, or nil when none exists.
func (r *Repository) ActiveSession(ctx context.Context) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, professor_id, start_time, end_time, is_active
		FROM class_sessions
		WHERE is_active
	`)
	var s Session
	if err := row.Scan(&s.ID, &s.ProfessorID, &s.StartTime, &s.EndTime, &s.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// StudentExists reports whether id references a user with the student role.
func (r *Repository) StudentExists(ctx context.Context, id int64) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM users WHERE id = $1 AND role = 'student'
	`, id)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertPresent writes a present record for the pair, or returns the
// existing record when one is already there. ON CONFLICT DO NOTHING makes
// concurrent duplicate recognitions of the same student collapse to a
// single row without surfacing a constraint error.
func (r *Repository) InsertPresent(ctx context.Context, sessionID, studentID int64, at time.Time) (MarkResult, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (session_id, student_id, status, marked_at)
		VALUES ($1, $2, 'present', $3)
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING id, status, marked_at
	`, sessionID, studentID, at)

	rec := Record{SessionID: sessionID, StudentID: studentID}
	err := row.Scan(&rec.ID, &rec.Status, &rec.MarkedAt)
	if err == nil {
		return MarkResult{Created: true, Record: rec}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if store.IsForeignKeyViolation(err) {
			return MarkResult{}, fmt.Errorf("%w: session %d or student %d", ErrNotFound, sessionID, studentID)
		}
		return MarkResult{}, err
	}

	// Conflict path: the row already exists, fetch it.
	row = r.db.QueryRowContext(ctx, `
		SELECT id, status, marked_at
		FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	if err := row.Scan(&rec.ID, &rec.Status, &rec.MarkedAt); err != nil {
		return MarkResult{}, err
	}
	return MarkResult{Created: false, Record: rec}, nil
}

// RecordsBySession returns the session's ledger joined with student names,
// newest first.
func (r *Repository) RecordsBySession(ctx context.Context, sessionID int64) ([]RecordView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.first_name || ' ' || u.last_name, ar.status, ar.marked_at
		FROM attendance_records ar
		JOIN users u ON u.id = ar.student_id
		WHERE ar.session_id = $1
		ORDER BY ar.marked_at DESC, ar.id DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []RecordView
	for rows.Next() {
		var v RecordView
		if err := rows.Scan(&v.Student, &v.Status, &v.MarkedAt); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// LatestForStudent returns the student's most recent record with the
// owning session's window, or nil when the student has no records.
func (r *Repository) LatestForStudent(ctx context.Context, studentID int64) (*StudentRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT ar.status, ar.marked_at, s.start_time, s.end_time
		FROM attendance_records ar
		JOIN class_sessions s ON s.id = ar.session_id
		WHERE ar.student_id = $1
		ORDER BY ar.id DESC
		LIMIT 1
	`, studentID)
	var rec StudentRecord
	if err := row.Scan(&rec.Status, &rec.MarkedAt, &rec.StartTime, &rec.EndTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// SessionCounts tallies the session's ledger by status.
func (r *Repository) SessionCounts(ctx context.Context, sessionID int64) (Counts, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'present'),
			COUNT(*) FILTER (WHERE status = 'absent')
		FROM attendance_records
		WHERE session_id = $1
	`, sessionID)
	var c Counts
	if err := row.Scan(&c.Present, &c.Absent); err != nil {
		return Counts{}, err
	}
	return c, nil
}
