package store

import "database/sql"

// Migrate applies the canonical schema. Statements are idempotent so the
// service can run it unconditionally at startup.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('professor', 'student')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS enrollment_images (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		image_path TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_enrollment_images_user ON enrollment_images(user_id);

	CREATE TABLE IF NOT EXISTS class_sessions (
		id           BIGSERIAL PRIMARY KEY,
		professor_id BIGINT NOT NULL REFERENCES users(id),
		start_time   TIMESTAMPTZ NOT NULL,
		end_time     TIMESTAMPTZ,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	);

	-- At most one active session system-wide; the partial unique index is
	-- the source of truth, not application state.
	CREATE UNIQUE INDEX IF NOT EXISTS class_sessions_one_active
		ON class_sessions (is_active) WHERE is_active;

	CREATE TABLE IF NOT EXISTS attendance_records (
		id         BIGSERIAL PRIMARY KEY,
		session_id BIGINT NOT NULL REFERENCES class_sessions(id) ON DELETE CASCADE,
		student_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status     TEXT NOT NULL CHECK (status IN ('present', 'absent')),
		marked_at  TIMESTAMPTZ NOT NULL,
		CONSTRAINT attendance_records_session_student_key UNIQUE (session_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_records_student ON attendance_records(student_id);
	`
	_, err := db.Exec(schema)
	return err
}
