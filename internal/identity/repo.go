package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollcall/internal/store"
)

// Repository persists users and enrollment images in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new user. Returns ErrEmailExists when the email is
// taken; the unique constraint is the arbiter, not a prior lookup.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if store.IsUniqueViolation(err, "") {
			return User{}, fmt.Errorf("%w: %s", ErrEmailExists, u.Email)
		}
		return User{}, err
	}
	return u, nil
}

// AddEnrollmentImages records saved capture files for a student.
func (r *Repository) AddEnrollmentImages(ctx context.Context, userID int64, paths []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, path := range paths {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO enrollment_images (user_id, image_path)
			VALUES ($1, $2)
		`, userID, path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteUser removes a user; enrollment images cascade.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// UserByEmail returns a user by email, or nil when absent.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, role, created_at
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

// UserByID returns a user by id, or nil when absent.
func (r *Repository) UserByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, role, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// EnrollmentCount returns how many captures a student has on file.
func (r *Repository) EnrollmentCount(ctx context.Context, userID int64) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollment_images WHERE user_id = $1
	`, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
