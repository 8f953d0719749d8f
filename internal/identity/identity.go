package identity

import (
	"errors"
	"time"
)

// Role of a user.
type Role string

const (
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

// MinCaptures is the number of enrollment captures a student must provide
// before recognition against them is meaningful.
const MinCaptures = 5

var (
	// ErrEmailExists signals the email is already registered.
	ErrEmailExists = errors.New("email already registered")
	// ErrNotFound signals the user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidInput signals a registration payload that fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// User is a registered professor or student. Immutable once created.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the name shown on dashboards.
func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// EnrollmentImage is a reference photo owned by a student, used as ground
// truth for recognition matching. Rows are deleted with their owner.
type EnrollmentImage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}
