package identity

import (
	"context"
	"fmt"
	"strings"

	"rollcall/internal/auth"
)

// Store is the persistence surface the service drives. *Repository is the
// Postgres implementation.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	AddEnrollmentImages(ctx context.Context, userID int64, paths []string) error
	DeleteUser(ctx context.Context, id int64) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
}

// CaptureStore persists enrollment captures on disk under the filename
// scheme the recognizer traces matches back through.
type CaptureStore interface {
	SaveDataURL(studentID int64, seq int, dataURL string) (string, error)
	Remove(paths ...string)
}

// RegisterInput is a registration request. Captures carry base64 data URLs
// straight from the enrollment camera; only students supply them.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      Role
	Captures  []string
}

// Service owns user registration and credential checks.
type Service struct {
	store    Store
	captures CaptureStore
}

// NewService creates a service backed by a store and a capture store.
func NewService(store Store, captures CaptureStore) *Service {
	return &Service{store: store, captures: captures}
}

// Register creates a user. Students must provide at least MinCaptures
// valid captures; their images are saved to disk and recorded as
// enrollment rows. A capture failure after the user insert rolls the user
// back (cascade removes any recorded images) and deletes saved files.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		return User{}, fmt.Errorf("%w: all fields are required", ErrInvalidInput)
	}
	if in.Role != RoleProfessor && in.Role != RoleStudent {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	var captures []string
	if in.Role == RoleStudent {
		for _, c := range in.Captures {
			if strings.TrimSpace(c) != "" {
				captures = append(captures, c)
			}
		}
		if len(captures) < MinCaptures {
			return User{}, fmt.Errorf("%w: at least %d captures required", ErrInvalidInput, MinCaptures)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	user, err := s.store.CreateUser(ctx, User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		return User{}, err
	}

	if in.Role == RoleStudent {
		var paths []string
		for i, c := range captures {
			path, err := s.captures.SaveDataURL(user.ID, i+1, c)
			if err != nil {
				s.rollback(ctx, user.ID, paths)
				return User{}, fmt.Errorf("%w: capture %d: %v", ErrInvalidInput, i+1, err)
			}
			paths = append(paths, path)
		}
		if err := s.store.AddEnrollmentImages(ctx, user.ID, paths); err != nil {
			s.rollback(ctx, user.ID, paths)
			return User{}, err
		}
	}

	return user, nil
}

func (s *Service) rollback(ctx context.Context, userID int64, paths []string) {
	_ = s.store.DeleteUser(ctx, userID)
	s.captures.Remove(paths...)
}

// Authenticate verifies credentials. Returns nil without error on unknown
// email or wrong password; plaintext is never stored or logged.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil
	}
	return user, nil
}

// UserByID looks up a user, or returns nil when absent.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.store.UserByID(ctx, id)
}
