package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/distro/internal/pipeline"
	"github.com/odyssey-erp/distro/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. Unknown users, inactive
// users and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || pipeline.ParseRole(string(user.Role)) == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the active user behind a session.
func (s *Service) Profile(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInactiveUser
	}
	return user, nil
}

// ErrEmailTaken indicates an account with the same email exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrUnknownRole rejects accounts with a role outside the operator profiles.
var ErrUnknownRole = errors.New("unknown role")

// Register creates an active account with a hashed password.
func (s *Service) Register(ctx context.Context, email, name, role, password string) (*User, error) {
	parsed := pipeline.ParseRole(role)
	if parsed == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := User{Email: email, Name: name, Role: parsed, PasswordHash: hash, IsActive: true}
	user.ID, err = s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// HashPassword produces the bcrypt hash stored in users.password_hash.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
