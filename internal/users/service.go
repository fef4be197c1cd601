package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// RoleChecker validates role references before assignment.
type RoleChecker interface {
	RoleExists(ctx context.Context, roleID int64) error
}

// Service wraps user management rules.
type Service struct {
	repo  Repository
	roles RoleChecker
}

// NewService constructs a Service.
func NewService(repo Repository, roles RoleChecker) *Service {
	return &Service{repo: repo, roles: roles}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser registers a new user with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return User{}, fmt.Errorf("%w: email required", shared.ErrInvalidInput)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, email, strings.TrimSpace(name), string(hashed))
}

// AssignRole sets the user's primary role. A nil roleID clears the
// assignment.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleID *int64) error {
	if roleID != nil && s.roles != nil {
		if err := s.roles.RoleExists(ctx, *roleID); err != nil {
			return err
		}
	}
	return s.repo.AssignRole(ctx, userID, roleID)
}
