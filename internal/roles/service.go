package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// Service orchestrates role management.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// FindRoleByName fetches a role by its unique, case sensitive name.
func (s *Service) FindRoleByName(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidInput)
	}
	return s.repo.GetRoleByName(ctx, name)
}

// CreateRole inserts a new role with the given permission set.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissions []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidInput)
	}
	perms, err := normalizePermissions(permissions)
	if err != nil {
		return Role{}, err
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description), perms)
}

// RoleExists reports via error whether a role ID resolves.
func (s *Service) RoleExists(ctx context.Context, roleID int64) error {
	_, err := s.repo.GetRole(ctx, roleID)
	return err
}

// UpdateRole renames a role. Uniqueness of the new name is enforced by the
// store and surfaces as a conflict error.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidInput)
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// UpdatePermissions replaces the permission set of a role.
func (s *Service) UpdatePermissions(ctx context.Context, id int64, permissions []string) (Role, error) {
	perms, err := normalizePermissions(permissions)
	if err != nil {
		return Role{}, err
	}
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		return Role{}, err
	}
	if err := s.repo.SetPermissions(ctx, id, perms); err != nil {
		return Role{}, err
	}
	return s.repo.GetRole(ctx, id)
}

// normalizePermissions trims, rejects empties, and deduplicates. Order of the
// input is irrelevant; the result is sorted for stable storage and output.
func normalizePermissions(permissions []string) ([]string, error) {
	unique := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: permission strings must be non-empty", shared.ErrInvalidInput)
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	sort.Strings(normalized)
	return normalized, nil
}
