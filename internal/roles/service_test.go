package roles

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/shared"
	_ "github.com/gatewarden/gatewarden/testing"
)

type memoryRepo struct {
	nextID int64
	byID   map[int64]Role
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]Role)}
}

func (m *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.byID[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	return r, nil
}

func (m *memoryRepo) GetRoleByName(ctx context.Context, name string) (Role, error) {
	for _, r := range m.byID {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("%w: role %q", shared.ErrNotFound, name)
}

func (m *memoryRepo) CreateRole(ctx context.Context, name, description string, permissions []string) (Role, error) {
	for _, r := range m.byID {
		if r.Name == name {
			return Role{}, fmt.Errorf("%w: role name already taken", shared.ErrConflict)
		}
	}
	m.nextID++
	role := Role{ID: m.nextID, Name: name, Description: description, Permissions: permissions}
	m.byID[role.ID] = role
	return role, nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	r, ok := m.byID[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", shared.ErrNotFound, id)
	}
	r.Name = name
	r.Description = description
	m.byID[id] = r
	return r, nil
}

func (m *memoryRepo) SetPermissions(ctx context.Context, roleID int64, permissions []string) error {
	r, ok := m.byID[roleID]
	if !ok {
		return fmt.Errorf("%w: role %d", shared.ErrNotFound, roleID)
	}
	r.Permissions = permissions
	m.byID[roleID] = r
	return nil
}

func TestCreateRoleNormalizesPermissions(t *testing.T) {
	svc := NewService(newMemoryRepo())

	role, err := svc.CreateRole(context.Background(), "  editor ", " Can edit things ", []string{
		"users.edit", "users.view", "users.edit", "  users.view  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "editor", role.Name)
	assert.Equal(t, "Can edit things", role.Description)
	assert.Equal(t, []string{"users.edit", "users.view"}, role.Permissions)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "   ", "", nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.CreateRole(ctx, "editor", "", []string{"users.view", "  "})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestCreateRoleDuplicateName(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin", "", nil)
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, "admin", "second", nil)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdatePermissionsReplacesSet(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "ops", "", []string{"keys.view"})
	require.NoError(t, err)

	updated, err := svc.UpdatePermissions(ctx, role.ID, []string{"keys.revoke", "keys.issue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keys.issue", "keys.revoke"}, updated.Permissions)
	assert.False(t, updated.HasPermission("keys.view"))
}

func TestUpdatePermissionsUnknownRole(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.UpdatePermissions(context.Background(), 404, []string{"keys.view"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRoleExists(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "viewer", "", nil)
	require.NoError(t, err)

	assert.NoError(t, svc.RoleExists(ctx, role.ID))
	assert.ErrorIs(t, svc.RoleExists(ctx, role.ID+1), shared.ErrNotFound)
}
