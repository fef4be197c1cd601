package rbac

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/gatewarden/gatewarden/internal/roles"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
)

// UserSource resolves users by ID.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// RoleSource resolves roles by ID.
type RoleSource interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// Engine answers permission queries over externally stored role data. All
// operations are read-only projections.
type Engine struct {
	users UserSource
	roles RoleSource
	cache *Cache
	group singleflight.Group
}

// NewEngine constructs an Engine. The cache is optional.
func NewEngine(userSource UserSource, roleSource RoleSource, cache *Cache) *Engine {
	return &Engine{users: userSource, roles: roleSource, cache: cache}
}

// ResolvePermissions returns the user's effective permission set, the union
// over the roles the user holds. It fails with a not-found error when the
// user or its role cannot be resolved.
func (e *Engine) ResolvePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	if e.cache != nil {
		if perms, ok, err := e.cache.Get(ctx, userID); err == nil && ok {
			return NewPermissionSet(perms), nil
		}
	}

	v, err, _ := e.group.Do(fmt.Sprintf("perms:%d", userID), func() (any, error) {
		return e.loadPermissions(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	perms := v.([]string)

	if e.cache != nil {
		// Cache failures never fail the resolution.
		_ = e.cache.Set(ctx, userID, perms)
	}
	return NewPermissionSet(perms), nil
}

func (e *Engine) loadPermissions(ctx context.Context, userID int64) ([]string, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RoleID == nil {
		return nil, fmt.Errorf("%w: user %d has no role", shared.ErrNotFound, userID)
	}
	role, err := e.roles.GetRole(ctx, *user.RoleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

// RoleName returns the name of the user's role.
func (e *Engine) RoleName(ctx context.Context, userID int64) (string, error) {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.RoleID == nil {
		return "", fmt.Errorf("%w: user %d has no role", shared.ErrNotFound, userID)
	}
	role, err := e.roles.GetRole(ctx, *user.RoleID)
	if err != nil {
		return "", err
	}
	return role.Name, nil
}

// Check reports whether the user's effective set contains the permission.
func (e *Engine) Check(ctx context.Context, userID int64, permission string) (bool, error) {
	set, err := e.ResolvePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Contains(permission), nil
}

// CheckWithStrategy evaluates a list of permissions under ALL or ANY.
func (e *Engine) CheckWithStrategy(ctx context.Context, userID int64, permissions []string, strategy Strategy) (bool, error) {
	if strategy != StrategyAll && strategy != StrategyAny {
		return false, fmt.Errorf("%w: unknown strategy %q", shared.ErrInvalidInput, strategy)
	}
	set, err := e.ResolvePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Satisfies(permissions, strategy), nil
}

// CheckAll reports whether every permission is granted.
func (e *Engine) CheckAll(ctx context.Context, userID int64, permissions ...string) (bool, error) {
	return e.CheckWithStrategy(ctx, userID, permissions, StrategyAll)
}

// CheckAny reports whether at least one permission is granted.
func (e *Engine) CheckAny(ctx context.Context, userID int64, permissions ...string) (bool, error) {
	return e.CheckWithStrategy(ctx, userID, permissions, StrategyAny)
}

// InvalidateUser drops the cached resolution for one user.
func (e *Engine) InvalidateUser(ctx context.Context, userID int64) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Invalidate(ctx, userID)
}

// InvalidateAll drops every cached resolution. Used after role mutations that
// may affect an unknown number of users.
func (e *Engine) InvalidateAll(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Flush(ctx)
}
