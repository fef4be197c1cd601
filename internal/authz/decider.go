// Package authz computes allow/deny verdicts for incoming requests. It is
// the entry point consumed by HTTP glue: identity is resolved from either a
// session user or an access-key credential pair, then the permission
// requirement is evaluated against the user's effective set.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
)

// Mode controls how identity-resolution failures are treated.
type Mode int

const (
	// ModeRequired denies with an unauthorized error when no identity can
	// be established.
	ModeRequired Mode = iota
	// ModeOptional proceeds as anonymous when credentials are missing or
	// invalid. Permission failures for an established identity still deny.
	ModeOptional
)

// Credentials carries the caller-supplied identity material. Access key
// credentials take precedence over a session user when both are present.
type Credentials struct {
	SessionUserID int64
	AccessKeyID   string
	SecretKey     string
}

func (c Credentials) hasAccessKey() bool {
	return c.AccessKeyID != "" || c.SecretKey != ""
}

func (c Credentials) empty() bool {
	return !c.hasAccessKey() && c.SessionUserID == 0
}

// Requirement describes what the caller must hold. Role, when set, is
// compared against the resolved user's role name instead of permissions.
type Requirement struct {
	Permissions []string
	Strategy    rbac.Strategy
	Role        string
}

// Identity is the resolved caller attached to allowed requests.
type Identity struct {
	UserID      int64
	Email       string
	RoleName    string
	Permissions rbac.PermissionSet
	Anonymous   bool
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Identity Identity
	Allowed  bool
}

// Authenticator verifies access-key credential pairs.
type Authenticator interface {
	Authenticate(ctx context.Context, accessKeyID, secret string) (users.User, error)
}

// PermissionSource answers permission and role queries for a user.
type PermissionSource interface {
	ResolvePermissions(ctx context.Context, userID int64) (rbac.PermissionSet, error)
	RoleName(ctx context.Context, userID int64) (string, error)
}

// UserSource resolves session users.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Decider resolves identities and evaluates requirements.
type Decider struct {
	keys   Authenticator
	engine PermissionSource
	users  UserSource
}

// NewDecider constructs a Decider.
func NewDecider(keys Authenticator, engine PermissionSource, userSource UserSource) *Decider {
	return &Decider{keys: keys, engine: engine, users: userSource}
}

// Decide runs the full flow: identity resolution, then requirement
// evaluation. The returned error is unauthorized when no identity could be
// established in required mode, and forbidden when an established identity
// lacks the requirement; callers can tell the two apart with errors.Is.
func (d *Decider) Decide(ctx context.Context, creds Credentials, req Requirement, mode Mode) (Decision, error) {
	identity, err := d.resolveIdentity(ctx, creds)
	if err != nil {
		if mode == ModeOptional && errors.Is(err, shared.ErrUnauthorized) {
			// Anonymous continuation: the request proceeds without an
			// identity and without enforcing the requirement.
			return Decision{Identity: Identity{Anonymous: true}, Allowed: true}, nil
		}
		return Decision{}, err
	}

	allowed, err := d.evaluate(ctx, &identity, req)
	if err != nil {
		return Decision{Identity: identity}, err
	}
	if !allowed {
		return Decision{Identity: identity}, fmt.Errorf("%w: insufficient permissions", shared.ErrForbidden)
	}
	return Decision{Identity: identity, Allowed: true}, nil
}

func (d *Decider) resolveIdentity(ctx context.Context, creds Credentials) (Identity, error) {
	if creds.empty() {
		return Identity{}, fmt.Errorf("%w: no credentials supplied", shared.ErrUnauthorized)
	}

	var user users.User
	var err error
	if creds.hasAccessKey() {
		user, err = d.keys.Authenticate(ctx, creds.AccessKeyID, creds.SecretKey)
		if err != nil {
			return Identity{}, err
		}
	} else {
		user, err = d.users.GetUser(ctx, creds.SessionUserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Identity{}, fmt.Errorf("%w: session user missing", shared.ErrUnauthorized)
			}
			return Identity{}, err
		}
		if !user.IsActive {
			return Identity{}, fmt.Errorf("%w: session user inactive", shared.ErrUnauthorized)
		}
	}

	return Identity{UserID: user.ID, Email: user.Email}, nil
}

func (d *Decider) evaluate(ctx context.Context, identity *Identity, req Requirement) (bool, error) {
	if req.Role != "" {
		roleName, err := d.engine.RoleName(ctx, identity.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		identity.RoleName = roleName
		return roleName == req.Role, nil
	}

	perms, err := d.engine.ResolvePermissions(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Identity is established; a missing role just means an empty
			// effective set.
			perms = rbac.NewPermissionSet(nil)
		} else {
			return false, err
		}
	}
	identity.Permissions = perms

	strategy := req.Strategy
	if strategy == "" {
		strategy = rbac.StrategyAll
	}
	if strategy != rbac.StrategyAll && strategy != rbac.StrategyAny {
		return false, fmt.Errorf("%w: unknown strategy %q", shared.ErrInvalidInput, strategy)
	}
	if len(req.Permissions) == 0 && strategy == rbac.StrategyAll {
		return true, nil
	}
	return perms.Satisfies(req.Permissions, strategy), nil
}
