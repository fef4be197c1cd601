package authz

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
	_ "github.com/gatewarden/gatewarden/testing"
)

type stubAuthenticator struct {
	keyID  string
	secret string
	user   users.User
}

func (s *stubAuthenticator) Authenticate(ctx context.Context, accessKeyID, secret string) (users.User, error) {
	if accessKeyID == s.keyID && secret == s.secret {
		return s.user, nil
	}
	return users.User{}, fmt.Errorf("%w: secret mismatch", shared.ErrUnauthorized)
}

type stubEngine struct {
	perms map[int64][]string
	roles map[int64]string
}

func (s *stubEngine) ResolvePermissions(ctx context.Context, userID int64) (rbac.PermissionSet, error) {
	perms, ok := s.perms[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return rbac.NewPermissionSet(perms), nil
}

func (s *stubEngine) RoleName(ctx context.Context, userID int64) (string, error) {
	name, ok := s.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return name, nil
}

type stubUsers struct {
	users map[int64]users.User
}

func (s *stubUsers) GetUser(ctx context.Context, id int64) (users.User, error) {
	user, ok := s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return user, nil
}

func newTestDecider() *Decider {
	admin := users.User{ID: 1, Email: "admin@test.local", IsActive: true}
	keys := &stubAuthenticator{keyID: "AK_valid", secret: "SK_valid", user: admin}
	engine := &stubEngine{
		perms: map[int64][]string{
			1: {"user.create", "user.delete"},
			2: {},
		},
		roles: map[int64]string{1: "admin", 2: "viewer"},
	}
	userSource := &stubUsers{users: map[int64]users.User{
		1: admin,
		2: {ID: 2, Email: "viewer@test.local", IsActive: true},
		3: {ID: 3, Email: "inactive@test.local", IsActive: false},
	}}
	return NewDecider(keys, engine, userSource)
}

func TestDecideRequiredNoCredentials(t *testing.T) {
	decider := newTestDecider()

	_, err := decider.Decide(context.Background(), Credentials{},
		Requirement{Permissions: []string{"user.create"}}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestDecideOptionalAnonymous(t *testing.T) {
	decider := newTestDecider()

	decision, err := decider.Decide(context.Background(), Credentials{},
		Requirement{Permissions: []string{"user.create"}}, ModeOptional)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Identity.Anonymous)
}

func TestDecideOptionalBadCredentialIsAnonymous(t *testing.T) {
	decider := newTestDecider()

	decision, err := decider.Decide(context.Background(),
		Credentials{AccessKeyID: "AK_valid", SecretKey: "SK_wrong"},
		Requirement{Permissions: []string{"user.create"}}, ModeOptional)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Identity.Anonymous)
}

func TestDecideOptionalResolvedIdentityStillDenied(t *testing.T) {
	decider := newTestDecider()

	_, err := decider.Decide(context.Background(), Credentials{SessionUserID: 2},
		Requirement{Permissions: []string{"user.create"}}, ModeOptional)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden),
		"an established identity lacking permissions denies even in optional mode")
}

func TestDecideAccessKeyPath(t *testing.T) {
	decider := newTestDecider()

	decision, err := decider.Decide(context.Background(),
		Credentials{AccessKeyID: "AK_valid", SecretKey: "SK_valid"},
		Requirement{Permissions: []string{"user.create"}}, ModeRequired)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Identity.UserID)
	assert.True(t, decision.Identity.Permissions.Contains("user.delete"))
}

func TestDecideAccessKeyInvalid(t *testing.T) {
	decider := newTestDecider()

	_, err := decider.Decide(context.Background(),
		Credentials{AccessKeyID: "AK_valid", SecretKey: "SK_wrong"},
		Requirement{Permissions: []string{"user.create"}}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestDecideSessionPath(t *testing.T) {
	decider := newTestDecider()

	decision, err := decider.Decide(context.Background(), Credentials{SessionUserID: 1},
		Requirement{Permissions: []string{"user.create", "user.read"}, Strategy: rbac.StrategyAny}, ModeRequired)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	_, err = decider.Decide(context.Background(), Credentials{SessionUserID: 1},
		Requirement{Permissions: []string{"user.create", "user.read"}, Strategy: rbac.StrategyAll}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestDecideSessionUserInactive(t *testing.T) {
	decider := newTestDecider()

	_, err := decider.Decide(context.Background(), Credentials{SessionUserID: 3},
		Requirement{Permissions: []string{"user.create"}}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestDecideForbiddenIsNotUnauthorized(t *testing.T) {
	decider := newTestDecider()

	_, err := decider.Decide(context.Background(), Credentials{SessionUserID: 2},
		Requirement{Permissions: []string{"user.create"}}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.False(t, errors.Is(err, shared.ErrUnauthorized),
		"callers must be able to tell the denials apart")
}

func TestDecideRoleRequirement(t *testing.T) {
	decider := newTestDecider()

	decision, err := decider.Decide(context.Background(), Credentials{SessionUserID: 1},
		Requirement{Role: "admin"}, ModeRequired)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "admin", decision.Identity.RoleName)

	_, err = decider.Decide(context.Background(), Credentials{SessionUserID: 2},
		Requirement{Role: "admin"}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestDecideEmptyRequirement(t *testing.T) {
	decider := newTestDecider()

	decision, err := decider.Decide(context.Background(), Credentials{SessionUserID: 2},
		Requirement{}, ModeRequired)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "authentication-only requirement admits any valid identity")

	_, err = decider.Decide(context.Background(), Credentials{SessionUserID: 2},
		Requirement{Strategy: rbac.StrategyAny}, ModeRequired)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden), "ANY over an empty list fails closed")
}
