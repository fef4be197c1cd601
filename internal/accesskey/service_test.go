package accesskey

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
	_ "github.com/gatewarden/gatewarden/testing"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memoryRepo struct {
	keys map[string]AccessKey
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{keys: make(map[string]AccessKey)}
}

func (r *memoryRepo) Insert(ctx context.Context, key AccessKey) error {
	r.keys[key.ID] = key
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (AccessKey, error) {
	key, ok := r.keys[id]
	if !ok {
		return AccessKey{}, shared.ErrNotFound
	}
	return key, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id string, active bool) error {
	key, ok := r.keys[id]
	if !ok {
		return shared.ErrNotFound
	}
	key.Active = active
	r.keys[id] = key
	return nil
}

func (r *memoryRepo) ListByOwner(ctx context.Context, ownerID int64) ([]AccessKey, error) {
	var list []AccessKey
	for _, key := range r.keys {
		if key.OwnerID == ownerID {
			list = append(list, key)
		}
	}
	return list, nil
}

func (r *memoryRepo) DeactivateByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	for id, key := range r.keys {
		if key.OwnerID == ownerID && key.Active {
			key.Active = false
			r.keys[id] = key
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) DeactivateExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type stubUserSource struct {
	users map[int64]users.User
}

func (s *stubUserSource) GetUser(ctx context.Context, id int64) (users.User, error) {
	user, ok := s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return user, nil
}

func newTestService() (*Service, *memoryRepo, *fakeClock) {
	repo := newMemoryRepo()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	userSource := &stubUserSource{users: map[int64]users.User{
		1: {ID: 1, Email: "owner@test.local", IsActive: true},
		2: {ID: 2, Email: "other@test.local", IsActive: true},
		3: {ID: 3, Email: "disabled@test.local", IsActive: false},
	}}
	return NewService(repo, userSource, clock, 0), repo, clock
}

func TestIssueShapesCredential(t *testing.T) {
	svc, repo, clock := newTestService()

	cred, err := svc.Issue(context.Background(), 1, IssueOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(cred.AccessKeyID, "AK_"))
	assert.True(t, strings.HasPrefix(cred.SecretKey, "SK_"))
	assert.Len(t, cred.AccessKeyID, 3+AccessKeyLength)
	assert.Len(t, cred.SecretKey, 3+SecretKeyLength)

	stored := repo.keys[cred.AccessKeyID]
	assert.Equal(t, int64(1), stored.OwnerID)
	assert.Equal(t, DefaultMaxAgeDays, stored.MaxAgeDays)
	assert.True(t, stored.Active)
	assert.Equal(t, clock.Now(), stored.CreatedAt)
	assert.NotContains(t, stored.SecretDigest, cred.SecretKey, "plaintext secret must not be stored")
}

func TestIssueHonorsConfiguredDefaultMaxAge(t *testing.T) {
	repo := newMemoryRepo()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	userSource := &stubUserSource{users: map[int64]users.User{
		1: {ID: 1, Email: "owner@test.local", IsActive: true},
	}}
	svc := NewService(repo, userSource, clock, 30)
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 1, IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, 30, repo.keys[cred.AccessKeyID].MaxAgeDays)

	// An explicit age still wins over the configured default.
	cred, err = svc.Issue(ctx, 1, IssueOptions{MaxAgeDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, repo.keys[cred.AccessKeyID].MaxAgeDays)

	clock.Advance(31 * 24 * time.Hour)
	_, err = svc.Authenticate(ctx, cred.AccessKeyID, cred.SecretKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestIssueValidatesInput(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Issue(context.Background(), 1, IssueOptions{MaxAgeDays: -1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = svc.Issue(context.Background(), 99, IssueOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestAuthenticateRoundtrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 1, IssueOptions{MaxAgeDays: 90})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, cred.AccessKeyID, cred.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestAuthenticateRejections(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 1, IssueOptions{})
	require.NoError(t, err)

	cases := []struct {
		name   string
		keyID  string
		secret string
	}{
		{"unknown key", "AK_doesnotexist", cred.SecretKey},
		{"wrong secret", cred.AccessKeyID, "SK_wrongsecret"},
		{"empty secret", cred.AccessKeyID, ""},
		{"garbage secret", cred.AccessKeyID, "not-a-secret-at-all"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tc.keyID, tc.secret)
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrUnauthorized))
		})
	}
}

func TestAuthenticateDeactivatedKey(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 1, IssueOptions{})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, cred.AccessKeyID))

	_, err = svc.Authenticate(ctx, cred.AccessKeyID, cred.SecretKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized), "correct secret on a deactivated key still denies")
}

func TestAuthenticateExpiredKey(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 1, IssueOptions{MaxAgeDays: 90})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, cred.AccessKeyID, cred.SecretKey)
	require.NoError(t, err, "fresh key authenticates")

	clock.Advance(91 * 24 * time.Hour)
	_, err = svc.Authenticate(ctx, cred.AccessKeyID, cred.SecretKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestAuthenticateInactiveOwner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 3, IssueOptions{})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, cred.AccessKeyID, cred.SecretKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestDeactivateOwnedChecksOwnership(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	cred, err := svc.Issue(ctx, 1, IssueOptions{})
	require.NoError(t, err)

	err = svc.DeactivateOwned(ctx, cred.AccessKeyID, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.True(t, repo.keys[cred.AccessKeyID].Active, "key stays active after a forbidden attempt")

	require.NoError(t, svc.DeactivateOwned(ctx, cred.AccessKeyID, 1))
	assert.False(t, repo.keys[cred.AccessKeyID].Active)

	// Idempotent for the owner.
	require.NoError(t, svc.DeactivateOwned(ctx, cred.AccessKeyID, 1))
}

func TestDeactivateAll(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(ctx, 1, IssueOptions{})
		require.NoError(t, err)
	}
	_, err := svc.Issue(ctx, 2, IssueOptions{})
	require.NoError(t, err)

	count, err := svc.DeactivateAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = svc.DeactivateAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "repeat call affects nothing")

	keys, err := svc.ListByOwner(ctx, 2)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Active, "other owners' keys are untouched")
}
