package accesskey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gatewarden/gatewarden/internal/keygen"
	"github.com/gatewarden/gatewarden/internal/shared"
	"github.com/gatewarden/gatewarden/internal/users"
)

// UserSource resolves key owners.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Service manages the access key lifecycle: issuance, verification, and
// deactivation. Keys are never rotated in place; callers issue a new pair.
type Service struct {
	repo              Repository
	users             UserSource
	clock             keygen.Clock
	defaultMaxAgeDays int
}

// NewService constructs a Service. A nil clock selects the system clock; a
// non-positive defaultMaxAgeDays selects DefaultMaxAgeDays.
func NewService(repo Repository, userSource UserSource, clock keygen.Clock, defaultMaxAgeDays int) *Service {
	if clock == nil {
		clock = keygen.SystemClock
	}
	if defaultMaxAgeDays <= 0 {
		defaultMaxAgeDays = DefaultMaxAgeDays
	}
	return &Service{repo: repo, users: userSource, clock: clock, defaultMaxAgeDays: defaultMaxAgeDays}
}

// Issue generates a new credential pair for the user and stores the secret's
// digest. The plaintext secret is returned exactly once and is not
// retrievable afterwards.
func (s *Service) Issue(ctx context.Context, ownerID int64, opts IssueOptions) (Credential, error) {
	if opts.MaxAgeDays < 0 {
		return Credential{}, fmt.Errorf("%w: max age days must not be negative", shared.ErrInvalidInput)
	}
	maxAge := opts.MaxAgeDays
	if maxAge == 0 {
		maxAge = s.defaultMaxAgeDays
	}

	if _, err := s.users.GetUser(ctx, ownerID); err != nil {
		return Credential{}, err
	}

	keyID, err := keygen.Generate(AccessKeyLength, AccessKeyPrefix)
	if err != nil {
		return Credential{}, err
	}
	secret, err := keygen.Generate(SecretKeyLength, SecretKeyPrefix)
	if err != nil {
		return Credential{}, err
	}

	key := AccessKey{
		ID:           keyID,
		SecretDigest: digest(secret),
		OwnerID:      ownerID,
		CreatedAt:    s.clock.Now().UTC(),
		MaxAgeDays:   maxAge,
		Active:       true,
	}
	if err := s.repo.Insert(ctx, key); err != nil {
		return Credential{}, err
	}
	return Credential{AccessKeyID: keyID, SecretKey: secret}, nil
}

// Authenticate verifies a credential pair and returns the owning user. Every
// rejection path reports the same unauthorized error so callers cannot probe
// which part of the credential failed.
func (s *Service) Authenticate(ctx context.Context, accessKeyID, secret string) (users.User, error) {
	key, err := s.repo.FindByID(ctx, accessKeyID)
	if err != nil {
		if isNotFound(err) {
			return users.User{}, fmt.Errorf("%w: unknown access key", shared.ErrUnauthorized)
		}
		return users.User{}, err
	}
	if !key.Active {
		return users.User{}, fmt.Errorf("%w: access key deactivated", shared.ErrUnauthorized)
	}
	if keygen.IsExpired(s.clock, key.CreatedAt, key.MaxAgeDays) {
		return users.User{}, fmt.Errorf("%w: access key expired", shared.ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(digest(secret)), []byte(key.SecretDigest)) != 1 {
		return users.User{}, fmt.Errorf("%w: secret mismatch", shared.ErrUnauthorized)
	}

	user, err := s.users.GetUser(ctx, key.OwnerID)
	if err != nil {
		if isNotFound(err) {
			return users.User{}, fmt.Errorf("%w: key owner missing", shared.ErrUnauthorized)
		}
		return users.User{}, err
	}
	if !user.IsActive {
		return users.User{}, fmt.Errorf("%w: key owner inactive", shared.ErrUnauthorized)
	}
	return user, nil
}

// Deactivate flips a key inactive without an ownership check. Administrative
// path; idempotent.
func (s *Service) Deactivate(ctx context.Context, accessKeyID string) error {
	if _, err := s.repo.FindByID(ctx, accessKeyID); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, accessKeyID, false)
}

// DeactivateOwned flips a key inactive after verifying it belongs to the
// requesting user.
func (s *Service) DeactivateOwned(ctx context.Context, accessKeyID string, requestingUserID int64) error {
	key, err := s.repo.FindByID(ctx, accessKeyID)
	if err != nil {
		return err
	}
	if key.OwnerID != requestingUserID {
		return fmt.Errorf("%w: access key belongs to another user", shared.ErrForbidden)
	}
	return s.repo.SetActive(ctx, accessKeyID, false)
}

// DeactivateAll flips every active key owned by the user and returns the
// number affected. Idempotent: a second call returns zero.
func (s *Service) DeactivateAll(ctx context.Context, ownerID int64) (int64, error) {
	return s.repo.DeactivateByOwner(ctx, ownerID)
}

// ListByOwner returns the user's keys. Digests stay internal; the JSON shape
// of AccessKey never includes them.
func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]AccessKey, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
