package accesskey

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatewarden/gatewarden/internal/shared"
)

// Repository defines persistence operations for access keys.
type Repository interface {
	Insert(ctx context.Context, key AccessKey) error
	FindByID(ctx context.Context, id string) (AccessKey, error)
	SetActive(ctx context.Context, id string, active bool) error
	ListByOwner(ctx context.Context, ownerID int64) ([]AccessKey, error)
	DeactivateByOwner(ctx context.Context, ownerID int64) (int64, error)
	DeactivateExpired(ctx context.Context) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const keyColumns = `id, secret_digest, owner_id, created_at, max_age_days, active`

// Insert stores a newly issued key.
func (r *PGRepository) Insert(ctx context.Context, key AccessKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_keys (id, secret_digest, owner_id, created_at, max_age_days, active)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.SecretDigest, key.OwnerID, key.CreatedAt, key.MaxAgeDays, key.Active)
	return err
}

// FindByID fetches a key by its public identifier.
func (r *PGRepository) FindByID(ctx context.Context, id string) (AccessKey, error) {
	var key AccessKey
	err := r.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM access_keys WHERE id = $1`, id).
		Scan(&key.ID, &key.SecretDigest, &key.OwnerID, &key.CreatedAt, &key.MaxAgeDays, &key.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessKey{}, shared.ErrNotFound
		}
		return AccessKey{}, err
	}
	return key, nil
}

// SetActive flips the active flag. Deactivated keys are never re-activated by
// the service layer; the store keeps the operation symmetric for tooling.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE access_keys SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListByOwner returns all keys owned by a user, newest first.
func (r *PGRepository) ListByOwner(ctx context.Context, ownerID int64) ([]AccessKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+keyColumns+` FROM access_keys WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []AccessKey
	for rows.Next() {
		var key AccessKey
		if err := rows.Scan(&key.ID, &key.SecretDigest, &key.OwnerID, &key.CreatedAt, &key.MaxAgeDays, &key.Active); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeactivateByOwner flips every active key owned by a user and returns the
// number affected.
func (r *PGRepository) DeactivateByOwner(ctx context.Context, ownerID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_keys SET active = false WHERE owner_id = $1 AND active`, ownerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeactivateExpired flips every active key past its maximum age. Used by the
// background sweep; authentication also checks expiry lazily.
func (r *PGRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_keys
		 SET active = false
		 WHERE active AND created_at + make_interval(days => max_age_days) <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
