package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/mymiscarriage/apiserver/types"
)

// SignupKeyRepository handles the moderator signup allowlist.
type SignupKeyRepository struct {
	db *sql.DB
}

func NewSignupKeyRepository(db *sql.DB) *SignupKeyRepository {
	return &SignupKeyRepository{db: db}
}

func (r *SignupKeyRepository) Create(ctx context.Context, key types.SignupKey) (types.SignupKey, error) {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO signup_keys (email, key, created_at)
		VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, key.Email, key.Key, key.CreatedAt); err != nil {
		return types.SignupKey{}, translateError("create signup key", err)
	}
	return key, nil
}

// GetUnconsumed returns the matching key if it has not been used yet.
func (r *SignupKeyRepository) GetUnconsumed(ctx context.Context, email, key string) (types.SignupKey, error) {
	const query = `
		SELECT email, key, created_at, consumed_at
		FROM signup_keys
		WHERE email = $1 AND key = $2 AND consumed_at IS NULL`
	var (
		signupKey  types.SignupKey
		consumedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, email, key).Scan(
		&signupKey.Email,
		&signupKey.Key,
		&signupKey.CreatedAt,
		&consumedAt,
	)
	if err != nil {
		return types.SignupKey{}, translateError("get signup key", err)
	}
	if consumedAt.Valid {
		signupKey.ConsumedAt = &consumedAt.Time
	}
	return signupKey, nil
}

// Consume marks the key as used. It returns ErrNotFound when the key
// does not exist or was already consumed.
func (r *SignupKeyRepository) Consume(ctx context.Context, email, key string) error {
	const query = `
		UPDATE signup_keys
		SET consumed_at = $1
		WHERE email = $2 AND key = $3 AND consumed_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), email, key)
	if err != nil {
		return translateError("consume signup key", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return translateError("consume signup key", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
