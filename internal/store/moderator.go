package store

import (
	"context"
	"database/sql"

	"github.com/mymiscarriage/apiserver/types"
)

// ModeratorRepository handles persistence for moderator credentials.
type ModeratorRepository struct {
	db *sql.DB
}

func NewModeratorRepository(db *sql.DB) *ModeratorRepository {
	return &ModeratorRepository{db: db}
}

// Create inserts a moderator. A duplicate email or token yields ErrConflict.
func (r *ModeratorRepository) Create(ctx context.Context, moderator types.Moderator) (types.Moderator, error) {
	const query = `
		INSERT INTO moderators (id, email, password_hash, access_token, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		moderator.ID,
		moderator.Email,
		moderator.PasswordHash,
		moderator.AccessToken,
		moderator.CreatedAt,
	)
	if err != nil {
		return types.Moderator{}, translateError("create moderator", err)
	}
	return moderator, nil
}

func (r *ModeratorRepository) GetByEmail(ctx context.Context, email string) (types.Moderator, error) {
	const query = `
		SELECT id, email, password_hash, access_token, created_at
		FROM moderators
		WHERE email = $1`
	return r.getOne(ctx, "get moderator by email", query, email)
}

// GetByToken looks a moderator up by the exact access token.
func (r *ModeratorRepository) GetByToken(ctx context.Context, token string) (types.Moderator, error) {
	const query = `
		SELECT id, email, password_hash, access_token, created_at
		FROM moderators
		WHERE access_token = $1`
	return r.getOne(ctx, "get moderator by token", query, token)
}

func (r *ModeratorRepository) getOne(ctx context.Context, op, query string, arg any) (types.Moderator, error) {
	var moderator types.Moderator
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&moderator.ID,
		&moderator.Email,
		&moderator.PasswordHash,
		&moderator.AccessToken,
		&moderator.CreatedAt,
	)
	if err != nil {
		return types.Moderator{}, translateError(op, err)
	}
	return moderator, nil
}
