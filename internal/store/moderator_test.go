package store

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mymiscarriage/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestModeratorCreate_DuplicateEmailIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewModeratorRepository(db)

	mock.ExpectExec(`^INSERT INTO moderators`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), types.Moderator{ID: "id", Email: "mod@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModeratorGetByToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewModeratorRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM moderators WHERE access_token = \$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "access_token", "created_at"}).
			AddRow("m-1", "mod@example.com", "$2a$hash", "tok", now))

	got, err := repo.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, "tok", got.AccessToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModeratorGetByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewModeratorRepository(db)

	mock.ExpectQuery(`FROM moderators WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignupKeyConsume(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignupKeyRepository(db)

	mock.ExpectExec(`^UPDATE signup_keys SET consumed_at = \$1 WHERE email = \$2 AND key = \$3 AND consumed_at IS NULL$`).
		WithArgs(sqlmock.AnyArg(), "mod@example.com", "k1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE signup_keys`).
		WithArgs(sqlmock.AnyArg(), "mod@example.com", "k1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Consume(context.Background(), "mod@example.com", "k1"))
	assert.ErrorIs(t, repo.Consume(context.Background(), "mod@example.com", "k1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupKeyGetUnconsumed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignupKeyRepository(db)

	mock.ExpectQuery(`FROM signup_keys WHERE email = \$1 AND key = \$2 AND consumed_at IS NULL`).
		WithArgs("mod@example.com", "k1").
		WillReturnRows(sqlmock.NewRows([]string{"email", "key", "created_at", "consumed_at"}).
			AddRow("mod@example.com", "k1", time.Now(), nil))

	got, err := repo.GetUnconsumed(context.Background(), "mod@example.com", "k1")
	require.NoError(t, err)
	assert.Nil(t, got.ConsumedAt)
}

func TestTranslateError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, ErrConflict},
		{"connection failure class", &pq.Error{Code: "08006"}, ErrUnavailable},
		{"admin shutdown", &pq.Error{Code: "57P01"}, ErrUnavailable},
		{"conn done", sql.ErrConnDone, ErrUnavailable},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrUnavailable},
		{"other", other, other},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translateError("op", tc.err)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestTranslateError_CheckViolationStaysGeneric(t *testing.T) {
	got := translateError("op", &pq.Error{Code: "23514"})
	assert.NotErrorIs(t, got, ErrConflict)
	assert.NotErrorIs(t, got, ErrUnavailable)
}
