package store

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable is returned when the database cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

const pqUniqueViolation = "23505"

// translateError maps driver errors onto the store's error kinds.
// Errors that match no kind are wrapped with op and returned as-is.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case pqErr.Code.Class() == "08",
			pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03":
			return fmt.Errorf("%s: %w", op, ErrUnavailable)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr *net.OpError
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	return fmt.Errorf("%s: %w", op, err)
}
