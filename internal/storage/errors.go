package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUserExists is returned when a user id or phone number is already registered.
	ErrUserExists = errors.New("storage: user already exists")

	// ErrNotFound is returned when a single-row lookup by id finds nothing.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidReference is returned when a referenced row does not exist.
	ErrInvalidReference = errors.New("storage: referenced row does not exist")

	// ErrUnknownTable is returned for table names outside the schema.
	ErrUnknownTable = errors.New("storage: unknown table")

	// ErrValueTooLong is returned when a text value does not fit its column.
	ErrValueTooLong = errors.New("storage: value too long")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgStringTooLong       = "22001"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// valueTooLong wraps err in ErrValueTooLong when Postgres rejected an
// over-long string, and returns nil otherwise.
func valueTooLong(err error) error {
	if pgErrorCode(err) != pgStringTooLong {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValueTooLong, err)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUserExists) || pgErrorCode(err) == pgUniqueViolation
}
