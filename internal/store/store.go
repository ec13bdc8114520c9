// Package store is the hand-written pgx data access layer. Queries are kept
// as one method per statement operating on row structs, so services can
// depend on narrow interfaces and tests can stub them.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrDuplicate indicates a unique-constraint violation.
var ErrDuplicate = errors.New("store: duplicate row")

// ErrInsufficientStock indicates a stock adjustment would go negative.
var ErrInsufficientStock = errors.New("store: insufficient stock")

// DBTX abstracts a pgx pool, connection, or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store executes queries against the provided DBTX.
type Store struct {
	db DBTX
}

// New constructs a Store.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ToUUID parses the string form of a UUID. The zero (invalid) value is
// returned when the input does not parse; callers check Valid.
func ToUUID(value string) pgtype.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// UUIDString converts a pgtype.UUID into its canonical string form.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// UUIDEqual reports whether two UUID values are both valid and identical.
func UUIDEqual(a, b pgtype.UUID) bool {
	if !a.Valid || !b.Valid {
		return false
	}
	return a.Bytes == b.Bytes
}

// NewUUID generates a fresh valid pgtype.UUID.
func NewUUID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

// TextOf wraps a non-empty string as a valid pgtype.Text.
func TextOf(value string) pgtype.Text {
	if strings.TrimSpace(value) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
