// Package repository implements MySQL persistence.  Methods that take a
// querier run on either the pool or a caller's transaction; the caller owns
// commit and rollback.
//
// The sentinel values below let handlers distinguish failure scenarios:
// ErrForbidden means the caller does not own the resource, ErrConflict that
// a compare-and-swap or a uniqueness rule rejected the write.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/parkease/internal/booking"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a status compare-and-swap loses or an update
// targets a record in a state that forbids it.  It is the same value the
// booking engine checks for.
var ErrConflict = booking.ErrSlotConflict

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key rejects an insert.
var ErrDuplicate = errors.New("duplicate entry")

const mysqlDuplicateKey = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateKey
}

// duplicateOn reports whether err is a duplicate-key error raised by the
// named unique index.  MySQL only exposes the key in the message text.
func duplicateOn(err error, key string) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateKey && strings.Contains(me.Message, key)
}

// notFound maps sql.ErrNoRows onto sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
