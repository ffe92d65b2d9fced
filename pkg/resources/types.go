package resources

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ DBInstance = (*pgxpool.Pool)(nil)
	_ Closable   = (*pgxpool.Pool)(nil)
	_ Closable   = CloseFunc(nil)
)

// DBInstance is the part of a pgx pool the repository needs.
type DBInstance interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type Closable interface {
	Close()
}

type CloseFunc func()

func (fn CloseFunc) Close() {
	fn()
}

// StopFn releases a resource, giving up after timeout.
type StopFn func(ctx context.Context, timeout time.Duration)
