package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// DB holds the database connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection pool.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// WithSession pins one pooled connection to fn's unit of work. Stores called
// with the returned context use that connection. Opening a session on a context
// that already carries a session or a transaction returns hendelse.ErrNestedSession.
func (db *DB) WithSession(ctx context.Context, fn hendelse.TransactionalHandler) error {
	_, inSession := ctx.Value(sessionKey{}).(*pgxpool.Conn)
	_, inTx := ctx.Value(txKey{}).(pgx.Tx)
	if inSession || inTx {
		slog.ErrorContext(ctx, "Refusing to open a nested database session", "inSession", inSession, "inTransaction", inTx)
		return hendelse.ErrNestedSession
	}

	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(context.WithValue(ctx, sessionKey{}, conn))
}

// WithTransaction implements the hendelse.Transactor interface. When ctx already
// carries a transaction fn joins it; otherwise a transaction is opened on the
// session's connection, or on a pooled one outside a session.
func (db *DB) WithTransaction(ctx context.Context, fn hendelse.TransactionalHandler) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	var (
		tx  pgx.Tx
		err error
	)
	if conn, ok := ctx.Value(sessionKey{}).(*pgxpool.Conn); ok {
		tx, err = conn.Begin(ctx)
	} else {
		tx, err = db.Pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if tx has been committed

	// Inject the transaction into the context for stores to use.
	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// Querier runs SQL on the connection bound to a context. It is satisfied by
// pgx.Tx, *pgxpool.Conn and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier returns the transaction carried by ctx, then its session connection,
// then the pool. Handlers use it to write in the same unit of work as the stores.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	if conn, ok := ctx.Value(sessionKey{}).(*pgxpool.Conn); ok {
		return conn
	}
	return db.Pool
}

// txKey is a private key type to store the transaction in the context.
type txKey struct{}

// sessionKey is a private key type to store the pinned connection in the context.
type sessionKey struct{}
