// Package sqlite stores events and consumer checkpoints in a single SQLite
// file. It serves embedded single-process deployments and hermetic tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

// Schema creates the event and event_checkpoint tables. It is idempotent.
//
//go:embed schema.sql
var Schema string

// DB wraps the SQLite handle.
type DB struct {
	SQL *sql.DB
}

// Open opens the database file at path and creates the schema. Write
// transactions take the database lock when they begin, so concurrent writers
// queue on the busy timeout instead of failing on lock upgrade.
func Open(ctx context.Context, path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	db := &DB{SQL: sqlDB}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables owned by the event core if they are missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.SQL.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (db *DB) Close() error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

// WithSession pins one connection to fn's unit of work. Opening a session on a
// context that already carries a session or a transaction returns
// hendelse.ErrNestedSession.
func (db *DB) WithSession(ctx context.Context, fn hendelse.TransactionalHandler) error {
	_, inSession := ctx.Value(sessionKey{}).(*sql.Conn)
	_, inTx := ctx.Value(txKey{}).(*sql.Tx)
	if inSession || inTx {
		slog.ErrorContext(ctx, "Refusing to open a nested database session", "inSession", inSession, "inTransaction", inTx)
		return hendelse.ErrNestedSession
	}

	conn, err := db.SQL.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(context.WithValue(ctx, sessionKey{}, conn))
}

// WithTransaction implements the hendelse.Transactor interface. A context that
// already carries a transaction is reused.
func (db *DB) WithTransaction(ctx context.Context, fn hendelse.TransactionalHandler) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	var (
		tx  *sql.Tx
		err error
	)
	if conn, ok := ctx.Value(sessionKey{}).(*sql.Conn); ok {
		tx, err = conn.BeginTx(ctx, nil)
	} else {
		tx, err = db.SQL.BeginTx(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Querier is satisfied by *sql.Tx, *sql.Conn and *sql.DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier returns the transaction carried by ctx, then its session connection,
// then the shared handle.
func (db *DB) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	if conn, ok := ctx.Value(sessionKey{}).(*sql.Conn); ok {
		return conn
	}
	return db.SQL
}

type txKey struct{}

type sessionKey struct{}

func toMicros(value time.Time) int64 {
	return value.UTC().UnixMicro()
}

func fromMicros(value int64) time.Time {
	return time.UnixMicro(value).UTC()
}

func sqliteCode(err error) (int, bool) {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0, false
	}
	return sqliteErr.Code(), true
}

func isUniqueViolation(err error, columns string) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return strings.Contains(err.Error(), columns)
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "FOREIGN KEY")))
}
