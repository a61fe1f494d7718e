// Package database manages the metadata store's connection pool and the
// per-request transactional session used by every Lifecycle Controller
// operation: a fresh session is opened per call, read-only sessions
// reject write statements and always roll back, and every exit path
// guarantees the transaction is finished exactly once.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the pgx stdlib driver under "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Registers the sqlite3 driver under "sqlite3".
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// Dialect identifies which SQL dialect a Pool speaks, since the Query
// Planner and the Metadata Store Adapter must render JSON predicates
// differently for each.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	Driver                 string // "postgres" or "sqlite"
	DSN                    string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

// Pool wraps a *sql.DB with the dialect it was opened against.
type Pool struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewPool opens a connection pool for the configured driver.
func NewPool(cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var driverName string
	var dialect Dialect
	switch cfg.Driver {
	case "", "postgres", "postgresql":
		driverName, dialect = "pgx", DialectPostgres
	case "sqlite", "sqlite3":
		driverName, dialect = "sqlite3", DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, apperrors.NewDatabaseError("open connection pool", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return &Pool{db: db, dialect: dialect, logger: logger}, nil
}

// NewPoolFromDB wraps an already-open *sql.DB (e.g. a sqlmock database in
// tests) as a Pool without going through NewPool's driver resolution.
func NewPoolFromDB(db *sql.DB, dialect Dialect, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{db: db, dialect: dialect, logger: logger}
}

// Dialect reports which SQL dialect this pool speaks.
func (p *Pool) Dialect() Dialect {
	return p.dialect
}

// DB exposes the underlying *sql.DB for packages (repository, query) that
// need a *sql.DB/*sql.Tx-compatible executor directly.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the underlying pool.
func (p *Pool) Close() error {
	return p.db.Close()
}

// Session is a single request's metadata-store transaction. Read-only
// sessions reject any write statement issued through Exec and always
// roll back at Finish, regardless of the error passed in — read-only
// transactions never commit writes because there should never be any.
type Session struct {
	tx       *sql.Tx
	dialect  Dialect
	readOnly bool
	done     bool
}

// ErrReadOnlySession is returned by Exec on a read-only Session.
var ErrReadOnlySession = apperrors.New(apperrors.ErrorTypeInternal, "write attempted on a read-only session")

// Begin opens a new session. A read-only session is for operations that
// only read (e.g. `read`, `list_children` without a stat increment
// requirement isn't actually read-only since view_count still increments,
// but pure listing/lookups use this path).
func (p *Pool) Begin(ctx context.Context, readOnly bool) (*Session, error) {
	opts := &sql.TxOptions{ReadOnly: readOnly}
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin transaction", err)
	}
	return &Session{tx: tx, dialect: p.dialect, readOnly: readOnly}, nil
}

// Dialect reports the session's SQL dialect.
func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Tx exposes the underlying transaction for repository code.
func (s *Session) Tx() *sql.Tx {
	return s.tx
}

// Exec rejects writes on a read-only session before delegating to the
// underlying transaction.
func (s *Session) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if s.readOnly {
		return nil, ErrReadOnlySession
	}
	return s.tx.ExecContext(ctx, query, args...)
}

// Query delegates to the underlying transaction; reads are always allowed.
func (s *Session) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

// QueryRow delegates to the underlying transaction.
func (s *Session) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

// Finish commits the session if err is nil and the session is writable,
// otherwise rolls it back. It is safe to call at most once; subsequent
// calls are no-ops. Callers defer it through a closure,
// `defer func() { err = session.Finish(err) }()`, or call it directly in
// the success and error paths.
func (s *Session) Finish(err error) error {
	if s.done {
		return nil
	}
	s.done = true

	if err != nil || s.readOnly {
		return s.tx.Rollback()
	}
	if commitErr := s.tx.Commit(); commitErr != nil {
		return apperrors.NewDatabaseError("commit transaction", commitErr)
	}
	return nil
}
