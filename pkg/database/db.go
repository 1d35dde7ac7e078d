package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

// Querier is the statement surface shared by the pool and an open transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type DB interface {
	Querier
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
	CommandTimeout() time.Duration
}

type DatabaseInstance struct {
	*sqlx.DB
	logger         ectologger.Logger
	commandTimeout time.Duration
}

type Option func(*DatabaseInstance)

// WithCommandTimeout bounds every statement issued through Conn.
func WithCommandTimeout(d time.Duration) Option {
	return func(db *DatabaseInstance) {
		db.commandTimeout = d
	}
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger, opts ...Option) DB {
	instance := &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
	for _, opt := range opts {
		opt(instance)
	}
	return instance
}

// PoolConfig mirrors the DB_* pool settings.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens and pings a postgres pool.
func Connect(ctx context.Context, dsn string, pool PoolConfig, logger ectologger.Logger, opts ...Option) (DB, *sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("Failed to connect to database")
		return nil, nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return NewDatabaseInstance(db, logger, opts...), db, nil
}

func (db *DatabaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db, opts)
}

func (db *DatabaseInstance) CommandTimeout() time.Duration {
	return db.commandTimeout
}

// Conn returns the transaction carried by ctx, or the pool when there is none,
// with the per-command timeout applied to each call.
func Conn(ctx context.Context, db DB) Querier {
	var q Querier = db
	if tx := TxFromContext(ctx); tx != nil {
		q = tx
	}

	if timeout := db.CommandTimeout(); timeout > 0 {
		return &timeoutQuerier{Querier: q, timeout: timeout}
	}
	return q
}

type timeoutQuerier struct {
	Querier
	timeout time.Duration
}

func (q *timeoutQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.Querier.ExecContext(ctx, query, args...)
}

func (q *timeoutQuerier) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.Querier.GetContext(ctx, dest, query, args...)
}

func (q *timeoutQuerier) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.Querier.SelectContext(ctx, dest, query, args...)
}
