// Package postgres implements the service stores on PostgreSQL through a
// pgx connection pool. Settlement transactions rely on row locks: the
// season row is shared by concurrent settlements and taken exclusively by
// removal and reconciliation, and participant rows are locked for update
// in id order.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/settlement"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/metrics"
)

const storeName = "postgres"

//go:embed schema.sql
var schema string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed store.
type Store struct {
	pool           *pgxpool.Pool
	logger         logger.Logger
	connectTimeout time.Duration
	ensureSchema   bool
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConnectTimeout bounds the initial connect and ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// WithEnsureSchema creates missing tables and indexes on connect.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) {
		s.ensureSchema = enabled
	}
}

var _ settlement.Store = (*Store)(nil)

// New connects to the database at dsn and verifies the connection.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	const op = "postgres.new"
	s := &Store{connectTimeout: 5 * time.Second, ensureSchema: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("postgres")
	}

	cctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(cctx, dsn)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrInternal, err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, errs.WrapKind(op, errs.ErrInternal, err)
	}
	s.pool = pool

	if s.ensureSchema {
		if err := s.EnsureSchema(cctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	s.logger.Info(ctx, "connected to postgres")
	return s, nil
}

// EnsureSchema applies the embedded schema. Every statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errs.WrapKind("postgres.ensure_schema", errs.ErrInternal, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errs.WrapKind("postgres.ping", errs.ErrInternal, err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// WithinTx runs fn inside one database transaction. The transaction is
// rolled back when fn fails, panics, or ctx is done before commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx settlement.Tx) error) error {
	const op = "postgres.within_tx"
	defer observe("tx", time.Now())

	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.WrapKind(op, errs.ErrInternal, err)
	}
	defer func() {
		// A no-op once the transaction is committed.
		if rbErr := pgTx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn(ctx, "rollback failed", logger.Error(rbErr))
		}
	}()

	if err := fn(ctx, &tx{q: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapErr(op, "transaction", err)
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(storeName, op, float64(time.Since(start).Microseconds())/1000)
}

// mapErr translates driver errors into the service's error kinds.
func mapErr(op, what string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errs.E(op, errs.ErrNotFound, what+" not found")
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return errs.E(op, errs.ErrConflict, what+" already exists")
	case errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01"):
		return errs.WrapKind(op, errs.ErrConflict, err)
	default:
		return errs.WrapKind(op, errs.ErrInternal, err)
	}
}

func notFound(op, what string) error {
	return errs.E(op, errs.ErrNotFound, what+" not found")
}
