// Package pgstore implements database.Store on PostgreSQL with pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adibqt/LibroTrack/internal/database"
)

const (
	dialectPostgres   = "postgres"
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	defaultListLimit  = 100
	maxListLimit      = 500
)

var dialect = goqu.Dialect(dialectPostgres)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the lending queries against a pool or a transaction
type Queries struct {
	db DBTX
}

// WithTx returns a Queries bound to tx
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Store is the PostgreSQL implementation of database.Store
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: &Queries{db: pool},
		pool:    pool,
	}
}

// InTx runs fn inside a read-committed transaction. Row locks taken with
// SELECT ... FOR UPDATE are held until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(q database.Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// translate maps driver errors onto the database package sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return database.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", database.ErrDuplicate, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", database.ErrCheckViolation, pgErr.ConstraintName)
		}
	}
	return err
}

func clampLimit(limit int) uint {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return uint(limit)
	}
}

// query builds ds as a prepared statement and runs it
func (q *Queries) query(ctx context.Context, ds *goqu.SelectDataset) (pgx.Rows, error) {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}
