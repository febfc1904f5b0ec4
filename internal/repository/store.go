package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

// DBTX is satisfied by both the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories behind one unit of work.
type Store interface {
	Tickets() TicketRepository
	Interventions() InterventionRepository
	Materials() MaterialRepository
	Users() UserRepository
	Clients() ClientRepository
	Audit() AuditRepository
	// WithinTx runs fn atomically. Any error returned by fn rolls back every
	// write made through the Store passed to it.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPostgresStore returns a Store backed by the pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() TicketRepository             { return &ticketRepository{db: s.db} }
func (s *pgStore) Interventions() InterventionRepository { return &interventionRepository{db: s.db} }
func (s *pgStore) Materials() MaterialRepository         { return &materialRepository{db: s.db} }
func (s *pgStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *pgStore) Clients() ClientRepository             { return &clientRepository{db: s.db} }
func (s *pgStore) Audit() AuditRepository                { return &auditRepository{db: s.db} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgStore{pool: s.pool, db: tx, inTx: true})
	})
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func expectAffected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Page normalizes limit/offset pairs used by list queries.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
