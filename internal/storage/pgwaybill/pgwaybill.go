package pgwaybill

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// DB — срез pgxpool, достаточный хранилищу; в тестах подменяется pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Storage struct {
	db      DB
	closeFn func()
}

func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{db: pool, closeFn: pool.Close}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// NewWithDB — хранилище поверх готового соединения (тесты).
func NewWithDB(db DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}
