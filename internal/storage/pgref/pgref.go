package pgref

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"waybox/internal/models"
)

// DB — срез pgxpool, достаточный справочнику; в тестах подменяется pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage — справочник городов и отделений перевозчика.
// Наполняется импортом справочников, здесь только чтение и upsert.
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

// NewWithDB — справочник поверх готового соединения (тесты).
func NewWithDB(db DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS towns (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL,
  settlement_type TEXT NOT NULL DEFAULT '',
  area TEXT NOT NULL DEFAULT '',
  area_region TEXT NOT NULL DEFAULT ''
)`,
		`
CREATE TABLE IF NOT EXISTS warehouses (
  id BIGINT PRIMARY KEY,
  town_id BIGINT NOT NULL,
  site_number TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_warehouses_town_id ON warehouses(town_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init ref schema")
		}
	}
	return nil
}

func (s *Storage) GetTown(ctx context.Context, id uint64) (*models.Town, error) {
	var t models.Town
	err := s.db.QueryRow(ctx,
		`SELECT id, name, settlement_type, area, area_region FROM towns WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.SettlementType, &t.Area, &t.AreaRegion)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select town")
	}
	return &t, nil
}

func (s *Storage) GetWarehouse(ctx context.Context, id uint64) (*models.Warehouse, error) {
	var w models.Warehouse
	err := s.db.QueryRow(ctx,
		`SELECT id, town_id, site_number FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.TownID, &w.SiteNumber)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select warehouse")
	}
	return &w, nil
}

func (s *Storage) UpsertTown(ctx context.Context, t *models.Town) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO towns (id, name, settlement_type, area, area_region)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  settlement_type = EXCLUDED.settlement_type,
  area = EXCLUDED.area,
  area_region = EXCLUDED.area_region
`, t.ID, t.Name, t.SettlementType, t.Area, t.AreaRegion)
	return errors.Wrap(err, "upsert town")
}

func (s *Storage) UpsertWarehouse(ctx context.Context, w *models.Warehouse) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO warehouses (id, town_id, site_number)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
  town_id = EXCLUDED.town_id,
  site_number = EXCLUDED.site_number
`, w.ID, w.TownID, w.SiteNumber)
	return errors.Wrap(err, "upsert warehouse")
}
