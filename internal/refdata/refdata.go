package refdata

import (
	"context"

	"waybox/internal/models"
)

// Resolver отдаёт справочные данные перевозчика по локальным идентификаторам.
type Resolver interface {
	Town(ctx context.Context, id uint64) (*models.Town, error)
	Warehouse(ctx context.Context, id uint64) (*models.Warehouse, error)
}

type storage interface {
	GetTown(ctx context.Context, id uint64) (*models.Town, error)
	GetWarehouse(ctx context.Context, id uint64) (*models.Warehouse, error)
}

// PG — резолвер поверх postgres-справочника.
type PG struct {
	st storage
}

func NewPG(st storage) *PG {
	return &PG{st: st}
}

func (p *PG) Town(ctx context.Context, id uint64) (*models.Town, error) {
	return p.st.GetTown(ctx, id)
}

func (p *PG) Warehouse(ctx context.Context, id uint64) (*models.Warehouse, error) {
	return p.st.GetWarehouse(ctx, id)
}
