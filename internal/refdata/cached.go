package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"waybox/internal/cache"
	"waybox/internal/models"
)

// Cached — кэширующая обёртка над резолвером. Справочники меняются редко,
// поэтому промах дорогим не считаем, а ошибки кэша не фатальны: логируем
// и идём в хранилище.
type Cached struct {
	next  Resolver
	cache cache.BytesCache
	ttl   time.Duration
	log   *slog.Logger
}

func NewCached(next Resolver, c cache.BytesCache, ttl time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{next: next, cache: c, ttl: ttl, log: log}
}

func (c *Cached) Town(ctx context.Context, id uint64) (*models.Town, error) {
	key := fmt.Sprintf("refdata:town:%d", id)

	var town models.Town
	if c.lookup(ctx, key, &town) {
		return &town, nil
	}

	fresh, err := c.next.Town(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fresh)
	return fresh, nil
}

func (c *Cached) Warehouse(ctx context.Context, id uint64) (*models.Warehouse, error) {
	key := fmt.Sprintf("refdata:warehouse:%d", id)

	var wh models.Warehouse
	if c.lookup(ctx, key, &wh) {
		return &wh, nil
	}

	fresh, err := c.next.Warehouse(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fresh)
	return fresh, nil
}

func (c *Cached) lookup(ctx context.Context, key string, dst any) bool {
	b, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("refdata cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.log.Warn("refdata cache entry is broken", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
		c.log.Warn("refdata cache set failed", "key", key, "error", err)
	}
}
