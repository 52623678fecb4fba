package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ViewCache stores serialized order views. A miss returns (nil, nil).
type ViewCache struct {
	RDB *redis.Client
}

func (c *ViewCache) Get(ctx context.Context, establishmentID, orderID string) ([]byte, error) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderView, establishmentID, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (c *ViewCache) Set(ctx context.Context, establishmentID, orderID string, body []byte) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderView, establishmentID, orderID), body, TTLStatusCache).Err()
}

func (c *ViewCache) Invalidate(ctx context.Context, establishmentID, orderID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderView, establishmentID, orderID)).Err()
}

// Deduper claims event ids with SET NX so concurrent workers cannot both win.
type Deduper struct {
	RDB     *redis.Client
	Service string
}

func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

func (d *Deduper) Release(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
