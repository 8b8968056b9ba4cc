package redisx

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Dedup marks events as processed per consuming service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// First returns true exactly once per eventID (SETNX), false untuk duplikat.
func (d *Dedup) First(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, eventID), 1, TTLDedup).Result()
	return ok, errors.Wrap(err, "dedup")
}

// Forget undoes First, dipakai kalau pemrosesan gagal dan event harus diulang.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return errors.Wrap(d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, eventID)).Err(), "dedup forget")
}
