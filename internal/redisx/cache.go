package redisx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

// OrderCache menyimpan order yang sudah di-resolve (termasuk items) untuk GET cepat.
// DB tetap sumber kebenaran; setiap perubahan status/hapus harus Invalidate.
//
// Put is conditional on the version read before the DB lookup: an Invalidate in
// between bumps the version and the stale copy is not written.
type OrderCache struct {
	rdb *redis.Client
}

func NewOrderCache(rdb *redis.Client) *OrderCache { return &OrderCache{rdb: rdb} }

var errStaleVersion = errors.New("order cache version changed")

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, g getter, key string) (int64, error) {
	v, err := g.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, errors.Wrap(err, "read order cache version")
}

func (c *OrderCache) Get(ctx context.Context, id int64) (*orders.Order, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrder, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get cached order")
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, false, errors.Wrap(err, "decode cached order")
	}
	return &o, true, nil
}

// Version returns the invalidation counter of order id (0 if never invalidated).
func (c *OrderCache) Version(ctx context.Context, id int64) (int64, error) {
	return readVersion(ctx, c.rdb, fmt.Sprintf(KeyOrderVersion, id))
}

// Put stores o only if the version of o.ID still equals version. A lost race
// is not an error; the next GET reloads from the DB.
func (c *OrderCache) Put(ctx context.Context, o *orders.Order, version int64) error {
	b, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	verKey := fmt.Sprintf(KeyOrderVersion, o.ID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readVersion(ctx, tx, verKey)
		if err != nil {
			return err
		}
		if cur != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, fmt.Sprintf(KeyOrder, o.ID), b, TTLOrderCache)
			return nil
		})
		return err
	}, verKey)
	if errors.Is(err, errStaleVersion) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return errors.Wrap(err, "cache order")
}

func (c *OrderCache) Invalidate(ctx context.Context, id int64) error {
	verKey := fmt.Sprintf(KeyOrderVersion, id)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, verKey)
		p.Expire(ctx, verKey, TTLOrderVer)
		p.Del(ctx, fmt.Sprintf(KeyOrder, id))
		return nil
	})
	return errors.Wrap(err, "invalidate order")
}
