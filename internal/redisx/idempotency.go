package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const pending = "pending"

// Idempotency remembers which order an Idempotency-Key produced, per user.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency { return &Idempotency{rdb: rdb} }

// Claim tries to take key for userID. Hasilnya:
//   - claimed=true: caller boleh place order lalu Complete/Release
//   - orderID>0: key sudah pernah menghasilkan order ini
//   - keduanya kosong: request lain dengan key yang sama masih berjalan
func (i *Idempotency) Claim(ctx context.Context, userID int64, key string) (orderID int64, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderPlace, userID, key)
	ok, err := i.rdb.SetNX(ctx, k, pending, TTLIdemPending).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "claim idempotency key")
	}
	if ok {
		return 0, true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired di antara SETNX dan GET; anggap masih berjalan
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "read idempotency key")
	}
	if v == pending {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "corrupt idempotency value %q", v)
	}
	return id, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID int64, key string, orderID int64) error {
	k := fmt.Sprintf(KeyIdemOrderPlace, userID, key)
	return errors.Wrap(i.rdb.Set(ctx, k, orderID, TTLIdempotency).Err(), "complete idempotency key")
}

// Release drops a claim after a failed placement so the client can retry.
func (i *Idempotency) Release(ctx context.Context, userID int64, key string) error {
	k := fmt.Sprintf(KeyIdemOrderPlace, userID, key)
	return errors.Wrap(i.rdb.Del(ctx, k).Err(), "release idempotency key")
}
