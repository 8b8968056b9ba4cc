package redisx

import "time"

const (
	// Idempotency place order: idem:order:place:{user_id}:{idempotency_key} -> order_id | "pending"
	KeyIdemOrderPlace = "idem:order:place:%d:%s"

	// Cache order: order:{order_id} -> JSON order lengkap dengan items
	KeyOrder = "order:%d"

	// Versi invalidasi cache order: order:{order_id}:ver -> counter, naik setiap Invalidate
	KeyOrderVersion = "order:%d:ver"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = 30 * time.Second // klaim yang belum selesai dilepas otomatis
	TTLOrderCache  = 5 * time.Minute
	TTLOrderVer    = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
