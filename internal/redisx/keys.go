package redisx

import "time"

const (
	// Per-order lock: lock:order:{order_id} -> owner token
	KeyLock = "lock:%s"

	// Cached joined order view: order_view:{establishment_id}:{order_id} -> JSON
	KeyOrderView = "order_view:%s:%s"

	// Dedup of relayed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLLock        = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
