package redisx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Only the owner's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a Redis-backed keyed lock for engines running in several processes.
// Keys expire after TTL so a crashed holder cannot block an order forever.
type Locker struct {
	RDB   *redis.Client
	Wait  time.Duration
	TTL   time.Duration
	Retry time.Duration
	Log   *slog.Logger
}

func NewLocker(rdb *redis.Client, wait, ttl time.Duration, log *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = TTLLock
	}
	return &Locker{RDB: rdb, Wait: wait, TTL: ttl, Retry: 25 * time.Millisecond, Log: log}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	rkey := fmt.Sprintf(KeyLock, key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.RDB.SetNX(ctx, rkey, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, orders.Conflict(key, "timed out waiting for lock")
		}
		select {
		case <-time.After(l.Retry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.RDB, []string{rkey}, token).Err(); err != nil {
			l.Log.Warn("lock release failed", "action", "lock_release_failed", "key", key, "error", err)
		}
	}, nil
}
