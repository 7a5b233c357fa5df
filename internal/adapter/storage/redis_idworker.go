package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// seconds since 2022-01-01T00:00:00Z
	idEpoch = 1640995200

	// low bits carry the per-day sequence number
	sequenceBits = 32
)

// RedisIDWorker composes 64-bit order ids from a coarse timestamp and a
// per-day shared counter: (nowSec - epoch) << 32 | sequence. Uniqueness
// needs no lock, only the atomic INCR on the day's counter, and holds as
// long as one day stays below 2^32 ids. A clock stepping backwards is not
// detected; ids issued across such a step may not be ordered.
type RedisIDWorker struct {
	client *redis.Client
}

func NewRedisIDWorker(client *redis.Client) *RedisIDWorker {
	return &RedisIDWorker{client: client}
}

func (w *RedisIDWorker) NextID(ctx context.Context, prefix string) (uint64, error) {
	now := time.Now().UTC()
	timestamp := uint64(now.Unix() - idEpoch)

	key := fmt.Sprintf("icr:%s:%s", prefix, now.Format("2006:01:02"))
	count, err := w.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment id counter: %w", err)
	}

	return timestamp<<sequenceBits | uint64(count), nil
}
