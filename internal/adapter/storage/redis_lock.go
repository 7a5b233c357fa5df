package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/voucher-seckill/internal/port"
)

const lockKeyPrefix = "lock:order:"

// unlockScript deletes the lock only when it is still held by this token,
// so a holder whose lease already expired cannot release another worker's
// acquisition.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLockManager hands out per-user materialization locks. Each manager
// carries a process-unique token prefix so holder tokens never collide
// across worker processes.
type RedisLockManager struct {
	client      *redis.Client
	tokenPrefix string
}

func NewRedisLockManager(client *redis.Client) *RedisLockManager {
	return &RedisLockManager{
		client:      client,
		tokenPrefix: uuid.NewString() + "-",
	}
}

func (m *RedisLockManager) OrderLock(userID uint64) port.Lock {
	return &redisLock{
		client: m.client,
		key:    lockKeyPrefix + strconv.FormatUint(userID, 10),
		token:  m.tokenPrefix + uuid.NewString(),
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) TryLock(ctx context.Context, lease time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, lease).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *redisLock) Unlock(ctx context.Context) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}
