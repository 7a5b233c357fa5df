package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/voucher-seckill/internal/port"
)

const (
	stockKeyPrefix = "seckill:stock:"
	orderKeyPrefix = "seckill:order:"
)

// admitScript runs the whole admission decision server-side: the stock
// check, the one-order-per-user check, the reservation of one unit and the
// append of the reservation event all execute as a single atomic step.
// Returns 0 on accept, 1 when out of stock, 2 when the user already holds
// an admission for this voucher.
var admitScript = redis.NewScript(`
local stock = redis.call('GET', KEYS[1])
if not stock or tonumber(stock) <= 0 then
	return 1
end

if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
	return 2
end

redis.call('DECR', KEYS[1])
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('XADD', KEYS[3], '*',
	'orderId', ARGV[2], 'userId', ARGV[1], 'voucherId', ARGV[3], 'admittedAt', ARGV[4])
return 0
`)

type RedisAdapter struct {
	client    *redis.Client
	streamKey string
}

func NewRedisAdapter(client *redis.Client, streamKey string) *RedisAdapter {
	return &RedisAdapter{client: client, streamKey: streamKey}
}

func (r *RedisAdapter) Admit(ctx context.Context, voucherID, userID, orderID uint64) (port.AdmitResult, error) {
	voucher := strconv.FormatUint(voucherID, 10)
	keys := []string{
		stockKeyPrefix + voucher,
		orderKeyPrefix + voucher,
		r.streamKey,
	}

	result, err := admitScript.Run(ctx, r.client, keys,
		strconv.FormatUint(userID, 10),
		strconv.FormatUint(orderID, 10),
		voucher,
		strconv.FormatInt(time.Now().UnixMilli(), 10),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("run admit script: %w", err)
	}

	switch result {
	case 0:
		return port.AdmitAccepted, nil
	case 1:
		return port.AdmitOutOfStock, nil
	case 2:
		return port.AdmitAlreadyOrdered, nil
	default:
		return 0, fmt.Errorf("unexpected admit script result: %d", result)
	}
}

func (r *RedisAdapter) SetStock(ctx context.Context, voucherID uint64, stock int) error {
	key := stockKeyPrefix + strconv.FormatUint(voucherID, 10)
	return r.client.Set(ctx, key, stock, 0).Err()
}
