package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/voucher-seckill/internal/core/domain"
	"github.com/rl1809/voucher-seckill/internal/port"
)

// RedisStream is the durable intake log: an append-only stream consumed
// through a named group, so each reservation event is delivered to exactly
// one active consumer and stays in that consumer's pending view until it is
// explicitly acknowledged.
type RedisStream struct {
	client    *redis.Client
	streamKey string
	group     string
	blockTime time.Duration
}

func NewRedisStream(client *redis.Client, streamKey, group string, blockTime time.Duration) *RedisStream {
	return &RedisStream{
		client:    client,
		streamKey: streamKey,
		group:     group,
		blockTime: blockTime,
	}
}

func (s *RedisStream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.streamKey, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (s *RedisStream) ReadGroup(ctx context.Context, consumer string) (*port.Message, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.streamKey, ">"},
		Count:    1,
		Block:    s.blockTime,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read group: %w", err)
	}

	return firstMessage(streams)
}

func (s *RedisStream) ReadPending(ctx context.Context, consumer string) (*port.Message, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{s.streamKey, "0"},
		Count:    1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending: %w", err)
	}

	return firstMessage(streams)
}

func (s *RedisStream) Ack(ctx context.Context, id string) error {
	if err := s.client.XAck(ctx, s.streamKey, s.group, id).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

func firstMessage(streams []redis.XStream) (*port.Message, error) {
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	res, err := parseReservation(msg.Values)
	if err != nil {
		return nil, fmt.Errorf("parse entry %s: %w", msg.ID, err)
	}

	return &port.Message{ID: msg.ID, Reservation: res}, nil
}

func parseReservation(values map[string]interface{}) (domain.Reservation, error) {
	var res domain.Reservation

	orderID, err := parseUintField(values, "orderId")
	if err != nil {
		return res, err
	}
	userID, err := parseUintField(values, "userId")
	if err != nil {
		return res, err
	}
	voucherID, err := parseUintField(values, "voucherId")
	if err != nil {
		return res, err
	}

	res.OrderID = orderID
	res.UserID = userID
	res.VoucherID = voucherID

	// admittedAt is informational, a missing field is not fatal
	if raw, ok := values["admittedAt"].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			res.AdmittedAt = time.UnixMilli(ms)
		}
	}

	return res, nil
}

func parseUintField(values map[string]interface{}, field string) (uint64, error) {
	raw, ok := values[field].(string)
	if !ok {
		return 0, fmt.Errorf("missing field %q", field)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}
