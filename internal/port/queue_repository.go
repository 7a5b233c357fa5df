package port

import (
	"context"

	"github.com/rl1809/voucher-seckill/internal/core/domain"
)

// Message is one delivered entry of the intake stream. ID is the stream
// entry id used for acknowledgement.
type Message struct {
	ID          string
	Reservation domain.Reservation
}

type QueueRepository interface {
	// EnsureGroup creates the consumer group if it does not exist yet
	EnsureGroup(ctx context.Context) error

	// ReadGroup blocks up to the configured timeout for a new entry delivered
	// to this consumer. Returns nil when the wait times out with no entry.
	ReadGroup(ctx context.Context, consumer string) (*Message, error)

	// ReadPending returns the oldest entry delivered to this consumer but not
	// yet acknowledged, nil if the pending view is empty.
	ReadPending(ctx context.Context, consumer string) (*Message, error)

	// Ack acknowledges a delivered entry, removing it from the pending view
	Ack(ctx context.Context, id string) error
}
