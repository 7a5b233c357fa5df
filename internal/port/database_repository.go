package port

import (
	"context"

	"github.com/rl1809/voucher-seckill/internal/core/domain"
)

// CreateResult is the outcome of one materialization attempt.
type CreateResult int

const (
	OrderCreated CreateResult = iota
	OrderDuplicate
	OrderOutOfStock
)

type DatabaseRepository interface {
	// CreateOrder materializes a reservation inside one transaction:
	// re-checks (user, voucher) uniqueness, conditionally decrements
	// authoritative stock, then inserts the order row.
	CreateOrder(ctx context.Context, order domain.Order) (CreateResult, error)

	// GetVoucher retrieves a voucher by ID, nil if not found
	GetVoucher(ctx context.Context, voucherID uint64) (*domain.Voucher, error)

	// SaveVoucher inserts or replaces a voucher row
	SaveVoucher(ctx context.Context, voucher domain.Voucher) error

	// CountOrders returns the number of materialized orders for a voucher
	CountOrders(ctx context.Context, voucherID uint64) (int, error)
}
