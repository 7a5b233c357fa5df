package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the authoritative record of one voucher sale. At most one order
// exists per (user, voucher) pair and the row is never mutated after creation.
type Order struct {
	ID        uint64
	UserID    uint64
	VoucherID uint64
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
