package port

import "context"

// AdmitResult is the outcome of the atomic admission step.
type AdmitResult int

const (
	AdmitAccepted AdmitResult = iota
	AdmitOutOfStock
	AdmitAlreadyOrdered
)

type CacheRepository interface {
	// Admit atomically checks remaining stock and per-user uniqueness for a
	// voucher, reserves one unit and appends the reservation event to the
	// intake stream, all as one indivisible step.
	Admit(ctx context.Context, voucherID, userID, orderID uint64) (AdmitResult, error)

	// SetStock mirrors the authoritative stock into the admission counter
	SetStock(ctx context.Context, voucherID uint64, stock int) error
}
