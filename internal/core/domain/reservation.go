package domain

import "time"

// Reservation is the unit of work handed from admission to materialization.
// It lives in the intake stream between the admission decision and the
// acknowledgement that follows a successful (or idempotently skipped)
// materialization.
type Reservation struct {
	OrderID    uint64
	UserID     uint64
	VoucherID  uint64
	AdmittedAt time.Time
}
