package domain

import "time"

// Voucher is a sellable item with a strictly limited stock. Stock is
// authoritative in MySQL and mirrored as a Redis counter for admission.
type Voucher struct {
	ID        uint64
	Stock     int
	BeginTime time.Time
	EndTime   time.Time
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}
