package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/voucher-seckill/internal/port"
	"github.com/rl1809/voucher-seckill/internal/telemetry"
)

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrSaleNotStarted  = errors.New("sale has not started")
	ErrSaleEnded       = errors.New("sale has ended")
	ErrSoldOut         = errors.New("sold out")
	ErrAlreadyOrdered  = errors.New("already ordered")
)

const orderIDPrefix = "order"

// SeckillService is the synchronous admission path. It decides accept or
// reject against the Redis mirror only; the authoritative write happens
// later, asynchronously, in the worker. Any infrastructure error here fails
// closed: the request is rejected rather than admitted blindly.
type SeckillService struct {
	cache port.CacheRepository
	db    port.DatabaseRepository
	ids   port.IDGenerator
}

func NewSeckillService(cache port.CacheRepository, db port.DatabaseRepository, ids port.IDGenerator) *SeckillService {
	return &SeckillService{cache: cache, db: db, ids: ids}
}

// Purchase admits or rejects a buy attempt. On admission the reservation
// event is already in the intake stream (appended atomically with the
// decision) and the returned order id refers to an order that will
// materialize asynchronously.
func (s *SeckillService) Purchase(ctx context.Context, voucherID, userID uint64) (uint64, error) {
	voucher, err := s.db.GetVoucher(ctx, voucherID)
	if err != nil {
		telemetry.AdmissionsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("load voucher: %w", err)
	}
	if voucher == nil {
		return 0, ErrVoucherNotFound
	}

	now := time.Now()
	if !voucher.BeginTime.IsZero() && now.Before(voucher.BeginTime) {
		return 0, ErrSaleNotStarted
	}
	if !voucher.EndTime.IsZero() && !now.Before(voucher.EndTime) {
		return 0, ErrSaleEnded
	}

	orderID, err := s.ids.NextID(ctx, orderIDPrefix)
	if err != nil {
		telemetry.AdmissionsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("generate order id: %w", err)
	}

	result, err := s.cache.Admit(ctx, voucherID, userID, orderID)
	if err != nil {
		telemetry.AdmissionsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("admit: %w", err)
	}

	switch result {
	case port.AdmitOutOfStock:
		telemetry.AdmissionsTotal.WithLabelValues("out_of_stock").Inc()
		return 0, ErrSoldOut
	case port.AdmitAlreadyOrdered:
		telemetry.AdmissionsTotal.WithLabelValues("already_ordered").Inc()
		return 0, ErrAlreadyOrdered
	}

	telemetry.AdmissionsTotal.WithLabelValues("accepted").Inc()
	return orderID, nil
}

// SyncStock mirrors the voucher's authoritative stock into the admission
// counter. Called at startup and whenever a voucher is (re)published.
func (s *SeckillService) SyncStock(ctx context.Context, voucherID uint64) error {
	voucher, err := s.db.GetVoucher(ctx, voucherID)
	if err != nil {
		return fmt.Errorf("load voucher: %w", err)
	}
	if voucher == nil {
		return ErrVoucherNotFound
	}
	return s.cache.SetStock(ctx, voucherID, voucher.Stock)
}
