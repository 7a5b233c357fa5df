package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/voucher-seckill/internal/core/domain"
	"github.com/rl1809/voucher-seckill/internal/port"
	"github.com/rl1809/voucher-seckill/internal/telemetry"
)

// errLockBusy marks an attempt abandoned because another worker holds the
// per-user lock. The event stays unacknowledged and will be redelivered.
var errLockBusy = errors.New("order lock held elsewhere")

const (
	lockLease      = 10 * time.Second
	pendingBackoff = 20 * time.Millisecond
	readBackoff    = time.Second
)

// Worker runs one sequential consumer loop over the intake stream and
// materializes admitted reservations. Delivery is at-least-once; the
// materializer's re-checks inside the transaction are what make the end
// result effectively-once.
type Worker struct {
	queue    port.QueueRepository
	db       port.DatabaseRepository
	locks    port.LockManager
	consumer string
	logger   *zap.Logger
}

func NewWorker(queue port.QueueRepository, db port.DatabaseRepository, locks port.LockManager, consumer string, logger *zap.Logger) *Worker {
	return &Worker{
		queue:    queue,
		db:       db,
		locks:    locks,
		consumer: consumer,
		logger:   logger.With(zap.String("consumer", consumer)),
	}
}

// Run consumes the stream until ctx is cancelled. A failed attempt leaves
// the entry in this consumer's pending view and falls into DrainPending, so
// nothing admitted is ever silently lost.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.queue.ReadGroup(ctx, w.consumer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("read intake stream", zap.Error(err))
			sleep(ctx, readBackoff)
			continue
		}
		if msg == nil {
			continue
		}

		if err := w.handle(ctx, msg); err != nil {
			w.logger.Error("handle reservation", zap.String("entry", msg.ID), zap.Error(err))
			w.DrainPending(ctx)
		}
	}
}

// Sweep periodically re-runs the materializer protocol for entries this
// consumer received but never acknowledged, e.g. after a crash/restart.
func (w *Worker) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainPending(ctx)
		}
	}
}

// DrainPending replays this consumer's unacknowledged entries from the
// start of the stream until the pending view is empty.
func (w *Worker) DrainPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := w.queue.ReadPending(ctx, w.consumer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("read pending entries", zap.Error(err))
			sleep(ctx, readBackoff)
			continue
		}
		if msg == nil {
			return
		}

		telemetry.PendingRedeliveriesTotal.Inc()

		if err := w.handle(ctx, msg); err != nil {
			w.logger.Error("handle pending reservation", zap.String("entry", msg.ID), zap.Error(err))
			sleep(ctx, pendingBackoff)
		}
	}
}

// handle materializes one reservation under the per-user lock and
// acknowledges the entry afterwards. Returning an error means the entry was
// not acknowledged and stays pending.
func (w *Worker) handle(ctx context.Context, msg *port.Message) error {
	// identity always comes from the reservation event: this code runs
	// asynchronously and has no request-scoped caller
	res := msg.Reservation

	lock := w.locks.OrderLock(res.UserID)
	ok, err := lock.TryLock(ctx, lockLease)
	if err != nil {
		return err
	}
	if !ok {
		return errLockBusy
	}

	result, err := w.db.CreateOrder(ctx, domain.Order{
		ID:        res.OrderID,
		UserID:    res.UserID,
		VoucherID: res.VoucherID,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})

	if unlockErr := lock.Unlock(ctx); unlockErr != nil {
		w.logger.Warn("release order lock", zap.Uint64("user_id", res.UserID), zap.Error(unlockErr))
	}

	if err != nil {
		return err
	}

	switch result {
	case port.OrderCreated:
		telemetry.MaterializationsTotal.WithLabelValues("created").Inc()
		w.logger.Info("order materialized",
			zap.Uint64("order_id", res.OrderID),
			zap.Uint64("user_id", res.UserID),
			zap.Uint64("voucher_id", res.VoucherID))
	case port.OrderDuplicate:
		// admission-layer drift: the gate should have rejected this
		telemetry.MaterializationsTotal.WithLabelValues("duplicate_skipped").Inc()
		w.logger.Warn("duplicate reservation skipped",
			zap.Uint64("order_id", res.OrderID),
			zap.Uint64("user_id", res.UserID))
	case port.OrderOutOfStock:
		telemetry.MaterializationsTotal.WithLabelValues("out_of_stock_skipped").Inc()
		w.logger.Warn("authoritative stock drained, reservation skipped",
			zap.Uint64("order_id", res.OrderID),
			zap.Uint64("voucher_id", res.VoucherID))
	}

	return w.queue.Ack(ctx, msg.ID)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
