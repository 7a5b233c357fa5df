package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/voucher-seckill/internal/core/domain"
	"github.com/rl1809/voucher-seckill/internal/port"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// CreateOrder turns an admitted reservation into the authoritative order
// row. The uniqueness re-check, the conditional stock decrement and the
// insert all run inside one transaction, so a crash mid-attempt leaves no
// partial state. Duplicate and drained-stock outcomes are not errors: the
// caller treats them as idempotent skips and still acknowledges the event.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) (port.CreateResult, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id = ? AND voucher_id = ?`,
		order.UserID, order.VoucherID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("check existing order: %w", err)
	}
	if count > 0 {
		return port.OrderDuplicate, nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE seckill_vouchers
		SET stock = stock - 1, version = version + 1, updated_at = NOW()
		WHERE voucher_id = ? AND stock > 0`,
		order.VoucherID,
	)
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.OrderOutOfStock, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, voucher_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.VoucherID, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return port.OrderCreated, nil
}

func (m *MySQLAdapter) GetVoucher(ctx context.Context, voucherID uint64) (*domain.Voucher, error) {
	var (
		v          domain.Voucher
		begin, end sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT voucher_id, stock, begin_time, end_time, version, created_at, updated_at
		FROM seckill_vouchers WHERE voucher_id = ?`, voucherID,
	).Scan(&v.ID, &v.Stock, &begin, &end, &v.Version, &v.CreatedAt, &v.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query voucher: %w", err)
	}

	if begin.Valid {
		v.BeginTime = begin.Time
	}
	if end.Valid {
		v.EndTime = end.Time
	}
	return &v, nil
}

func (m *MySQLAdapter) SaveVoucher(ctx context.Context, voucher domain.Voucher) error {
	var begin, end interface{}
	if !voucher.BeginTime.IsZero() {
		begin = voucher.BeginTime
	}
	if !voucher.EndTime.IsZero() {
		end = voucher.EndTime
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO seckill_vouchers (voucher_id, stock, begin_time, end_time, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			stock = VALUES(stock), begin_time = VALUES(begin_time),
			end_time = VALUES(end_time), version = VALUES(version),
			updated_at = VALUES(updated_at)`,
		voucher.ID, voucher.Stock, begin, end, voucher.Version,
		time.Now(), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save voucher: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CountOrders(ctx context.Context, voucherID uint64) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE voucher_id = ?`, voucherID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}
