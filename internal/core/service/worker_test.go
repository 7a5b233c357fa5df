package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/voucher-seckill/internal/core/domain"
	"github.com/rl1809/voucher-seckill/internal/port"
)

type mockQueue struct {
	mu      sync.Mutex
	fresh   []*port.Message
	pending []*port.Message
	acked   []string
	readErr error
}

func (q *mockQueue) EnsureGroup(ctx context.Context) error { return nil }

func (q *mockQueue) ReadGroup(ctx context.Context, consumer string) (*port.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.readErr != nil {
		return nil, q.readErr
	}
	if len(q.fresh) == 0 {
		return nil, nil
	}
	msg := q.fresh[0]
	q.fresh = q.fresh[1:]
	q.pending = append(q.pending, msg)
	return msg, nil
}

func (q *mockQueue) ReadPending(ctx context.Context, consumer string) (*port.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, nil
	}
	return q.pending[0], nil
}

func (q *mockQueue) Ack(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.acked = append(q.acked, id)
	for i, msg := range q.pending {
		if msg.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return nil
}

type mockOrderDB struct {
	mu      sync.Mutex
	result  port.CreateResult
	err     error
	created []domain.Order
}

func (m *mockOrderDB) CreateOrder(ctx context.Context, order domain.Order) (port.CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}
	if m.result == port.OrderCreated {
		m.created = append(m.created, order)
	}
	return m.result, nil
}

func (m *mockOrderDB) GetVoucher(ctx context.Context, voucherID uint64) (*domain.Voucher, error) {
	return nil, nil
}

func (m *mockOrderDB) SaveVoucher(ctx context.Context, voucher domain.Voucher) error { return nil }

func (m *mockOrderDB) CountOrders(ctx context.Context, voucherID uint64) (int, error) {
	return len(m.created), nil
}

type mockLockManager struct {
	busy   bool
	lockMu sync.Mutex
	held   map[uint64]bool
}

func newMockLockManager() *mockLockManager {
	return &mockLockManager{held: make(map[uint64]bool)}
}

func (m *mockLockManager) OrderLock(userID uint64) port.Lock {
	return &mockLock{manager: m, userID: userID}
}

type mockLock struct {
	manager *mockLockManager
	userID  uint64
}

func (l *mockLock) TryLock(ctx context.Context, lease time.Duration) (bool, error) {
	l.manager.lockMu.Lock()
	defer l.manager.lockMu.Unlock()

	if l.manager.busy || l.manager.held[l.userID] {
		return false, nil
	}
	l.manager.held[l.userID] = true
	return true, nil
}

func (l *mockLock) Unlock(ctx context.Context) error {
	l.manager.lockMu.Lock()
	defer l.manager.lockMu.Unlock()
	delete(l.manager.held, l.userID)
	return nil
}

func reservationMessage(id string, orderID, userID, voucherID uint64) *port.Message {
	return &port.Message{
		ID: id,
		Reservation: domain.Reservation{
			OrderID: orderID, UserID: userID, VoucherID: voucherID, AdmittedAt: time.Now(),
		},
	}
}

func newTestWorker(queue *mockQueue, db *mockOrderDB, locks *mockLockManager) *Worker {
	return NewWorker(queue, db, locks, "test-c1", zap.NewNop())
}

func TestHandle_CreatedAndAcked(t *testing.T) {
	queue := &mockQueue{}
	db := &mockOrderDB{result: port.OrderCreated}
	locks := newMockLockManager()
	w := newTestWorker(queue, db, locks)

	msg := reservationMessage("1-0", 80001, 61, 501)
	err := w.handle(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, db.created, 1)
	order := db.created[0]
	// identity comes from the reservation, not from any ambient context
	assert.Equal(t, uint64(80001), order.ID)
	assert.Equal(t, uint64(61), order.UserID)
	assert.Equal(t, uint64(501), order.VoucherID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)

	assert.Equal(t, []string{"1-0"}, queue.acked)
	assert.Empty(t, locks.held, "lock must be released")
}

func TestHandle_DuplicateSkippedStillAcked(t *testing.T) {
	queue := &mockQueue{}
	db := &mockOrderDB{result: port.OrderDuplicate}
	w := newTestWorker(queue, db, newMockLockManager())

	err := w.handle(context.Background(), reservationMessage("2-0", 80002, 62, 501))
	require.NoError(t, err)

	assert.Empty(t, db.created)
	assert.Equal(t, []string{"2-0"}, queue.acked)
}

func TestHandle_OutOfStockSkippedStillAcked(t *testing.T) {
	queue := &mockQueue{}
	db := &mockOrderDB{result: port.OrderOutOfStock}
	w := newTestWorker(queue, db, newMockLockManager())

	err := w.handle(context.Background(), reservationMessage("3-0", 80003, 63, 501))
	require.NoError(t, err)

	assert.Empty(t, db.created)
	assert.Equal(t, []string{"3-0"}, queue.acked)
}

func TestHandle_LockBusyLeavesEventPending(t *testing.T) {
	queue := &mockQueue{}
	db := &mockOrderDB{result: port.OrderCreated}
	locks := newMockLockManager()
	locks.busy = true
	w := newTestWorker(queue, db, locks)

	err := w.handle(context.Background(), reservationMessage("4-0", 80004, 64, 501))
	assert.ErrorIs(t, err, errLockBusy)

	assert.Empty(t, db.created)
	assert.Empty(t, queue.acked, "a contended attempt must not acknowledge")
}

func TestHandle_DBErrorLeavesEventPending(t *testing.T) {
	queue := &mockQueue{}
	db := &mockOrderDB{err: errors.New("mysql down")}
	locks := newMockLockManager()
	w := newTestWorker(queue, db, locks)

	err := w.handle(context.Background(), reservationMessage("5-0", 80005, 65, 501))
	assert.Error(t, err)

	assert.Empty(t, queue.acked)
	assert.Empty(t, locks.held, "lock must be released even on failure")
}

func TestDrainPending_MaterializesLeftovers(t *testing.T) {
	queue := &mockQueue{
		pending: []*port.Message{
			reservationMessage("6-0", 80006, 66, 501),
			reservationMessage("6-1", 80007, 67, 501),
		},
	}
	db := &mockOrderDB{result: port.OrderCreated}
	w := newTestWorker(queue, db, newMockLockManager())

	w.DrainPending(context.Background())

	assert.Len(t, db.created, 2)
	assert.ElementsMatch(t, []string{"6-0", "6-1"}, queue.acked)
	assert.Empty(t, queue.pending)
}

func TestDrainPending_EmptyReturnsImmediately(t *testing.T) {
	queue := &mockQueue{}
	w := newTestWorker(queue, &mockOrderDB{result: port.OrderCreated}, newMockLockManager())

	done := make(chan struct{})
	go func() {
		w.DrainPending(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DrainPending did not return on empty pending view")
	}
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	queue := &mockQueue{
		fresh: []*port.Message{
			reservationMessage("7-0", 80008, 68, 501),
			reservationMessage("7-1", 80009, 69, 501),
		},
	}
	db := &mockOrderDB{result: port.OrderCreated}
	w := newTestWorker(queue, db, newMockLockManager())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.acked) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}

	assert.Len(t, db.created, 2)
}

func TestRun_RedeliveryIsIdempotent(t *testing.T) {
	// The same reservation delivered twice must materialize once: the second
	// attempt resolves as a duplicate skip and is still acknowledged.
	msg := reservationMessage("8-0", 80010, 70, 501)
	again := reservationMessage("8-1", 80010, 70, 501)

	queue := &mockQueue{fresh: []*port.Message{msg, again}}
	db := &mockOrderDB{result: port.OrderCreated}
	locks := newMockLockManager()
	w := newTestWorker(queue, db, locks)

	require.NoError(t, w.handle(context.Background(), msg))

	// second delivery: the database now reports a duplicate
	db.result = port.OrderDuplicate
	require.NoError(t, w.handle(context.Background(), again))

	assert.Len(t, db.created, 1)
	assert.Equal(t, []string{"8-0", "8-1"}, queue.acked)
}
