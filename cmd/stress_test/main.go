package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/voucher-seckill/internal/adapter/storage"
	"github.com/rl1809/voucher-seckill/internal/core/domain"
	"github.com/rl1809/voucher-seckill/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	mysqlDSN      = "root:root@tcp(localhost:3306)/seckill?parseTime=true"
	streamKey     = "stream.stress-orders"
	group         = "stress-g1"
	voucherID     = 9001
	initialStock  = 20
	totalRequests = 50
	workerCount   = 4
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	// Clear previous run
	voucher := strconv.Itoa(voucherID)
	rdb.Del(ctx, "seckill:stock:"+voucher, "seckill:order:"+voucher, streamKey)
	db.ExecContext(ctx, `DELETE FROM orders WHERE voucher_id = ?`, voucherID)

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.SaveVoucher(ctx, domain.Voucher{ID: voucherID, Stock: initialStock}); err != nil {
		log.Fatalf("failed to save voucher: %v", err)
	}

	redisAdapter := storage.NewRedisAdapter(rdb, streamKey)
	idWorker := storage.NewRedisIDWorker(rdb)
	stream := storage.NewRedisStream(rdb, streamKey, group, time.Second)
	locks := storage.NewRedisLockManager(rdb)

	if err := stream.EnsureGroup(ctx); err != nil {
		log.Fatalf("failed to ensure group: %v", err)
	}

	seckillService := service.NewSeckillService(redisAdapter, mysqlAdapter, idWorker)
	if err := seckillService.SyncStock(ctx, voucherID); err != nil {
		log.Fatalf("failed to sync stock: %v", err)
	}

	// Materialize in background
	var workerWG sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		worker := service.NewWorker(stream, mysqlAdapter, locks, fmt.Sprintf("stress-w%d", i), zap.NewNop())
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			worker.Run(ctx)
		}()
	}

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()

			_, err := seckillService.Purchase(ctx, voucherID, userID)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrSoldOut):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(uint64(i + 1))
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Give the workers time to drain the stream
	time.Sleep(2 * time.Second)
	cancel()
	workerWG.Wait()

	orderCount, err := mysqlAdapter.CountOrders(context.Background(), voucherID)
	if err != nil {
		log.Fatalf("failed to count orders: %v", err)
	}

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:     %d\n", initialStock)
	fmt.Printf("Total Requests:    %d\n", totalRequests)
	fmt.Printf("Admitted:          %d\n", success)
	fmt.Printf("Sold Out:          %d\n", soldOut)
	fmt.Printf("Other Failures:    %d\n", otherCount.Load())
	fmt.Printf("Admission Time:    %v\n", elapsed)
	fmt.Printf("Materialized:      %d\n", orderCount)
	fmt.Println("==========================================")

	if success == int32(initialStock) && soldOut == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d admissions succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d admitted/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	if orderCount == initialStock {
		fmt.Printf("PASS: All %d admitted reservations materialized\n", initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d orders, got %d\n", initialStock, orderCount)
	}

	finalStock, _ := rdb.Get(context.Background(), "seckill:stock:"+voucher).Int()
	fmt.Printf("Final Redis Stock: %d\n", finalStock)
}
