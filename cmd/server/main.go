package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/voucher-seckill/internal/adapter/handler"
	"github.com/rl1809/voucher-seckill/internal/adapter/storage"
	"github.com/rl1809/voucher-seckill/internal/config"
	"github.com/rl1809/voucher-seckill/internal/core/service"
	"github.com/rl1809/voucher-seckill/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal("connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal("ping mysql", zap.Error(err))
	}
	log.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}
	log.Info("connected to redis")

	// Adapters
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.StreamKey)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	stream := storage.NewRedisStream(rdb, cfg.StreamKey, cfg.ConsumerGroup, cfg.ReadBlockTime)
	locks := storage.NewRedisLockManager(rdb)
	idWorker := storage.NewRedisIDWorker(rdb)

	if err := stream.EnsureGroup(ctx); err != nil {
		log.Fatal("ensure consumer group", zap.Error(err))
	}

	seckillService := service.NewSeckillService(redisAdapter, mysqlAdapter, idWorker)

	// Worker pool: one consumer loop plus one recovery sweeper per worker
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		consumer := fmt.Sprintf("%s-w%d", cfg.ConsumerName, i)
		worker := service.NewWorker(stream, mysqlAdapter, locks, consumer, log)

		wg.Add(2)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			worker.Sweep(ctx, cfg.SweepInterval)
		}()
	}
	log.Info("started workers", zap.Int("count", cfg.WorkerCount))

	// HTTP server
	httpHandler := handler.NewHTTPHandler(seckillService)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/seckill", httpHandler.Seckill)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("http server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("http server stopped")

	cancel()
	wg.Wait()
	log.Info("workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}
