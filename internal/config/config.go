package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the seckill service
type Config struct {
	ServiceName string
	HTTPAddr    string
	MySQLDSN    string
	RedisAddr   string
	LogLevel    string

	StreamKey     string
	ConsumerGroup string
	ConsumerName  string
	WorkerCount   int
	ReadBlockTime time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "c1"
	}

	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "voucher-seckill"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:    getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/seckill?parseTime=true"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StreamKey:     getEnv("STREAM_KEY", "stream.orders"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "g1"),
		ConsumerName:  getEnv("CONSUMER_NAME", hostname),
		WorkerCount:   getEnvInt("WORKER_COUNT", 4),
		ReadBlockTime: getEnvDuration("READ_BLOCK_TIME", 2*time.Second),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
