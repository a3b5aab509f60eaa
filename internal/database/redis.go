package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis and verifies it answers a ping. When tracing is
// set the client is instrumented with redisotel.
func OpenRedis(ctx context.Context, cfg *config.Config, tracing bool) (*redis.Client, error) {
	log := slogging.Get()
	addr := cfg.RedisAddress()
	log.Debug("Initializing Redis connection to %s DB=%d", addr, cfg.Redis.DB)

	client := redis.NewClient(&redis.Options{
		Addr:            addr,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	})

	if tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error("Failed to ping Redis: %v", err)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Debug("Redis connection established successfully")

	return client, nil
}
