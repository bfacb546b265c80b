// Package redisclient builds the go-redis client shared by the stats cache
// and the prediction stream.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"wisefido-readmission/internal/config"

	"github.com/go-redis/redis/v8"
)

// HealthTimeout bound on a single health ping
const HealthTimeout = time.Second

// NewRedisClient 创建Redis客户端
// Zero pool and timeout settings keep the go-redis defaults.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Ping 测试Redis连接
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", client.Options().Addr, err)
	}
	return nil
}

// HealthCheck pings client with HealthTimeout for GET /health
func HealthCheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
		defer cancel()
		return Ping(ctx, client)
	}
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
