package redis

import (
	"JobPilot/backend/go/internal/config"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis 在这里只有一个用途: tracker 对 jobpilot:inflight:* 键做 SetNX，
// 挡掉同一公司同类任务的重复提交。不存任何业务数据。

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// GetClient 返回进程级的 Redis 客户端，只在第一次调用时拨号。
func GetClient(cfg *config.RedisConfig) (*redis.Client, error) {
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("连接 Redis 失败: %w", err)
			return
		}

		log.Println("✅ Redis 已就绪 (任务在途守卫)")
		client = rdb
	})
	return client, initErr
}

// Close 关闭单例客户端，只在进程退出时调用。
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// HealthCheck 对 Redis 做一次 ping。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("Redis 尚未初始化")
	}
	return client.Ping(ctx).Err()
}
