package mongo

import (
	"JobPilot/backend/go/internal/config"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB 承载 task 记录: tracker 写入提交，worker 回写结果，
// CLI 通过 GET /api/tasks/:id 轮询。

const dialTimeout = 10 * time.Second

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// GetClient 返回进程级的 MongoDB 客户端，只在第一次调用时拨号。
func GetClient(cfg *config.MongoConfig) (*mongo.Client, error) {
	once.Do(func() {
		client, initErr = connect(cfg)
	})
	return client, initErr
}

func connect(cfg *config.MongoConfig) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(cfg.Address)
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	c, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("连接 MongoDB 失败: %w", err)
	}
	if err := c.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB 失败: %w", err)
	}

	log.Println("✅ MongoDB 已就绪 (task 记录)")
	return c, nil
}

// Close 断开单例客户端，只在进程退出时调用。
func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// HealthCheck 对 MongoDB 做一次 ping，worker 的 /healthz 用它。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("MongoDB 尚未初始化")
	}
	return client.Ping(ctx, readpref.Primary())
}
