package mysql

import (
	"JobPilot/backend/go/internal/config"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQL 只承载 companies 表，即每家公司招聘会话的当前状态。
// 任务历史不在这里，见 internal/database/mongo。

var (
	db      *gorm.DB
	once    sync.Once
	initErr error
)

// GetDB 返回进程级的 GORM 实例，整个进程只拨号一次，
// 之后的调用拿到同一个连接池。
func GetDB(cfg *config.MySQLConfig) (*gorm.DB, error) {
	once.Do(func() {
		db, initErr = connect(cfg)
	})
	return db, initErr
}

func connect(cfg *config.MySQLConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Address, cfg.Database)

	conn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	// companies 表的读写都很轻，连接池按配置收紧即可。
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	log.Println("✅ MySQL 已就绪 (companies 表)")
	return conn, nil
}

// Close 关闭单例连接池，只在进程退出时调用。
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck 对 MySQL 做一次 ping。
func HealthCheck(ctx context.Context) error {
	if db == nil {
		return fmt.Errorf("MySQL 尚未初始化")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
