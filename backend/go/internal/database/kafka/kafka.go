package kafka

import (
	"JobPilot/backend/go/internal/config"
	"fmt"
	"log"
	"sync"

	"github.com/segmentio/kafka-go"
)

var (
	conn    *kafka.Conn
	once    sync.Once
	initErr error
)

// EnsureTopics 使用单例模式建立一条 Kafka 管理连接，
// 并确保配置中列出的主题全部存在 (不存在时自动创建)。
// tracker_service 与 pipeline_worker 启动时都会调用它。
func EnsureTopics(cfg *config.KafkaConfig) error {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("未配置 Kafka brokers")
			return
		}
		if len(cfg.Topics) == 0 {
			initErr = fmt.Errorf("未配置 Kafka topics")
			return
		}

		// 1. 建立管理连接
		c, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("kafka 初始化连接失败: %w", err)
			return
		}

		// 2. 获取已存在的主题
		partitions, err := c.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
			c.Close()
			return
		}
		existingTopics := make(map[string]struct{})
		for _, p := range partitions {
			existingTopics[p.Topic] = struct{}{}
		}

		// 3. 遍历并创建不存在的主题
		var topicsToCreate []kafka.TopicConfig
		for _, topicName := range cfg.Topics {
			if _, exists := existingTopics[topicName]; !exists {
				log.Printf("主题 '%s' 不存在，准备创建...", topicName)
				topicsToCreate = append(topicsToCreate, kafka.TopicConfig{
					Topic:             topicName,
					NumPartitions:     1,
					ReplicationFactor: 1,
				})
			}
		}

		if len(topicsToCreate) > 0 {
			if err := c.CreateTopics(topicsToCreate...); err != nil {
				initErr = fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
				c.Close()
				return
			}
			log.Printf("成功创建 %d 个 Kafka 主题。", len(topicsToCreate))
		}

		log.Println("✅ 成功初始化 Kafka 管理连接!")
		conn = c
	})

	return initErr
}

// Close 安全地关闭单例的 Kafka 管理连接。
func Close() error {
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// HealthCheck 检查 Kafka 连接的健康状况。
func HealthCheck() error {
	if conn == nil {
		return fmt.Errorf("kafka 管理连接未初始化，无法进行健康检查")
	}
	_, err := conn.Controller()
	return err
}
