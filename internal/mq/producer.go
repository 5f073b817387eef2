package mq

import (
	"context"
	"fmt"
	"os"
	"time"

	"asset-splitter-sol/internal/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	defaultBatchSize = 32 * 1024
	defaultLingerMs  = 5
	adminTimeout     = 10 * time.Second
)

// TopicOption 需要确保存在的 topic
type TopicOption struct {
	Topic      string // topic 名称
	Partitions int    // 分区数
}

type KafkaProducerOption struct {
	Brokers   string // Kafka broker 地址，多个用英文逗号分隔（如 "localhost:9092,localhost:9093"）
	BatchSize int    // 批处理大小（单位字节），如 32768 = 32KB
	LingerMs  int    // 批处理最大延迟（毫秒），建议 5~20ms 之间

	Topics []TopicOption
}

// NewKafkaProducer 创建 Kafka 生产者，缺失的 topic 会先通过 admin client 创建
func NewKafkaProducer(cfg KafkaProducerOption) (*kafka.Producer, error) {
	if err := ensureTopics(cfg); err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	lingerMs := cfg.LingerMs
	if lingerMs < 0 {
		lingerMs = defaultLingerMs
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         fmt.Sprintf("asset-splitter-%s", host),

		// 可靠性保障
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5, // 幂等场景下最大值为 5

		// 超时与重试
		"delivery.timeout.ms": 30000,
		"request.timeout.ms":  30000,
		"retries":             5,
		"retry.backoff.ms":    100,

		"batch.size":       batchSize,
		"linger.ms":        lingerMs,
		"compression.type": "none",

		"message.max.bytes": 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return producer, nil
}

func ensureTopics(cfg KafkaProducerOption) error {
	if len(cfg.Topics) == 0 {
		return nil
	}

	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer adminClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	meta, err := adminClient.GetMetadata(nil, true, int(adminTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	brokerCount := len(meta.Brokers)

	replicationFactor := 1
	if brokerCount > 1 {
		replicationFactor = 2
	}
	logger.Infof("[mq] Kafka broker count = %d, using replication factor = %d", brokerCount, replicationFactor)

	existing := make(map[string]bool, len(meta.Topics))
	for _, topic := range meta.Topics {
		existing[topic.Topic] = true
	}

	var toCreate []kafka.TopicSpecification
	for _, topic := range cfg.Topics {
		if topic.Topic == "" || existing[topic.Topic] {
			continue
		}
		partitions := topic.Partitions
		if partitions <= 0 {
			partitions = 1
		}
		toCreate = append(toCreate, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}
	if len(toCreate) == 0 {
		return nil
	}

	results, err := adminClient.CreateTopics(ctx, toCreate)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	for _, result := range results {
		if code := result.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %w", result.Topic, result.Error)
		}
		logger.Infof("[mq] topic %s ready", result.Topic)
	}
	return nil
}
