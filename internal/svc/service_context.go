package svc

import (
	"fmt"

	"asset-splitter-sol/internal/config"
	"asset-splitter-sol/internal/event"
	"asset-splitter-sol/internal/host"
	"asset-splitter-sol/internal/journal"
	"asset-splitter-sol/internal/ledger"
	"asset-splitter-sol/internal/metrics"
	"asset-splitter-sol/internal/mq"
	"asset-splitter-sol/internal/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

const producerFlushTimeoutMs = 5000

// ServiceContext 持有进程级资源
type ServiceContext struct {
	Config   config.SplitterConfig
	Bank     *ledger.Bank
	Host     *host.Host
	Metrics  *metrics.Metrics
	Producer *kafka.Producer // Kafka 未配置时为 nil
	Redis    *redis.Client   // journal 未配置时为 nil
}

// NewServiceContext 按配置初始化日志、账本、Kafka、Redis 与宿主
func NewServiceContext(c config.SplitterConfig) (*ServiceContext, error) {
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	programID, err := c.ParseProgramID()
	if err != nil {
		return nil, fmt.Errorf("invalid program_id: %w", err)
	}

	// 1. 账本
	bank := ledger.NewBank()
	if c.LedgerConf.GenesisFile != "" {
		genesis, err := ledger.LoadGenesisFile(c.LedgerConf.GenesisFile)
		if err != nil {
			return nil, err
		}
		genesis.Apply(bank)
		logger.Infof("[svc] loaded %d genesis accounts from %s", len(genesis.Accounts), c.LedgerConf.GenesisFile)
	}

	sc := &ServiceContext{
		Config:  c,
		Bank:    bank,
		Metrics: metrics.New(),
	}

	// 2. 事件发布：日志 + Kafka（可选）
	publishers := event.MultiPublisher{event.LogPublisher{}}
	if c.KafkaProducerConf.Enabled() {
		producer, err := mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
		if err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		sc.Producer = producer
		publishers = append(publishers, event.NewKafkaPublisher(
			producer,
			c.KafkaProducerConf.Topic,
			c.KafkaProducerConf.Partition,
			c.TimeConf.EventSendTimeout(),
		))
	}

	// 3. 调用记录（可选）
	opts := host.Options{
		Publisher:      publishers,
		Metrics:        sc.Metrics,
		PublishTimeout: c.TimeConf.EventSendTimeout(),
	}
	if c.JournalConf.Enabled() {
		sc.Redis = redis.NewClient(&redis.Options{
			Addr: c.JournalConf.RedisAddr,
			DB:   c.JournalConf.RedisDB,
		})
		opts.Journal = journal.NewRedisJournal(sc.Redis, c.JournalConf.TTL())
	}

	sc.Host = host.New(bank, programID, opts)

	logger.Infof("[svc] 服务上下文初始化完成, program_id=%q kafka=%v journal=%v",
		c.ProgramID, c.KafkaProducerConf.Enabled(), c.JournalConf.Enabled())
	return sc, nil
}

// Close 释放资源；配置了 metrics_file 时先写出指标
func (sc *ServiceContext) Close() {
	if sc.Config.MetricsFile != "" {
		if err := sc.Metrics.WriteTextfile(sc.Config.MetricsFile); err != nil {
			logger.Errorf("[svc] %v", err)
		}
	}
	if sc.Producer != nil {
		if remaining := sc.Producer.Flush(producerFlushTimeoutMs); remaining > 0 {
			logger.Warnf("[svc] %d kafka messages not flushed", remaining)
		}
		sc.Producer.Close()
	}
	if sc.Redis != nil {
		_ = sc.Redis.Close()
	}
	logger.Sync()
}
