package config

import (
	"time"

	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/mq"
	"asset-splitter-sol/internal/pkg/logger"
	"asset-splitter-sol/internal/types"
)

type LogConfig struct {
	Format   string `json:"format,default=console"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`       // 日志目录，为空只输出到 stdout
	Level    string `json:"level,default=info"`     // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"`      // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// KafkaProducerConfig Kafka 生产者配置，Brokers 为空表示不发布到 Kafka
type KafkaProducerConfig struct {
	Brokers   string `json:"brokers,optional"`          // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `json:"batch_size,optional"`       // 批处理大小（单位字节）
	LingerMs  int    `json:"linger_ms,default=5"`       // 批处理最大延迟（毫秒）
	Topic     string `json:"topic,default=split-event"` // 拆分事件 topic
	Partition int    `json:"partitions,default=4"`      // topic 分区数
}

func (c *KafkaProducerConfig) Enabled() bool {
	return c.Brokers != ""
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics: []mq.TopicOption{
			{Topic: c.Topic, Partitions: c.Partition},
		},
	}
}

// TimeConfig 超时配置（单位：毫秒）
type TimeConfig struct {
	EventSendTimeoutMs int `json:"event_send_timeout_ms,default=2000"` // 单条事件发送到 Kafka 并等待 ack 的超时时间
}

func (c *TimeConfig) EventSendTimeout() time.Duration {
	if c.EventSendTimeoutMs <= 0 {
		return consts.DefaultEventPublishTimeout
	}
	return time.Duration(c.EventSendTimeoutMs) * time.Millisecond
}

// JournalConfig 调用记录，RedisAddr 为空表示不记录
type JournalConfig struct {
	RedisAddr string `json:"redis_addr,optional"`
	RedisDB   int    `json:"redis_db,optional"`
	TTLSec    int    `json:"ttl_sec,default=86400"`
}

func (c *JournalConfig) Enabled() bool {
	return c.RedisAddr != ""
}

func (c *JournalConfig) TTL() time.Duration {
	if c.TTLSec <= 0 {
		return consts.DefaultJournalTTL
	}
	return time.Duration(c.TTLSec) * time.Second
}

// LedgerConfig 内存账本初始状态
type LedgerConfig struct {
	GenesisFile string `json:"genesis_file,optional"` // 为空时从空账本开始
}

// SplitterConfig 主配置
type SplitterConfig struct {
	LogConf           LogConfig           `json:"logger,optional"`
	ProgramID         string              `json:"program_id,optional"` // 为空时不校验调用的程序 ID
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional"`
	TimeConf          TimeConfig          `json:"time_conf,optional"`
	JournalConf       JournalConfig       `json:"journal,optional"`
	LedgerConf        LedgerConfig        `json:"ledger,optional"`
	MetricsFile       string              `json:"metrics_file,optional"` // 非空时退出前写出 Prometheus textfile
}

// ParseProgramID 解析 ProgramID，为空返回零值
func (c *SplitterConfig) ParseProgramID() (types.Pubkey, error) {
	if c.ProgramID == "" {
		return types.Pubkey{}, nil
	}
	return types.TryPubkeyFromBase58(c.ProgramID)
}
