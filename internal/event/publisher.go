package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"asset-splitter-sol/internal/mq"
	"asset-splitter-sol/internal/pkg/logger"
	"asset-splitter-sol/internal/pkg/utils"
	"asset-splitter-sol/internal/types"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Kafka 消息头
const (
	HeaderKind   = "event-kind"
	HeaderDigest = "digest"
)

// Publisher 在调用提交后对外发布事件，digest 标识产生事件的那次调用
type Publisher interface {
	Publish(ctx context.Context, digest types.Hash, events []Event) error
}

// LogPublisher 把事件写入日志（对应程序日志里的 "Event: ..." 行）
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, digest types.Hash, events []Event) error {
	for _, ev := range events {
		logger.Infof("Event: %s digest=%s", ev, digest)
	}
	return nil
}

// DeliveryFailure 一条事件未能送达 Kafka
type DeliveryFailure struct {
	Index int // 在本次发布的事件列表中的位置
	Kind  Kind
	Key   types.Pubkey
	Err   error
}

// PublishError 汇总一次发布中失败的事件
type PublishError struct {
	Digest   types.Hash
	Total    int
	Failures []DeliveryFailure
}

func (e *PublishError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("#%d %s key=%s: %v", f.Index, f.Kind, f.Key, f.Err))
	}
	return fmt.Sprintf("kafka publish digest=%s: %d/%d failed: %s",
		e.Digest, len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *PublishError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// KafkaPublisher 编码事件并发送到 Kafka，按 Key 选择分区
type KafkaPublisher struct {
	producer   mq.Producer
	topic      string
	partitions uint32
	timeout    time.Duration
}

// NewKafkaPublisher partitions <= 0 时交给 broker 选择分区
func NewKafkaPublisher(producer mq.Producer, topic string, partitions int, timeout time.Duration) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		timeout:  timeout,
	}
	if partitions > 0 {
		p.partitions = uint32(partitions)
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, digest types.Hash, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	jobs := make([]*mq.KafkaJob, 0, len(events))
	for _, ev := range events {
		value, err := Encode(ev)
		if err != nil {
			return err
		}
		key := ev.Key()
		partition := kafka.PartitionAny
		if p.partitions > 0 {
			partition = int32(utils.PartitionHashBytes(key[:], p.partitions))
		}
		jobs = append(jobs, &mq.KafkaJob{
			Topic:     p.topic,
			Partition: partition,
			Key:       key[:],
			Value:     value,
			Headers: []kafka.Header{
				{Key: HeaderKind, Value: []byte(ev.Kind().String())},
				{Key: HeaderDigest, Value: []byte(digest.String())},
			},
		})
	}

	var pubErr *PublishError
	for i, res := range mq.Deliver(ctx, p.producer, jobs, p.timeout) {
		if res.Err == nil {
			continue
		}
		if pubErr == nil {
			pubErr = &PublishError{Digest: digest, Total: len(events)}
		}
		pubErr.Failures = append(pubErr.Failures, DeliveryFailure{
			Index: i,
			Kind:  events[i].Kind(),
			Key:   events[i].Key(),
			Err:   res.Err,
		})
	}
	if pubErr != nil {
		return pubErr
	}
	return nil
}

// MultiPublisher 依次调用所有 publisher，错误合并返回，不会中断后续 publisher
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, digest types.Hash, events []Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, digest, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
