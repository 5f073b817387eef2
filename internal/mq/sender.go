package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaJob 一条待发送消息
type KafkaJob struct {
	Topic     string
	Partition int32 // kafka.PartitionAny 表示交给 broker 选择
	Key       []byte
	Value     []byte
	Headers   []kafka.Header
}

// Delivery 单条消息的投递结果
type Delivery struct {
	Job       *KafkaJob
	Partition int32
	Offset    kafka.Offset
	Err       error
}

// Producer 是 Deliver 依赖的最小生产者接口，*kafka.Producer 满足
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

// Deliver 依次提交 jobs，在同一个回执通道上等待 ack，整批共享 timeout（<= 0 表示只受 ctx 约束）。
// 返回值与 jobs 一一对应；超时或取消时尚未确认的消息各自带上对应错误。
func Deliver(ctx context.Context, producer Producer, jobs []*KafkaJob, timeout time.Duration) []Delivery {
	results := make([]Delivery, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	// 容量等于消息数，迟到的回执不会阻塞 librdkafka 的回调线程
	acks := make(chan kafka.Event, len(jobs))
	waiting := make([]bool, len(jobs))
	pending := 0

	for i, job := range jobs {
		results[i] = Delivery{Job: job, Partition: job.Partition}
		err := producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &job.Topic, Partition: job.Partition},
			Key:            job.Key,
			Value:          job.Value,
			Headers:        job.Headers,
			Opaque:         i,
		}, acks)
		if err != nil {
			results[i].Err = fmt.Errorf("produce error: %w", err)
			continue
		}
		waiting[i] = true
		pending++
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for pending > 0 {
		select {
		case e := <-acks:
			msg, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			i, ok := msg.Opaque.(int)
			if !ok || i < 0 || i >= len(results) || !waiting[i] {
				continue
			}
			waiting[i] = false
			pending--
			results[i].Partition = msg.TopicPartition.Partition
			results[i].Offset = msg.TopicPartition.Offset
			results[i].Err = msg.TopicPartition.Error
		case <-expired:
			markWaiting(results, waiting, fmt.Errorf("delivery timeout (>%v)", timeout))
			return results
		case <-ctx.Done():
			markWaiting(results, waiting, fmt.Errorf("ctx cancelled: %w", ctx.Err()))
			return results
		}
	}
	return results
}

func markWaiting(results []Delivery, waiting []bool, err error) {
	for i := range results {
		if waiting[i] {
			results[i].Err = err
		}
	}
}
