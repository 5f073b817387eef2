// Package journal 在 Redis 中记录每条指令（按数据摘要）最近一次的执行结果与提交次数。
// 只用于观测重复提交，不参与是否执行的判断。
package journal

import (
	"context"
	"fmt"
	"time"

	"asset-splitter-sol/internal/types"

	"github.com/redis/go-redis/v9"
)

// Status 最近一次执行结果
type Status int

const (
	StatusUnknown   Status = 0
	StatusSucceeded Status = 1
	StatusFailed    Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	statusPrefix = "splitter:journal:status"
	countPrefix  = "splitter:journal:count"
)

// Entry 某条指令的记录
type Entry struct {
	Status Status
	Count  int64 // TTL 窗口内的提交次数
}

// RedisJournal 基于 Redis 的调用记录
type RedisJournal struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisJournal(rdb *redis.Client, ttl time.Duration) *RedisJournal {
	return &RedisJournal{rdb: rdb, ttl: ttl}
}

func (j *RedisJournal) statusKey(digest types.Hash) string {
	return fmt.Sprintf("%s:%s", statusPrefix, digest)
}

func (j *RedisJournal) countKey(digest types.Hash) string {
	return fmt.Sprintf("%s:%s", countPrefix, digest)
}

// Record 写入本次结果并累加提交次数，返回累加后的次数
func (j *RedisJournal) Record(ctx context.Context, digest types.Hash, status Status) (int64, error) {
	var incr *redis.IntCmd
	_, err := j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, j.statusKey(digest), int(status), j.ttl)
		incr = pipe.Incr(ctx, j.countKey(digest))
		if j.ttl > 0 {
			pipe.Expire(ctx, j.countKey(digest), j.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis record error: %w", err)
	}
	return incr.Val(), nil
}

// Get 查询记录；不存在时返回 StatusUnknown 与 0 次
func (j *RedisJournal) Get(ctx context.Context, digest types.Hash) (Entry, error) {
	var entry Entry

	val, err := j.rdb.Get(ctx, j.statusKey(digest)).Int()
	switch {
	case err == redis.Nil:
		return entry, nil
	case err != nil:
		return entry, fmt.Errorf("redis get error: %w", err)
	}
	switch Status(val) {
	case StatusSucceeded, StatusFailed:
		entry.Status = Status(val)
	default:
		entry.Status = StatusUnknown // 容错处理
	}

	count, err := j.rdb.Get(ctx, j.countKey(digest)).Int64()
	if err != nil && err != redis.Nil {
		return entry, fmt.Errorf("redis get error: %w", err)
	}
	entry.Count = count
	return entry, nil
}
