package consts

import (
	"fmt"
	"time"
)

const (
	// LamportsPerSOL 1 SOL = 10^9 lamports
	LamportsPerSOL uint64 = 1_000_000_000

	// DefaultEventPublishTimeout 事件发布（Kafka ack）的默认超时
	DefaultEventPublishTimeout = 2 * time.Second

	// DefaultJournalTTL 调用日志在 Redis 中的默认保留时间
	DefaultJournalTTL = 24 * time.Hour
)

// FormatSOL 将 lamports 格式化为 9 位小数的 SOL
func FormatSOL(lamports uint64) string {
	return fmt.Sprintf("%d.%09d", lamports/LamportsPerSOL, lamports%LamportsPerSOL)
}
