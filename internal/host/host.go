// Package host 模拟链上运行时：串行执行指令，单条指令内的全部转账要么全部生效要么全部回滚。
package host

import (
	"context"
	"strings"
	"sync"
	"time"

	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/event"
	"asset-splitter-sol/internal/instruction"
	"asset-splitter-sol/internal/journal"
	"asset-splitter-sol/internal/ledger"
	"asset-splitter-sol/internal/metrics"
	"asset-splitter-sol/internal/pkg/logger"
	"asset-splitter-sol/internal/processor"
	"asset-splitter-sol/internal/types"
)

// Journal 记录调用结果，*journal.RedisJournal 满足
type Journal interface {
	Record(ctx context.Context, digest types.Hash, status journal.Status) (int64, error)
}

type Options struct {
	Publisher      event.Publisher // 为空时只写日志
	Journal        Journal         // 可选
	Metrics        *metrics.Metrics
	PublishTimeout time.Duration
}

// Receipt 一次调用的结果
type Receipt struct {
	Digest      types.Hash // sha256(programID | account keys | data)
	Command     string     // 去掉 "instruction:" 前缀的指令名，解码失败时为空
	Events      []event.Event
	Submissions int64 // journal 中的累计提交次数，未配置 journal 时为 0
	PublishErr  error // 事件发布失败不影响已提交的状态
}

type Host struct {
	mu        sync.Mutex
	bank      *ledger.Bank
	programID types.Pubkey
	opts      Options
}

func New(bank *ledger.Bank, programID types.Pubkey, opts Options) *Host {
	if opts.Publisher == nil {
		opts.Publisher = event.LogPublisher{}
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = consts.DefaultEventPublishTimeout
	}
	return &Host{
		bank:      bank,
		programID: programID,
		opts:      opts,
	}
}

func (h *Host) Bank() *ledger.Bank {
	return h.bank
}

func (h *Host) ProgramID() types.Pubkey {
	return h.programID
}

// Invoke 执行一条拆分指令。相同指令重复提交会再次执行。
func (h *Host) Invoke(ctx context.Context, programID types.Pubkey, accounts []*ledger.AccountInfo, data []byte) (*Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	receipt := &Receipt{
		Digest:  digestOf(programID, accounts, data),
		Command: commandName(data),
	}

	err := h.execute(programID, accounts, data, receipt)

	status := journal.StatusSucceeded
	if err != nil {
		status = journal.StatusFailed
		logger.Warnf("[host] invoke %s failed, digest=%s: %v", receipt.Command, receipt.Digest, err)
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.ObserveInvocation(receipt.Command, err)
		if err == nil {
			h.observeTransfers(receipt.Events)
		}
	}
	if h.opts.Journal != nil {
		n, jerr := h.opts.Journal.Record(ctx, receipt.Digest, status)
		if jerr != nil {
			logger.Warnf("[host] journal record failed, digest=%s: %v", receipt.Digest, jerr)
		}
		receipt.Submissions = n
	}
	if err != nil {
		return receipt, err
	}

	if len(receipt.Events) > 0 {
		pubCtx, cancel := context.WithTimeout(ctx, h.opts.PublishTimeout)
		receipt.PublishErr = h.opts.Publisher.Publish(pubCtx, receipt.Digest, receipt.Events)
		cancel()
		if receipt.PublishErr != nil {
			logger.Errorf("[host] publish events failed, digest=%s: %v", receipt.Digest, receipt.PublishErr)
		}
	}
	return receipt, nil
}

// execute 在账本事务中运行处理器，成功提交，失败丢弃
func (h *Host) execute(programID types.Pubkey, accounts []*ledger.AccountInfo, data []byte, receipt *Receipt) error {
	txn := h.bank.Begin()
	cpi := ledger.NewCPI(txn)
	var buf event.Buffer

	if err := processor.New(h.programID, cpi, cpi).Process(programID, accounts, data, &buf); err != nil {
		txn.Discard()
		buf.Reset()
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	receipt.Events = buf.Take()
	return nil
}

func (h *Host) observeTransfers(events []event.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case *event.LamportsSplit:
			h.opts.Metrics.AddTransfers(metrics.TransferNative, len(e.Amounts))
		case *event.TokensSplitFromSingleMint:
			h.opts.Metrics.AddTransfers(metrics.TransferToken, len(e.Amounts))
		case *event.TokensSplitFromMultipleMints:
			h.opts.Metrics.AddTransfers(metrics.TransferToken, len(e.Amounts))
		}
	}
}

func digestOf(programID types.Pubkey, accounts []*ledger.AccountInfo, data []byte) types.Hash {
	parts := make([][]byte, 0, len(accounts)+2)
	parts = append(parts, programID[:])
	for _, acc := range accounts {
		if acc == nil {
			parts = append(parts, make([]byte, 32))
			continue
		}
		key := acc.Key
		parts = append(parts, key[:])
	}
	parts = append(parts, data)
	return types.HashOf(parts...)
}

func commandName(data []byte) string {
	cmd, err := instruction.Decode(data)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(cmd.Name(), "instruction:")
}
