// Package processor 是拆分程序的入口：解码指令后按账户位置调度转账。
// 处理器本身不持有状态，转账与事件输出都由调用方注入。
package processor

import (
	"fmt"

	"asset-splitter-sol/internal/event"
	"asset-splitter-sol/internal/instruction"
	"asset-splitter-sol/internal/ledger"
	"asset-splitter-sol/internal/pkg/logger"
	"asset-splitter-sol/internal/types"
)

// Processor 执行三种拆分指令
type Processor struct {
	programID types.Pubkey // 零值表示不校验
	native    ledger.NativeTransferer
	token     ledger.TokenTransferer
}

// New 创建处理器；ledger.CPI 同时满足两个转账接口
func New(programID types.Pubkey, native ledger.NativeTransferer, token ledger.TokenTransferer) *Processor {
	return &Processor{
		programID: programID,
		native:    native,
		token:     token,
	}
}

// Process 解码 data 并执行。任一转账失败立即返回，已发生的转账由宿主事务回滚。
// 成功时向 sink 写入一条事件。
func (p *Processor) Process(programID types.Pubkey, accounts []*ledger.AccountInfo, data []byte, sink event.Sink) error {
	if !p.programID.IsZero() && programID != p.programID {
		return fmt.Errorf("%w: got %s, want %s", ErrIncorrectProgramID, programID, p.programID)
	}
	if sink == nil {
		sink = event.Discard
	}

	cmd, err := instruction.Decode(data)
	if err != nil {
		return err
	}

	switch c := cmd.(type) {
	case instruction.SplitLamports:
		logger.Infof("Instruction: SplitLamports")
		return p.splitLamports(accounts, c.Amounts, sink)
	case instruction.SplitTokensFromSingleMint:
		logger.Infof("Instruction: SplitTokensFromSingleMint")
		return p.splitTokensFromSingleMint(accounts, c.Amounts, sink)
	case instruction.SplitTokensFromMultipleMints:
		logger.Infof("Instruction: SplitTokensFromMultipleMints")
		return p.splitTokensFromMultipleMints(accounts, c.Amounts, c.M, sink)
	default:
		return fmt.Errorf("%w: %T", instruction.ErrUnknownCommand, cmd)
	}
}

// splitLamports
//
//	[0] source  [1] system program  [2..2+n] destinations
func (p *Processor) splitLamports(accounts []*ledger.AccountInfo, amounts []uint64, sink event.Sink) error {
	it := newAccountIter(accounts)
	source, err := it.next("source")
	if err != nil {
		return err
	}
	systemProgram, err := it.next("system program")
	if err != nil {
		return err
	}
	destinations, err := it.take("destination", len(amounts))
	if err != nil {
		return err
	}

	for i, amount := range amounts {
		if err := p.native.TransferLamports(systemProgram, source, destinations[i], amount); err != nil {
			return fmt.Errorf("transfer %d lamports to %s: %w", amount, destinations[i].Key, err)
		}
	}

	sink.Emit(&event.LamportsSplit{
		Source:       source.Key,
		Destinations: ledger.Keys(destinations),
		Amounts:      amounts,
	})
	return nil
}

// splitTokensFromSingleMint
//
//	[0] operator  [1] token program  [2] source  [3..3+n] destinations
func (p *Processor) splitTokensFromSingleMint(accounts []*ledger.AccountInfo, amounts []uint64, sink event.Sink) error {
	it := newAccountIter(accounts)
	operator, err := it.next("operator")
	if err != nil {
		return err
	}
	tokenProgram, err := it.next("token program")
	if err != nil {
		return err
	}
	source, err := it.next("source")
	if err != nil {
		return err
	}
	destinations, err := it.take("destination", len(amounts))
	if err != nil {
		return err
	}

	for i, amount := range amounts {
		if err := p.token.TransferTokens(tokenProgram, source, destinations[i], operator, amount); err != nil {
			return fmt.Errorf("transfer %d tokens %s -> %s: %w", amount, source.Key, destinations[i].Key, err)
		}
	}

	sink.Emit(&event.TokensSplitFromSingleMint{
		Operator:     operator.Key,
		Source:       source.Key,
		Destinations: ledger.Keys(destinations),
		Amounts:      amounts,
	})
	return nil
}

// splitTokensFromMultipleMints
//
//	[0] operator  [1] token program  [2..2+m] sources  [2+m..2+2m] destinations
func (p *Processor) splitTokensFromMultipleMints(accounts []*ledger.AccountInfo, amounts []uint64, m uint16, sink event.Sink) error {
	expected := 2*int(m) + 2
	if len(accounts) != expected {
		return &InvalidMParameterError{M: m, Expected: expected, Actual: len(accounts)}
	}
	if len(amounts) > int(m) {
		return fmt.Errorf("%w: amounts=%d m=%d", ErrAmountCountExceedsM, len(amounts), m)
	}

	it := newAccountIter(accounts)
	operator, err := it.next("operator")
	if err != nil {
		return err
	}
	tokenProgram, err := it.next("token program")
	if err != nil {
		return err
	}
	sources, err := it.take("source", int(m))
	if err != nil {
		return err
	}
	destinations, err := it.take("destination", int(m))
	if err != nil {
		return err
	}

	for i, amount := range amounts {
		if err := p.token.TransferTokens(tokenProgram, sources[i], destinations[i], operator, amount); err != nil {
			return fmt.Errorf("transfer %d tokens %s -> %s: %w", amount, sources[i].Key, destinations[i].Key, err)
		}
	}

	sink.Emit(&event.TokensSplitFromMultipleMints{
		Operator:     operator.Key,
		Sources:      ledger.Keys(sources),
		Destinations: ledger.Keys(destinations),
		Amounts:      amounts,
	})
	return nil
}
