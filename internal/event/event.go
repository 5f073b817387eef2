package event

import (
	"fmt"
	"strings"

	"asset-splitter-sol/internal/types"
)

// Kind 事件类型编号，同时作为 Kafka 消息的 4 字节前缀
type Kind uint32

const (
	KindLamportsSplit                Kind = 1
	KindTokensSplitFromSingleMint    Kind = 2
	KindTokensSplitFromMultipleMints Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindLamportsSplit:
		return "LamportsSplit"
	case KindTokensSplitFromSingleMint:
		return "TokensSplitFromSingleMint"
	case KindTokensSplitFromMultipleMints:
		return "TokensSplitFromMultipleMints"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Event 一次拆分成功后产生的结构化记录
type Event interface {
	Kind() Kind
	// Key 用于分区选择，同一资金来源落在同一分区
	Key() types.Pubkey
	String() string
}

// LamportsSplit 原生 lamports 拆分完成
type LamportsSplit struct {
	Source       types.Pubkey
	Destinations []types.Pubkey
	Amounts      []uint64
}

// TokensSplitFromSingleMint 单一 token account 拆分完成
type TokensSplitFromSingleMint struct {
	Operator     types.Pubkey
	Source       types.Pubkey
	Destinations []types.Pubkey
	Amounts      []uint64
}

// TokensSplitFromMultipleMints 多 source 配对拆分完成
type TokensSplitFromMultipleMints struct {
	Operator     types.Pubkey
	Sources      []types.Pubkey
	Destinations []types.Pubkey
	Amounts      []uint64
}

func (*LamportsSplit) Kind() Kind                { return KindLamportsSplit }
func (*TokensSplitFromSingleMint) Kind() Kind    { return KindTokensSplitFromSingleMint }
func (*TokensSplitFromMultipleMints) Kind() Kind { return KindTokensSplitFromMultipleMints }

func (e *LamportsSplit) Key() types.Pubkey                { return e.Source }
func (e *TokensSplitFromSingleMint) Key() types.Pubkey    { return e.Source }
func (e *TokensSplitFromMultipleMints) Key() types.Pubkey { return e.Operator }

func (e *LamportsSplit) String() string {
	return fmt.Sprintf("LamportsSplit{source=%s, destinations=%s, amounts=%v}",
		e.Source, joinKeys(e.Destinations), e.Amounts)
}

func (e *TokensSplitFromSingleMint) String() string {
	return fmt.Sprintf("TokensSplitFromSingleMint{operator=%s, source=%s, destinations=%s, amounts=%v}",
		e.Operator, e.Source, joinKeys(e.Destinations), e.Amounts)
}

func (e *TokensSplitFromMultipleMints) String() string {
	return fmt.Sprintf("TokensSplitFromMultipleMints{operator=%s, sources=%s, destinations=%s, amounts=%v}",
		e.Operator, joinKeys(e.Sources), joinKeys(e.Destinations), e.Amounts)
}

func joinKeys(keys []types.Pubkey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.String())
	}
	return "[" + strings.Join(parts, ",") + "]"
}
