// Package ledger 提供拆分程序依赖的转账能力（System / SPL Token），
// 以及一个带事务语义的内存账本，用来模拟链上运行时执行 CPI。
package ledger

import (
	"errors"

	"asset-splitter-sol/internal/types"

	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// 账本侧错误，由转账能力原样返回，处理器不做解释与重试
var (
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrReadonlyAccount          = errors.New("writable privilege escalated")
	ErrMissingAccount           = errors.New("account not provided to invocation")
	ErrUninitializedAccount     = errors.New("uninitialized token account")
	ErrInvalidAccountOwner      = errors.New("invalid account owner")
	ErrIncorrectProgramID       = errors.New("incorrect program id")
	ErrMintMismatch             = errors.New("account mint mismatch")
	ErrOwnerMismatch            = errors.New("owner does not match")
	ErrAccountFrozen            = errors.New("account is frozen")
	ErrOverflow                 = errors.New("balance overflow")
	ErrUnsupportedInstruction   = errors.New("unsupported instruction")
	ErrTxnClosed                = errors.New("transaction already closed")
)

// AccountInfo 是传入程序的账户句柄：地址 + 权限标记。
// 处理器只读取 Key，并原样转交给转账能力。
type AccountInfo struct {
	Key        types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// NativeTransferer 原生 lamports 转账能力（System Program transfer）
type NativeTransferer interface {
	TransferLamports(systemProgram, source, destination *AccountInfo, amount uint64) error
}

// TokenTransferer SPL Token 转账能力，authority 可以是 owner 或 delegate
type TokenTransferer interface {
	TransferTokens(tokenProgram, source, destination, authority *AccountInfo, amount uint64) error
}

// Invoker 执行一条跨程序调用（CPI），infos 为本次调用可见的账户句柄
type Invoker interface {
	Invoke(ix sdktypes.Instruction, infos []*AccountInfo) error
}

// AccountInfosFromMetas 按指令账户元数据构造账户句柄（签名/可写标记照搬）
func AccountInfosFromMetas(metas []sdktypes.AccountMeta) []*AccountInfo {
	infos := make([]*AccountInfo, 0, len(metas))
	for _, m := range metas {
		infos = append(infos, &AccountInfo{
			Key:        types.Pubkey(m.PubKey),
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		})
	}
	return infos
}

// Keys 返回句柄地址列表，保持原始顺序
func Keys(infos []*AccountInfo) []types.Pubkey {
	keys := make([]types.Pubkey, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys
}

func findInfo(infos []*AccountInfo, key types.Pubkey) *AccountInfo {
	for _, info := range infos {
		if info != nil && info.Key == key {
			return info
		}
	}
	return nil
}
