package ledger

import (
	sdkcommon "github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
)

// CPI 将转账能力翻译为标准的 System / SPL Token 指令，交给 Invoker 执行
type CPI struct {
	invoker Invoker
}

func NewCPI(invoker Invoker) *CPI {
	return &CPI{invoker: invoker}
}

// TransferLamports 构造 System Program Transfer，source 需签名且可写
func (c *CPI) TransferLamports(systemProgram, source, destination *AccountInfo, amount uint64) error {
	ix := system.Transfer(system.TransferParam{
		From:   sdkcommon.PublicKey(source.Key),
		To:     sdkcommon.PublicKey(destination.Key),
		Amount: amount,
	})
	return c.invoker.Invoke(ix, []*AccountInfo{source, destination, systemProgram})
}

// TransferTokens 构造 SPL Token Transfer，ProgramID 取传入的 token program 句柄
// （Token 或 Token-2022），authority 为单签
func (c *CPI) TransferTokens(tokenProgram, source, destination, authority *AccountInfo, amount uint64) error {
	ix := token.Transfer(token.TransferParam{
		From:    sdkcommon.PublicKey(source.Key),
		To:      sdkcommon.PublicKey(destination.Key),
		Auth:    sdkcommon.PublicKey(authority.Key),
		Signers: []sdkcommon.PublicKey{},
		Amount:  amount,
	})
	ix.ProgramID = sdkcommon.PublicKey(tokenProgram.Key)
	return c.invoker.Invoke(ix, []*AccountInfo{source, destination, authority, tokenProgram})
}
