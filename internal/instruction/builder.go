package instruction

import (
	"fmt"
	"math"

	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/types"

	sdkcommon "github.com/blocto/solana-go-sdk/common"
	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// NewSplitLamportsInstruction 构造客户端侧的 SplitLamports 指令（含账户元数据）
func NewSplitLamportsInstruction(
	programID, source types.Pubkey,
	destinations []types.Pubkey,
	amounts []uint64,
) (sdktypes.Instruction, error) {
	data, err := Encode(SplitLamports{Amounts: amounts})
	if err != nil {
		return sdktypes.Instruction{}, err
	}

	accounts := make([]sdktypes.AccountMeta, 0, 2+len(destinations))
	accounts = append(accounts,
		meta(source, true, true),
		meta(consts.SystemProgram, false, false),
	)
	for _, dst := range destinations {
		accounts = append(accounts, meta(dst, false, true))
	}

	return sdktypes.Instruction{
		ProgramID: sdkcommon.PublicKey(programID),
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// NewSplitTokensFromSingleMintInstruction 构造 SplitTokensFromSingleMint 指令，
// operator 需为 source token account 的 owner 或 delegate
func NewSplitTokensFromSingleMintInstruction(
	programID, tokenProgram, operator, source types.Pubkey,
	destinations []types.Pubkey,
	amounts []uint64,
) (sdktypes.Instruction, error) {
	data, err := Encode(SplitTokensFromSingleMint{Amounts: amounts})
	if err != nil {
		return sdktypes.Instruction{}, err
	}

	accounts := make([]sdktypes.AccountMeta, 0, 3+len(destinations))
	accounts = append(accounts,
		meta(operator, true, false),
		meta(tokenProgram, false, false),
		meta(source, false, true),
	)
	for _, dst := range destinations {
		accounts = append(accounts, meta(dst, false, true))
	}

	return sdktypes.Instruction{
		ProgramID: sdkcommon.PublicKey(programID),
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// NewSplitTokensFromMultipleMintsInstruction 构造 SplitTokensFromMultipleMints 指令。
// m 取 len(sources)；sources 与 destinations 按位置配对，调用方负责保证 mint 一致。
func NewSplitTokensFromMultipleMintsInstruction(
	programID, tokenProgram, operator types.Pubkey,
	sources, destinations []types.Pubkey,
	amounts []uint64,
) (sdktypes.Instruction, error) {
	if len(sources) != len(destinations) {
		return sdktypes.Instruction{}, fmt.Errorf("sources/destinations length mismatch: %d != %d",
			len(sources), len(destinations))
	}
	if len(sources) > math.MaxUint16 {
		return sdktypes.Instruction{}, fmt.Errorf("too many source accounts: %d", len(sources))
	}

	data, err := Encode(SplitTokensFromMultipleMints{Amounts: amounts, M: uint16(len(sources))})
	if err != nil {
		return sdktypes.Instruction{}, err
	}

	accounts := make([]sdktypes.AccountMeta, 0, 2+len(sources)+len(destinations))
	accounts = append(accounts,
		meta(operator, true, false),
		meta(tokenProgram, false, false),
	)
	for _, src := range sources {
		accounts = append(accounts, meta(src, false, true))
	}
	for _, dst := range destinations {
		accounts = append(accounts, meta(dst, false, true))
	}

	return sdktypes.Instruction{
		ProgramID: sdkcommon.PublicKey(programID),
		Accounts:  accounts,
		Data:      data,
	}, nil
}

func meta(key types.Pubkey, signer, writable bool) sdktypes.AccountMeta {
	return sdktypes.AccountMeta{
		PubKey:     sdkcommon.PublicKey(key),
		IsSigner:   signer,
		IsWritable: writable,
	}
}
