package instruction

import (
	"encoding/binary"
	"fmt"

	"github.com/near/borsh-go"
)

// Command 是解码后的指令，只有下面三种实现（封闭集合）
type Command interface {
	// Name 返回用于计算 discriminator 的指令名称
	Name() string
	// Discriminator 返回 8 字节前缀（大端 uint64 形式）
	Discriminator() uint64

	isCommand()
}

// SplitLamports 将 source 的 lamports 按 Amounts 依次转给各目标账户
//
// 账户顺序：
//  0. `[writable, signer]` source（System Program 拥有）
//  1. `[]` System Program
//  2. 2..2+N `[writable]` N 个目标账户
type SplitLamports struct {
	Amounts []uint64
}

// SplitTokensFromSingleMint 从同一个 token account 向多个目标 token account 转账
//
// 账户顺序：
//  0. `[signer]` operator，source token account 的 owner 或 delegate
//  1. `[]` Token Program
//  2. `[writable]` source token account
//  3. 3..3+N `[writable]` N 个目标 token account
type SplitTokensFromSingleMint struct {
	Amounts []uint64
}

// SplitTokensFromMultipleMints 按位置配对 M 个 source 与 M 个目标 token account 转账
//
// 账户顺序：
//  0. `[signer]` operator
//  1. `[]` Token Program
//  2. 2..2+M `[writable]` M 个 source token account
//  3. 2+M..2+2M `[writable]` M 个目标 token account
type SplitTokensFromMultipleMints struct {
	Amounts []uint64
	M       uint16
}

func (SplitLamports) Name() string                { return NameSplitLamports }
func (SplitTokensFromSingleMint) Name() string    { return NameSplitTokensFromSingleMint }
func (SplitTokensFromMultipleMints) Name() string { return NameSplitTokensFromMultipleMints }

func (SplitLamports) Discriminator() uint64 { return SplitLamportsDiscriminator }
func (SplitTokensFromSingleMint) Discriminator() uint64 {
	return SplitTokensFromSingleMintDiscriminator
}
func (SplitTokensFromMultipleMints) Discriminator() uint64 {
	return SplitTokensFromMultipleMintsDiscriminator
}

func (SplitLamports) isCommand()                {}
func (SplitTokensFromSingleMint) isCommand()    {}
func (SplitTokensFromMultipleMints) isCommand() {}

// Decode 将原始指令数据解析为 Command。
// 数据格式：[8 字节 discriminator][borsh payload]
func Decode(data []byte) (Command, error) {
	// 至少需要 discriminator + 1 字节 payload
	if len(data) <= DiscriminatorSize {
		return nil, fmt.Errorf("%w: data length %d", ErrMalformedInstruction, len(data))
	}

	payload := data[DiscriminatorSize:]

	// 按固定优先级匹配
	switch binary.BigEndian.Uint64(data[:DiscriminatorSize]) {
	case SplitLamportsDiscriminator:
		var cmd SplitLamports
		if err := decodePayload(&cmd, payload, 0); err != nil {
			return nil, err
		}
		cmd.Amounts = nonNil(cmd.Amounts)
		return cmd, nil

	case SplitTokensFromSingleMintDiscriminator:
		var cmd SplitTokensFromSingleMint
		if err := decodePayload(&cmd, payload, 0); err != nil {
			return nil, err
		}
		cmd.Amounts = nonNil(cmd.Amounts)
		return cmd, nil

	case SplitTokensFromMultipleMintsDiscriminator:
		var cmd SplitTokensFromMultipleMints
		if err := decodePayload(&cmd, payload, 2); err != nil { // 尾部 m: u16
			return nil, err
		}
		cmd.Amounts = nonNil(cmd.Amounts)
		return cmd, nil

	default:
		return nil, fmt.Errorf("%w: %x", ErrUnknownCommand, data[:DiscriminatorSize])
	}
}

// Encode 序列化为 discriminator + borsh payload，与 Decode 互逆
func Encode(cmd Command) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch c := cmd.(type) {
	case SplitLamports:
		payload, err = borsh.Serialize(c)
	case SplitTokensFromSingleMint:
		payload, err = borsh.Serialize(c)
	case SplitTokensFromMultipleMints:
		payload, err = borsh.Serialize(c)
	default:
		return nil, fmt.Errorf("%w: unsupported command %T", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}

	data := make([]byte, 0, DiscriminatorSize+len(payload))
	data = append(data, discriminatorBytes(cmd.Discriminator())...)
	return append(data, payload...), nil
}

// decodePayload 先按 `u32 长度 + N*u64 + tail` 精确校验长度，再交给 borsh 反序列化。
// 长度不符（截断、长度前缀过大、尾部多余字节）一律视为 ErrMalformedInstruction。
func decodePayload(v any, payload []byte, tail int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: borsh panic: %v", ErrMalformedInstruction, r)
		}
	}()

	if len(payload) < 4 {
		return fmt.Errorf("%w: missing amounts length prefix", ErrMalformedInstruction)
	}
	count := uint64(binary.LittleEndian.Uint32(payload[:4]))
	expected := 4 + count*8 + uint64(tail)
	if uint64(len(payload)) != expected {
		return fmt.Errorf("%w: payload length %d, expected %d for %d amounts",
			ErrMalformedInstruction, len(payload), expected, count)
	}

	if err := borsh.Deserialize(v, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}
	return nil
}

func nonNil(amounts []uint64) []uint64 {
	if amounts == nil {
		return []uint64{}
	}
	return amounts
}
