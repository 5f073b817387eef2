package instruction

import (
	"crypto/sha256"
	"encoding/binary"
)

// 指令名称，discriminator = sha256(name)[:8]
const (
	NameSplitLamports                = "instruction:splitlamports"
	NameSplitTokensFromSingleMint    = "instruction:splitspltokensfromsinglemint"
	NameSplitTokensFromMultipleMints = "instruction:splitspltokensfrommultiplemints"
)

// 预计算的 discriminator（大端读取前 8 字节），与 Discriminator(name) 一致
const (
	SplitLamportsDiscriminator                uint64 = 0x39a2886dad3bcbf4
	SplitTokensFromSingleMintDiscriminator    uint64 = 0x30f6bf559a86ffe6
	SplitTokensFromMultipleMintsDiscriminator uint64 = 0x8bb6d4b966454fa6
)

// DiscriminatorSize 指令数据前缀长度
const DiscriminatorSize = 8

// Discriminator 计算指令名称对应的 8 字节路由前缀。
// 仅作路由使用，任何调用方都能算出，不具备鉴权意义。
func Discriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(name))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

func discriminatorBytes(d uint64) []byte {
	b := make([]byte, DiscriminatorSize)
	binary.BigEndian.PutUint64(b, d)
	return b
}
