package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// Hash 是 32 字节摘要（sha256），文本形式为 base58
type Hash [32]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

func (h Hash) Equals(other Hash) bool {
	return h == other
}

func HashFromBase58(s string) (Hash, error) {
	var h Hash
	data, err := base58.Decode(s)
	if err != nil {
		return h, err
	}
	if len(data) != 32 {
		return h, fmt.Errorf("invalid hash length: got %d, want 32", len(data))
	}
	copy(h[:], data)
	return h, nil
}

// HashOf 按顺序拼接所有分片后计算 sha256
func HashOf(parts ...[]byte) Hash {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write(part)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}
