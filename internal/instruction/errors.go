package instruction

import "errors"

var (
	// ErrMalformedInstruction 数据过短，或 payload 无法按预期结构反序列化
	ErrMalformedInstruction = errors.New("malformed instruction data")
	// ErrUnknownCommand discriminator 不属于任何已知指令
	ErrUnknownCommand = errors.New("unknown instruction discriminator")
)
