package processor

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountUnderflow 账户列表比指令声明的少
	ErrAccountUnderflow = errors.New("not enough account keys given to the instruction")
	// ErrAmountCountExceedsM amounts 数量超过 m，没有可配对的 source/destination
	ErrAmountCountExceedsM = errors.New("amounts count exceeds m")
	// ErrIncorrectProgramID 调用的程序 ID 与本程序不一致
	ErrIncorrectProgramID = errors.New("incorrect program id")
)

// InvalidMParameterError 多 mint 拆分时 m 与账户数量不匹配（期望 2m+2）
type InvalidMParameterError struct {
	M        uint16
	Expected int
	Actual   int
}

func (e *InvalidMParameterError) Error() string {
	return fmt.Sprintf("invalid m parameter. m=%d and expected-accounts-len=%d but provided-accounts-len=%d",
		e.M, e.Expected, e.Actual)
}
