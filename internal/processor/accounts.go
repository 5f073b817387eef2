package processor

import (
	"fmt"

	"asset-splitter-sol/internal/ledger"
)

// accountIter 按位置依次取账户，越界返回 ErrAccountUnderflow
type accountIter struct {
	accounts []*ledger.AccountInfo
	pos      int
}

func newAccountIter(accounts []*ledger.AccountInfo) *accountIter {
	return &accountIter{accounts: accounts}
}

func (it *accountIter) next(role string) (*ledger.AccountInfo, error) {
	if it.pos >= len(it.accounts) || it.accounts[it.pos] == nil {
		return nil, fmt.Errorf("%w: missing %s at index %d", ErrAccountUnderflow, role, it.pos)
	}
	acc := it.accounts[it.pos]
	it.pos++
	return acc, nil
}

func (it *accountIter) take(role string, n int) ([]*ledger.AccountInfo, error) {
	if len(it.accounts)-it.pos < n {
		return nil, fmt.Errorf("%w: need %d %s accounts from index %d, have %d",
			ErrAccountUnderflow, n, role, it.pos, len(it.accounts)-it.pos)
	}
	out := it.accounts[it.pos : it.pos+n]
	for i, acc := range out {
		if acc == nil {
			return nil, fmt.Errorf("%w: missing %s at index %d", ErrAccountUnderflow, role, it.pos+i)
		}
	}
	it.pos += n
	return out, nil
}
