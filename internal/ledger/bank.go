package ledger

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/types"

	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	sdktypes "github.com/blocto/solana-go-sdk/types"
)

// TokenAccount 是 SPL Token 账户的状态（只保留转账相关字段）
type TokenAccount struct {
	Mint            types.Pubkey  `yaml:"mint"`
	Owner           types.Pubkey  `yaml:"owner"`
	Amount          uint64        `yaml:"amount"`
	Delegate        *types.Pubkey `yaml:"delegate,omitempty"`
	DelegatedAmount uint64        `yaml:"delegated_amount,omitempty"`
	Frozen          bool          `yaml:"frozen,omitempty"`
}

// Account 是账本中的一个账户。Token 非空时为 token account，Owner 应为 token program。
type Account struct {
	Lamports uint64        `yaml:"lamports"`
	Owner    types.Pubkey  `yaml:"owner"`
	Token    *TokenAccount `yaml:"token,omitempty"`
}

func (a *Account) clone() *Account {
	cp := *a
	if a.Token != nil {
		tk := *a.Token
		if a.Token.Delegate != nil {
			d := *a.Token.Delegate
			tk.Delegate = &d
		}
		cp.Token = &tk
	}
	return &cp
}

// Bank 内存账本，保存已提交的账户状态。
// 所有修改都经由 Txn 完成，Commit 前对外不可见。
type Bank struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*Account
}

func NewBank() *Bank {
	return &Bank{accounts: make(map[types.Pubkey]*Account)}
}

// Put 直接写入账户（用于初始化 / 测试夹具）
func (b *Bank) Put(key types.Pubkey, acct Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[key] = acct.clone()
}

// Account 返回账户副本
func (b *Bank) Account(key types.Pubkey) (Account, bool) {
	acct := b.get(key)
	if acct == nil {
		return Account{}, false
	}
	return *acct, true
}

func (b *Bank) Lamports(key types.Pubkey) uint64 {
	if acct := b.get(key); acct != nil {
		return acct.Lamports
	}
	return 0
}

// TokenAmount 返回 token account 余额，非 token account 返回 0
func (b *Bank) TokenAmount(key types.Pubkey) uint64 {
	if acct := b.get(key); acct != nil && acct.Token != nil {
		return acct.Token.Amount
	}
	return 0
}

// Keys 返回所有账户地址（按字节序排序，便于稳定输出）
func (b *Bank) Keys() []types.Pubkey {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]types.Pubkey, 0, len(b.accounts))
	for k := range b.accounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i][:]) < string(keys[j][:])
	})
	return keys
}

func (b *Bank) get(key types.Pubkey) *Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if acct, ok := b.accounts[key]; ok {
		return acct.clone()
	}
	return nil
}

// Begin 开启一个事务。事务内读到的账户会被复制到 overlay，
// 修改只作用于 overlay，Commit 时整体写回，Discard 时丢弃。
func (b *Bank) Begin() *Txn {
	return &Txn{
		bank:    b,
		overlay: make(map[types.Pubkey]*Account),
	}
}

// Txn 单次调用内的账本视图，实现 Invoker。非并发安全，由宿主串行使用。
type Txn struct {
	bank    *Bank
	overlay map[types.Pubkey]*Account
	closed  bool
}

// Commit 将 overlay 写回账本
func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true

	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()
	for key, acct := range t.overlay {
		t.bank.accounts[key] = acct
	}
	return nil
}

// Discard 丢弃所有修改
func (t *Txn) Discard() {
	t.closed = true
	t.overlay = nil
}

func (t *Txn) load(key types.Pubkey) *Account {
	if acct, ok := t.overlay[key]; ok {
		return acct
	}
	acct := t.bank.get(key)
	if acct != nil {
		t.overlay[key] = acct
	}
	return acct
}

// loadOrCreateSystem 目标账户不存在时视为新的 System 账户（lamports 为 0）
func (t *Txn) loadOrCreateSystem(key types.Pubkey) *Account {
	if acct := t.load(key); acct != nil {
		return acct
	}
	acct := &Account{Owner: consts.SystemProgram}
	t.overlay[key] = acct
	return acct
}

// Invoke 执行一条 System 或 SPL Token 指令。
// 与运行时一致：被调程序账户、指令声明的每个账户都必须出现在 infos 中，
// 且签名/可写权限不能超过调用方持有的权限。
func (t *Txn) Invoke(ix sdktypes.Instruction, infos []*AccountInfo) error {
	if t.closed {
		return ErrTxnClosed
	}

	programID := types.Pubkey(ix.ProgramID)
	if findInfo(infos, programID) == nil {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, programID)
	}

	for _, m := range ix.Accounts {
		key := types.Pubkey(m.PubKey)
		info := findInfo(infos, key)
		if info == nil {
			return fmt.Errorf("%w: %s", ErrMissingAccount, key)
		}
		if m.IsSigner && !info.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, key)
		}
		if m.IsWritable && !info.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyAccount, key)
		}
	}

	switch {
	case programID == consts.SystemProgram:
		return t.processSystem(ix)
	case consts.IsTokenProgram(programID):
		return t.processToken(programID, ix)
	default:
		return fmt.Errorf("%w: %s", ErrIncorrectProgramID, programID)
	}
}

// processSystem 仅支持 Transfer：data = u32 指令号(LE) + u64 lamports(LE)
func (t *Txn) processSystem(ix sdktypes.Instruction) error {
	if len(ix.Data) != 12 || binary.LittleEndian.Uint32(ix.Data[:4]) != uint32(system.InstructionTransfer) {
		return fmt.Errorf("%w: system program data=%x", ErrUnsupportedInstruction, ix.Data)
	}
	if len(ix.Accounts) < 2 {
		return fmt.Errorf("%w: system transfer expects 2 accounts", ErrMissingAccount)
	}
	amount := binary.LittleEndian.Uint64(ix.Data[4:12])
	fromKey := types.Pubkey(ix.Accounts[0].PubKey)
	toKey := types.Pubkey(ix.Accounts[1].PubKey)

	// 不存在的 source 视为 0 lamports 的 System 账户，不写入 overlay
	from := t.load(fromKey)
	if from == nil {
		if amount > 0 {
			return fmt.Errorf("%w: %s has 0 lamports, need %d", ErrInsufficientFunds, fromKey, amount)
		}
		return nil
	}
	if from.Owner != consts.SystemProgram || from.Token != nil {
		return fmt.Errorf("%w: transfer source %s must be a system account without data", ErrInvalidAccountOwner, fromKey)
	}
	if from.Lamports < amount {
		return fmt.Errorf("%w: %s has %d lamports, need %d", ErrInsufficientFunds, fromKey, from.Lamports, amount)
	}
	if fromKey == toKey || amount == 0 {
		return nil
	}

	to := t.loadOrCreateSystem(toKey)
	if to.Lamports > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrOverflow, toKey)
	}

	from.Lamports -= amount
	to.Lamports += amount
	return nil
}

// processToken 仅支持 Transfer：data = u8 指令号 + u64 amount(LE)，
// 账户 [source, destination, authority]
func (t *Txn) processToken(programID types.Pubkey, ix sdktypes.Instruction) error {
	if len(ix.Data) != 9 || ix.Data[0] != byte(token.InstructionTransfer) {
		return fmt.Errorf("%w: token program data=%x", ErrUnsupportedInstruction, ix.Data)
	}
	if len(ix.Accounts) < 3 {
		return fmt.Errorf("%w: token transfer expects 3 accounts", ErrMissingAccount)
	}
	amount := binary.LittleEndian.Uint64(ix.Data[1:9])
	srcKey := types.Pubkey(ix.Accounts[0].PubKey)
	dstKey := types.Pubkey(ix.Accounts[1].PubKey)
	authKey := types.Pubkey(ix.Accounts[2].PubKey)

	src, err := t.loadTokenAccount(programID, srcKey)
	if err != nil {
		return err
	}
	dst, err := t.loadTokenAccount(programID, dstKey)
	if err != nil {
		return err
	}

	if src.Token.Frozen || dst.Token.Frozen {
		return ErrAccountFrozen
	}
	if src.Token.Amount < amount {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, srcKey, src.Token.Amount, amount)
	}
	if src.Token.Mint != dst.Token.Mint {
		return fmt.Errorf("%w: %s(%s) -> %s(%s)", ErrMintMismatch, srcKey, src.Token.Mint, dstKey, dst.Token.Mint)
	}

	if srcKey != dstKey && dst.Token.Amount > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrOverflow, dstKey)
	}

	// 校验 authority：owner 直接放行；delegate 需额度充足，非自转账时扣减额度
	switch {
	case authKey == src.Token.Owner:
	case src.Token.Delegate != nil && *src.Token.Delegate == authKey:
		if src.Token.DelegatedAmount < amount {
			return fmt.Errorf("%w: delegated %d, need %d", ErrInsufficientFunds, src.Token.DelegatedAmount, amount)
		}
		// 自转账只校验额度，不扣减
		if srcKey == dstKey {
			return nil
		}
		src.Token.DelegatedAmount -= amount
		if src.Token.DelegatedAmount == 0 {
			src.Token.Delegate = nil
		}
	default:
		return fmt.Errorf("%w: authority %s for %s", ErrOwnerMismatch, authKey, srcKey)
	}

	if srcKey == dstKey {
		return nil
	}

	src.Token.Amount -= amount
	dst.Token.Amount += amount
	return nil
}

func (t *Txn) loadTokenAccount(programID, key types.Pubkey) (*Account, error) {
	acct := t.load(key)
	if acct == nil || acct.Token == nil {
		return nil, fmt.Errorf("%w: %s", ErrUninitializedAccount, key)
	}
	if acct.Owner != programID {
		return nil, fmt.Errorf("%w: %s owned by %s, invoked %s", ErrIncorrectProgramID, key, acct.Owner, programID)
	}
	return acct, nil
}
