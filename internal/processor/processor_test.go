package processor

import (
	"errors"
	"fmt"
	"testing"

	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/event"
	"asset-splitter-sol/internal/instruction"
	"asset-splitter-sol/internal/ledger"
	"asset-splitter-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	programID = types.Pubkey{0xAA}
	payer     = types.Pubkey{1}
	alice     = types.Pubkey{2}
	bob       = types.Pubkey{3}
	carol     = types.Pubkey{4}
	mintA     = types.Pubkey{100}
	mintB     = types.Pubkey{101}
	srcA      = types.Pubkey{11} // mintA, owner payer, 3000
	srcB      = types.Pubkey{12} // mintB, owner payer, 500
	dstA1     = types.Pubkey{21} // mintA, owner alice
	dstA2     = types.Pubkey{22} // mintA, owner bob
	dstB      = types.Pubkey{23} // mintB, owner carol
)

func signer(k types.Pubkey) *ledger.AccountInfo   { return &ledger.AccountInfo{Key: k, IsSigner: true, IsWritable: true} }
func writable(k types.Pubkey) *ledger.AccountInfo { return &ledger.AccountInfo{Key: k, IsWritable: true} }
func readonly(k types.Pubkey) *ledger.AccountInfo { return &ledger.AccountInfo{Key: k} }

func encode(t *testing.T, cmd instruction.Command) []byte {
	t.Helper()
	data, err := instruction.Encode(cmd)
	require.NoError(t, err)
	return data
}

// transferCall 记录一次转账请求
type transferCall struct {
	token       bool
	program     types.Pubkey
	source      types.Pubkey
	destination types.Pubkey
	authority   types.Pubkey
	amount      uint64
}

// recorder 记录所有转账，可在第 failAt 次（从 1 开始）调用时返回 failErr
type recorder struct {
	calls   []transferCall
	failAt  int
	failErr error
}

func (r *recorder) record(c transferCall) error {
	r.calls = append(r.calls, c)
	if r.failAt > 0 && len(r.calls) == r.failAt {
		return r.failErr
	}
	return nil
}

func (r *recorder) TransferLamports(systemProgram, source, destination *ledger.AccountInfo, amount uint64) error {
	return r.record(transferCall{program: systemProgram.Key, source: source.Key, destination: destination.Key, amount: amount})
}

func (r *recorder) TransferTokens(tokenProgram, source, destination, authority *ledger.AccountInfo, amount uint64) error {
	return r.record(transferCall{token: true, program: tokenProgram.Key, source: source.Key, destination: destination.Key, authority: authority.Key, amount: amount})
}

func newRecorded() (*Processor, *recorder, *event.Buffer) {
	r := &recorder{}
	return New(programID, r, r), r, &event.Buffer{}
}

func TestSplitLamports(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice), writable(bob)}

	err := p.Process(programID, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{100, 250}}), buf)
	require.NoError(t, err)

	assert.Equal(t, []transferCall{
		{program: consts.SystemProgram, source: payer, destination: alice, amount: 100},
		{program: consts.SystemProgram, source: payer, destination: bob, amount: 250},
	}, r.calls)

	events := buf.Take()
	require.Len(t, events, 1)
	assert.Equal(t, &event.LamportsSplit{
		Source:       payer,
		Destinations: []types.Pubkey{alice, bob},
		Amounts:      []uint64{100, 250},
	}, events[0])
}

func TestSplitLamportsExtraAccountsIgnored(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice), writable(bob), writable(carol)}

	require.NoError(t, p.Process(programID, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{7}}), buf))
	require.Len(t, r.calls, 1)

	ev := buf.Take()[0].(*event.LamportsSplit)
	assert.Equal(t, []types.Pubkey{alice}, ev.Destinations, "事件只包含实际消费的目标账户")
}

func TestSplitLamportsEmptyAmounts(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram)}

	require.NoError(t, p.Process(programID, accounts, encode(t, instruction.SplitLamports{}), buf))
	assert.Empty(t, r.calls)
	assert.Equal(t, 1, buf.Len())
}

func TestSplitLamportsUnderflow(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice)}

	err := p.Process(programID, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{1, 2}}), buf)
	assert.ErrorIs(t, err, ErrAccountUnderflow)
	assert.Empty(t, r.calls, "账户不足时不应发起任何转账")
	assert.Equal(t, 0, buf.Len())

	err = p.Process(programID, accounts[:1], encode(t, instruction.SplitLamports{}), buf)
	assert.ErrorIs(t, err, ErrAccountUnderflow)
}

func TestSplitTokensFromSingleMint(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram), writable(srcA), writable(dstA1), writable(dstA2)}

	err := p.Process(programID, accounts, encode(t, instruction.SplitTokensFromSingleMint{Amounts: []uint64{1000, 2000}}), buf)
	require.NoError(t, err)

	assert.Equal(t, []transferCall{
		{token: true, program: consts.TokenProgram, source: srcA, destination: dstA1, authority: payer, amount: 1000},
		{token: true, program: consts.TokenProgram, source: srcA, destination: dstA2, authority: payer, amount: 2000},
	}, r.calls)
	assert.Equal(t, &event.TokensSplitFromSingleMint{
		Operator:     payer,
		Source:       srcA,
		Destinations: []types.Pubkey{dstA1, dstA2},
		Amounts:      []uint64{1000, 2000},
	}, buf.Take()[0])
}

func TestSplitTokensFromSingleMintUnderflow(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram), writable(srcA)}

	err := p.Process(programID, accounts, encode(t, instruction.SplitTokensFromSingleMint{Amounts: []uint64{1}}), buf)
	assert.ErrorIs(t, err, ErrAccountUnderflow)
	assert.Empty(t, r.calls)
}

func TestSplitTokensFromMultipleMints(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{
		signer(payer), readonly(consts.TokenProgram),
		writable(srcA), writable(srcB),
		writable(dstA1), writable(dstB),
	}

	err := p.Process(programID, accounts, encode(t, instruction.SplitTokensFromMultipleMints{Amounts: []uint64{5, 6}, M: 2}), buf)
	require.NoError(t, err)

	assert.Equal(t, []transferCall{
		{token: true, program: consts.TokenProgram, source: srcA, destination: dstA1, authority: payer, amount: 5},
		{token: true, program: consts.TokenProgram, source: srcB, destination: dstB, authority: payer, amount: 6},
	}, r.calls)
	assert.Equal(t, &event.TokensSplitFromMultipleMints{
		Operator:     payer,
		Sources:      []types.Pubkey{srcA, srcB},
		Destinations: []types.Pubkey{dstA1, dstB},
		Amounts:      []uint64{5, 6},
	}, buf.Take()[0])
}

func TestSplitTokensFromMultipleMintsFewerAmounts(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{
		signer(payer), readonly(consts.TokenProgram),
		writable(srcA), writable(srcB),
		writable(dstA1), writable(dstB),
	}

	require.NoError(t, p.Process(programID, accounts, encode(t, instruction.SplitTokensFromMultipleMints{Amounts: []uint64{5}, M: 2}), buf))
	require.Len(t, r.calls, 1)
	assert.Equal(t, dstA1, r.calls[0].destination, "按位置配对：srcA -> dstA1")

	ev := buf.Take()[0].(*event.TokensSplitFromMultipleMints)
	assert.Equal(t, []types.Pubkey{srcA, srcB}, ev.Sources, "事件包含全部 m 个 source")
	assert.Equal(t, []types.Pubkey{dstA1, dstB}, ev.Destinations, "事件包含全部 m 个目标账户")
	assert.Equal(t, []uint64{5}, ev.Amounts)
}

func TestSplitTokensFromMultipleMintsNilHandle(t *testing.T) {
	cases := map[string][]*ledger.AccountInfo{
		"nil operator":    {nil, readonly(consts.TokenProgram), writable(srcA), writable(dstA1)},
		"nil source":      {signer(payer), readonly(consts.TokenProgram), nil, writable(dstA1)},
		"nil destination": {signer(payer), readonly(consts.TokenProgram), writable(srcA), nil},
	}
	data := encode(t, instruction.SplitTokensFromMultipleMints{Amounts: []uint64{1}, M: 1})

	for name, accounts := range cases {
		t.Run(name, func(t *testing.T) {
			p, r, buf := newRecorded()
			var err error
			require.NotPanics(t, func() {
				err = p.Process(programID, accounts, data, buf)
			})
			assert.ErrorIs(t, err, ErrAccountUnderflow)
			assert.Empty(t, r.calls)
			assert.Equal(t, 0, buf.Len())
		})
	}
}

func TestSplitTokensFromMultipleMintsInvalidM(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := make([]*ledger.AccountInfo, 0, 6)
	for i := 0; i < 6; i++ {
		accounts = append(accounts, writable(types.Pubkey{byte(50 + i)}))
	}

	err := p.Process(programID, accounts, encode(t, instruction.SplitTokensFromMultipleMints{Amounts: []uint64{1}, M: 1}), buf)

	var mErr *InvalidMParameterError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, &InvalidMParameterError{M: 1, Expected: 4, Actual: 6}, mErr)
	assert.Equal(t, "invalid m parameter. m=1 and expected-accounts-len=4 but provided-accounts-len=6", mErr.Error())
	assert.Empty(t, r.calls)
	assert.Equal(t, 0, buf.Len())
}

func TestSplitTokensFromMultipleMintsAmountsExceedM(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram), writable(srcA), writable(dstA1)}

	err := p.Process(programID, accounts, encode(t, instruction.SplitTokensFromMultipleMints{Amounts: []uint64{1, 2}, M: 1}), buf)
	assert.ErrorIs(t, err, ErrAmountCountExceedsM)
	assert.Empty(t, r.calls, "amounts 超过 m 时不应发起任何转账")
}

func TestSplitTokensFromMultipleMintsZeroM(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram)}

	require.NoError(t, p.Process(programID, accounts, encode(t, instruction.SplitTokensFromMultipleMints{M: 0}), buf))
	assert.Empty(t, r.calls)
	assert.Equal(t, 1, buf.Len())
}

func TestTransferErrorAborts(t *testing.T) {
	p, r, buf := newRecorded()
	r.failAt = 2
	r.failErr = ledger.ErrInsufficientFunds
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice), writable(bob), writable(carol)}

	err := p.Process(programID, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{1, 2, 3}}), buf)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Len(t, r.calls, 2, "第一个失败之后不再继续")
	assert.Equal(t, 0, buf.Len(), "失败时不产生事件")
}

func TestProcessRejects(t *testing.T) {
	p, r, buf := newRecorded()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice)}
	valid := encode(t, instruction.SplitLamports{Amounts: []uint64{1}})

	cases := []struct {
		name    string
		program types.Pubkey
		data    []byte
		expect  error
	}{
		{"wrong program", types.Pubkey{0xBB}, valid, ErrIncorrectProgramID},
		{"empty data", programID, nil, instruction.ErrMalformedInstruction},
		{"discriminator only", programID, valid[:8], instruction.ErrMalformedInstruction},
		{"unknown discriminator", programID, append([]byte{1, 2, 3, 4, 5, 6, 7, 8}, valid[8:]...), instruction.ErrUnknownCommand},
		{"trailing bytes", programID, append(append([]byte{}, valid...), 0), instruction.ErrMalformedInstruction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, p.Process(tc.program, accounts, tc.data, buf), tc.expect)
		})
	}
	assert.Empty(t, r.calls)
	assert.Equal(t, 0, buf.Len())
}

func TestProcessWithoutProgramCheck(t *testing.T) {
	r := &recorder{}
	p := New(types.Pubkey{}, r, r)
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice)}

	// sink 为 nil 时事件被丢弃
	require.NoError(t, p.Process(types.Pubkey{0xBB}, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{1}}), nil))
	assert.Len(t, r.calls, 1)
}

// 以下用内存账本执行真实的 System / SPL Token 转账

func newBank() *ledger.Bank {
	b := ledger.NewBank()
	b.Put(payer, ledger.Account{Lamports: 10_000, Owner: consts.SystemProgram})
	b.Put(alice, ledger.Account{Lamports: 5, Owner: consts.SystemProgram})
	b.Put(srcA, ledger.Account{Owner: consts.TokenProgram, Token: &ledger.TokenAccount{Mint: mintA, Owner: payer, Amount: 3000}})
	b.Put(srcB, ledger.Account{Owner: consts.TokenProgram, Token: &ledger.TokenAccount{Mint: mintB, Owner: payer, Amount: 500}})
	b.Put(dstA1, ledger.Account{Owner: consts.TokenProgram, Token: &ledger.TokenAccount{Mint: mintA, Owner: alice}})
	b.Put(dstA2, ledger.Account{Owner: consts.TokenProgram, Token: &ledger.TokenAccount{Mint: mintA, Owner: bob}})
	b.Put(dstB, ledger.Account{Owner: consts.TokenProgram, Token: &ledger.TokenAccount{Mint: mintB, Owner: carol}})
	return b
}

// run 在一个账本事务中执行，成功提交，失败回滚
func run(bank *ledger.Bank, accounts []*ledger.AccountInfo, data []byte) error {
	txn := bank.Begin()
	cpi := ledger.NewCPI(txn)
	if err := New(programID, cpi, cpi).Process(programID, accounts, data, nil); err != nil {
		txn.Discard()
		return err
	}
	return txn.Commit()
}

func snapshot(bank *ledger.Bank) map[types.Pubkey]string {
	out := make(map[types.Pubkey]string)
	for _, k := range bank.Keys() {
		out[k] = fmt.Sprintf("%d/%d", bank.Lamports(k), bank.TokenAmount(k))
	}
	return out
}

func TestBankSplitLamports(t *testing.T) {
	bank := newBank()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice), writable(bob)}

	require.NoError(t, run(bank, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{1000, 2000}})))
	assert.Equal(t, uint64(7_000), bank.Lamports(payer))
	assert.Equal(t, uint64(1_005), bank.Lamports(alice))
	assert.Equal(t, uint64(2_000), bank.Lamports(bob))
}

func TestBankSplitLamportsUnderflowNoChange(t *testing.T) {
	bank := newBank()
	before := snapshot(bank)
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice)}

	err := run(bank, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{1, 2}}))
	assert.ErrorIs(t, err, ErrAccountUnderflow)
	assert.Equal(t, before, snapshot(bank))
}

func TestBankSplitLamportsInsufficientRollsBack(t *testing.T) {
	bank := newBank()
	before := snapshot(bank)
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.SystemProgram), writable(alice), writable(bob)}

	err := run(bank, accounts, encode(t, instruction.SplitLamports{Amounts: []uint64{9_000, 2_000}}))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, before, snapshot(bank), "第一笔已执行的转账也应回滚")
}

func TestBankSplitTokensFromSingleMint(t *testing.T) {
	bank := newBank()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram), writable(srcA), writable(dstA1), writable(dstA2)}

	require.NoError(t, run(bank, accounts, encode(t, instruction.SplitTokensFromSingleMint{Amounts: []uint64{1000, 2000}})))
	assert.Equal(t, uint64(0), bank.TokenAmount(srcA))
	assert.Equal(t, uint64(1000), bank.TokenAmount(dstA1))
	assert.Equal(t, uint64(2000), bank.TokenAmount(dstA2))
}

func TestBankReplayCompounds(t *testing.T) {
	bank := newBank()
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram), writable(srcA), writable(dstA1)}
	data := encode(t, instruction.SplitTokensFromSingleMint{Amounts: []uint64{1000}})

	require.NoError(t, run(bank, accounts, data))
	require.NoError(t, run(bank, accounts, data))
	assert.Equal(t, uint64(1000), bank.TokenAmount(srcA))
	assert.Equal(t, uint64(2000), bank.TokenAmount(dstA1), "重复提交会再次执行")

	require.NoError(t, run(bank, accounts, data))
	err := run(bank, accounts, data)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, uint64(3000), bank.TokenAmount(dstA1))
}

func TestBankSplitTokensMintMismatchRollsBack(t *testing.T) {
	bank := newBank()
	before := snapshot(bank)
	accounts := []*ledger.AccountInfo{signer(payer), readonly(consts.TokenProgram), writable(srcA), writable(dstA1), writable(dstB)}

	err := run(bank, accounts, encode(t, instruction.SplitTokensFromSingleMint{Amounts: []uint64{100, 100}}))
	assert.ErrorIs(t, err, ledger.ErrMintMismatch)
	assert.Equal(t, before, snapshot(bank))
}

func TestBankSplitTokensFromMultipleMints(t *testing.T) {
	bank := newBank()
	accounts := []*ledger.AccountInfo{
		signer(payer), readonly(consts.TokenProgram),
		writable(srcA), writable(srcB),
		writable(dstA1), writable(dstB),
	}

	require.NoError(t, run(bank, accounts, encode(t, instruction.SplitTokensFromMultipleMints{Amounts: []uint64{300, 200}, M: 2})))
	assert.Equal(t, uint64(2700), bank.TokenAmount(srcA))
	assert.Equal(t, uint64(300), bank.TokenAmount(srcB))
	assert.Equal(t, uint64(300), bank.TokenAmount(dstA1))
	assert.Equal(t, uint64(200), bank.TokenAmount(dstB))
}

func TestBankSplitTokensOperatorNotOwner(t *testing.T) {
	bank := newBank()
	before := snapshot(bank)
	accounts := []*ledger.AccountInfo{signer(alice), readonly(consts.TokenProgram), writable(srcA), writable(dstA1)}

	err := run(bank, accounts, encode(t, instruction.SplitTokensFromSingleMint{Amounts: []uint64{1}}))
	assert.ErrorIs(t, err, ledger.ErrOwnerMismatch)
	assert.Equal(t, before, snapshot(bank))
}
