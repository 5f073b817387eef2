package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"asset-splitter-sol/internal/config"
	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/instruction"
	"asset-splitter-sol/internal/ledger"
	"asset-splitter-sol/internal/svc"
	"asset-splitter-sol/internal/types"

	sdktypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
)

var (
	configFile   = flag.String("f", "etc/splitter.yaml", "the config file")
	command      = flag.String("cmd", "splitlamports", "splitlamports | splitspltokensfromsinglemint | splitspltokensfrommultiplemints")
	source       = flag.String("source", "", "funding account (native) or source token account (single mint)")
	sources      = flag.String("sources", "", "comma separated source token accounts (multiple mints)")
	destinations = flag.String("destinations", "", "comma separated destination accounts")
	amounts      = flag.String("amounts", "", "comma separated amounts")
	operator     = flag.String("operator", "", "signing owner or delegate of the source token accounts")
	tokenProgram = flag.String("token-program", consts.TokenProgramStr, "token program id")
	m            = flag.Int("m", -1, "pair count for multiple mints, defaults to the number of sources")
	repeat       = flag.Int("repeat", 1, "submit the same instruction n times")
	rawData      = flag.String("data", "", "base58 instruction data overriding the encoded command")
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			os.Exit(2)
		}
	}()

	flag.Parse()

	var c config.SplitterConfig
	conf.MustLoad(*configFile, &c)

	sc, err := svc.NewServiceContext(c)
	if err != nil {
		logx.Errorf("init service context: %v", err)
		os.Exit(1)
	}

	code := run(sc)
	sc.Close()
	os.Exit(code)
}

// run 提交指令并打印结果，返回进程退出码
func run(sc *svc.ServiceContext) int {
	ix, err := buildInstruction(sc.Host.ProgramID())
	if err != nil {
		logx.Errorf("build instruction: %v", err)
		return 1
	}
	if *rawData != "" {
		data, err := base58.Decode(*rawData)
		if err != nil {
			logx.Errorf("decode -data: %v", err)
			return 1
		}
		ix.Data = data
	}

	logx.Infof("Submitting %s %d time(s)", *command, *repeat)

	accounts := ledger.AccountInfosFromMetas(ix.Accounts)
	failed := 0
	for i := 0; i < *repeat; i++ {
		receipt, err := sc.Host.Invoke(context.Background(), types.Pubkey(ix.ProgramID), accounts, ix.Data)
		if err != nil {
			failed++
			fmt.Printf("#%d FAILED digest=%s: %v\n", i+1, receipt.Digest, err)
			continue
		}
		fmt.Printf("#%d OK digest=%s events=%d submissions=%d\n", i+1, receipt.Digest, len(receipt.Events), receipt.Submissions)
		for _, ev := range receipt.Events {
			fmt.Printf("    %s\n", ev)
		}
	}

	printBalances(sc.Bank, accounts)
	if failed > 0 {
		return 1
	}
	return 0
}

func buildInstruction(programID types.Pubkey) (sdktypes.Instruction, error) {
	amountList, err := parseAmounts(*amounts)
	if err != nil {
		return sdktypes.Instruction{}, err
	}
	dests, err := parseKeys(*destinations)
	if err != nil {
		return sdktypes.Instruction{}, fmt.Errorf("-destinations: %w", err)
	}

	switch *command {
	case "splitlamports":
		src, err := types.TryPubkeyFromBase58(*source)
		if err != nil {
			return sdktypes.Instruction{}, fmt.Errorf("-source: %w", err)
		}
		return instruction.NewSplitLamportsInstruction(programID, src, dests, amountList)

	case "splitspltokensfromsinglemint":
		src, err := types.TryPubkeyFromBase58(*source)
		if err != nil {
			return sdktypes.Instruction{}, fmt.Errorf("-source: %w", err)
		}
		op, tp, err := parseOperator()
		if err != nil {
			return sdktypes.Instruction{}, err
		}
		return instruction.NewSplitTokensFromSingleMintInstruction(programID, tp, op, src, dests, amountList)

	case "splitspltokensfrommultiplemints":
		srcs, err := parseKeys(*sources)
		if err != nil {
			return sdktypes.Instruction{}, fmt.Errorf("-sources: %w", err)
		}
		op, tp, err := parseOperator()
		if err != nil {
			return sdktypes.Instruction{}, err
		}
		ix, err := instruction.NewSplitTokensFromMultipleMintsInstruction(programID, tp, op, srcs, dests, amountList)
		if err != nil {
			return sdktypes.Instruction{}, err
		}
		if *m >= 0 {
			// 显式 m 用于构造与账户数量不符的指令
			if *m > 0xFFFF {
				return sdktypes.Instruction{}, fmt.Errorf("-m %d out of range", *m)
			}
			data, err := instruction.Encode(instruction.SplitTokensFromMultipleMints{Amounts: amountList, M: uint16(*m)})
			if err != nil {
				return sdktypes.Instruction{}, err
			}
			ix.Data = data
		}
		return ix, nil

	default:
		return sdktypes.Instruction{}, fmt.Errorf("unknown -cmd %q", *command)
	}
}

func parseOperator() (types.Pubkey, types.Pubkey, error) {
	op, err := types.TryPubkeyFromBase58(*operator)
	if err != nil {
		return types.Pubkey{}, types.Pubkey{}, fmt.Errorf("-operator: %w", err)
	}
	tp, err := types.TryPubkeyFromBase58(*tokenProgram)
	if err != nil {
		return types.Pubkey{}, types.Pubkey{}, fmt.Errorf("-token-program: %w", err)
	}
	return op, tp, nil
}

func parseKeys(s string) ([]types.Pubkey, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return types.PubkeysFromBase58(strings.Split(s, ","))
}

func parseAmounts(s string) ([]uint64, error) {
	out := []uint64{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("-amounts: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func printBalances(bank *ledger.Bank, accounts []*ledger.AccountInfo) {
	fmt.Println("balances:")
	seen := make(map[types.Pubkey]bool, len(accounts))
	for _, acc := range accounts {
		if seen[acc.Key] {
			continue
		}
		seen[acc.Key] = true
		a, ok := bank.Account(acc.Key)
		switch {
		case !ok:
			fmt.Printf("  %-44s (missing)\n", acc.Key)
		case a.Token != nil:
			fmt.Printf("  %-44s token mint=%s amount=%d\n", acc.Key, a.Token.Mint, a.Token.Amount)
		default:
			fmt.Printf("  %-44s lamports=%d (%s SOL)\n", acc.Key, a.Lamports, consts.FormatSOL(a.Lamports))
		}
	}
}
