package ledger

import (
	"fmt"
	"io"
	"os"

	"asset-splitter-sol/internal/consts"
	"asset-splitter-sol/internal/types"

	"gopkg.in/yaml.v3"
)

// GenesisAccount 是 genesis 文件中的一个账户条目
type GenesisAccount struct {
	Address types.Pubkey `yaml:"address"`
	Account `yaml:",inline"`
}

// Genesis 描述账本初始状态
type Genesis struct {
	Accounts []GenesisAccount `yaml:"accounts"`
}

// LoadGenesis 从 YAML 读取初始账户。
// token 账户未指定 owner 时默认归属 Token Program；普通账户默认归属 System Program。
func LoadGenesis(r io.Reader) (*Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}

	seen := make(map[types.Pubkey]struct{}, len(g.Accounts))
	for i := range g.Accounts {
		acct := &g.Accounts[i]
		if _, dup := seen[acct.Address]; dup {
			return nil, fmt.Errorf("duplicate genesis account %s", acct.Address)
		}
		seen[acct.Address] = struct{}{}

		if acct.Token != nil && acct.Owner.IsZero() {
			acct.Owner = consts.TokenProgram
		}
	}
	return &g, nil
}

// LoadGenesisFile 读取 genesis 文件
func LoadGenesisFile(path string) (*Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadGenesis(f)
}

// Apply 将 genesis 账户写入账本
func (g *Genesis) Apply(b *Bank) {
	for _, acct := range g.Accounts {
		b.Put(acct.Address, acct.Account)
	}
}
