package ledger

import (
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"cpamm/internal/model"
)

// Genesis seeds the asset ledger before a replay starts.
type Genesis struct {
	Custody           string           `yaml:"custody"`
	EnforceAllowances bool             `yaml:"enforce_allowances"`
	Accounts          []GenesisAccount `yaml:"accounts"`
}

// GenesisAccount lists one account's starting balances and approvals,
// keyed by asset address.
type GenesisAccount struct {
	Address    string            `yaml:"address"`
	Balances   map[string]string `yaml:"balances"`
	Allowances map[string]string `yaml:"allowances"`
}

// LoadGenesis reads a YAML genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	return &g, nil
}

// CustodyAddress returns the configured custody account, or DefaultCustody.
func (g *Genesis) CustodyAddress() (common.Address, error) {
	return model.ParseOptionalAddress(g.Custody, DefaultCustody)
}

// NewBank builds a bank holding the genesis balances.
func (g *Genesis) NewBank() (*Bank, error) {
	custody, err := g.CustodyAddress()
	if err != nil {
		return nil, fmt.Errorf("genesis custody: %w", err)
	}
	bank := NewBank(custody, g.EnforceAllowances)
	if err := bank.Load(g.Records()); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return bank, nil
}

// Records flattens the genesis accounts into balance records.
func (g *Genesis) Records() []model.BalanceRecord {
	var out []model.BalanceRecord
	for _, acct := range g.Accounts {
		assets := make(map[string]struct{}, len(acct.Balances)+len(acct.Allowances))
		for asset := range acct.Balances {
			assets[asset] = struct{}{}
		}
		for asset := range acct.Allowances {
			assets[asset] = struct{}{}
		}
		sorted := make([]string, 0, len(assets))
		for asset := range assets {
			sorted = append(sorted, asset)
		}
		sort.Strings(sorted)

		for _, asset := range sorted {
			out = append(out, model.BalanceRecord{
				Asset:     asset,
				Account:   acct.Address,
				Balance:   acct.Balances[asset],
				Allowance: acct.Allowances[asset],
			})
		}
	}
	return out
}
