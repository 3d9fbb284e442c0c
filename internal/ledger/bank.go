package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

// DefaultCustody is the account that holds pooled assets when none is configured.
var DefaultCustody = common.HexToAddress("0x000000000000000000000000000000000000a4d4")

var _ amm.TransferReverser = (*Bank)(nil)

type holding struct {
	asset   common.Address
	account common.Address
}

// Bank is an in-memory asset ledger. Pooled assets sit in a single custody
// account; PullFrom and PushTo move value between it and other accounts.
//
// With allowances enforced, PullFrom also spends the payer's approval to the
// custody account, like an ERC-20 transferFrom.
type Bank struct {
	mu                sync.RWMutex
	custody           common.Address
	enforceAllowances bool
	balances          map[holding]*uint256.Int
	allowances        map[holding]*uint256.Int
}

// NewBank returns an empty bank. A zero custody address selects DefaultCustody.
func NewBank(custody common.Address, enforceAllowances bool) *Bank {
	if custody == (common.Address{}) {
		custody = DefaultCustody
	}
	return &Bank{
		custody:           custody,
		enforceAllowances: enforceAllowances,
		balances:          make(map[holding]*uint256.Int),
		allowances:        make(map[holding]*uint256.Int),
	}
}

// Custody returns the account holding pooled assets.
func (b *Bank) Custody() common.Address {
	return b.custody
}

// Credit adds amount to account's balance of asset.
func (b *Bank) Credit(asset, account common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.credit(holding{asset, account}, amount)
}

// Approve sets the amount of asset the custody account may pull from owner.
func (b *Bank) Approve(asset, owner common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[holding{asset, owner}] = new(uint256.Int).Set(amount)
}

// BalanceOf returns account's balance of asset.
func (b *Bank) BalanceOf(asset, account common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.get(b.balances, holding{asset, account})
}

// Allowance returns what the custody account may still pull from owner.
func (b *Bank) Allowance(asset, owner common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.get(b.allowances, holding{asset, owner})
}

func (b *Bank) PullFrom(_ context.Context, asset, payer common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := holding{asset, payer}
	balance := b.get(b.balances, from)
	if balance.Lt(amount) {
		return amm.ErrInsufficientFunds.Wrapf("%s holds %s of %s, needs %s", payer.Hex(), balance.Dec(), asset.Hex(), amount.Dec())
	}
	var allowance *uint256.Int
	if b.enforceAllowances && payer != b.custody {
		allowance = b.get(b.allowances, from)
		if allowance.Lt(amount) {
			return amm.ErrInsufficientFunds.Wrapf("%s approved %s of %s, needs %s", payer.Hex(), allowance.Dec(), asset.Hex(), amount.Dec())
		}
	}
	if err := b.credit(holding{asset, b.custody}, amount); err != nil {
		return err
	}
	b.balances[from] = balance.Sub(balance, amount)
	if allowance != nil {
		b.allowances[from] = allowance.Sub(allowance, amount)
	}
	return nil
}

func (b *Bank) PushTo(_ context.Context, asset, recipient common.Address, amount *uint256.Int) error {
	if recipient == (common.Address{}) {
		return amm.ErrTransferFailed.Wrap("recipient is the zero address")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	from := holding{asset, b.custody}
	held := b.get(b.balances, from)
	if held.Lt(amount) {
		return amm.ErrTransferFailed.Wrapf("custody holds %s of %s, needs %s", held.Dec(), asset.Hex(), amount.Dec())
	}
	if err := b.credit(holding{asset, recipient}, amount); err != nil {
		return amm.ErrTransferFailed.Wrap(err.Error())
	}
	b.balances[from] = held.Sub(held, amount)
	return nil
}

// Refund returns amount of asset from custody to payer and, with allowances
// enforced, gives back the approval the matching PullFrom spent.
func (b *Bank) Refund(_ context.Context, asset, payer common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.move(asset, b.custody, payer, amount); err != nil {
		return err
	}
	if !b.enforceAllowances || payer == b.custody {
		return nil
	}
	h := holding{asset, payer}
	allowance, overflow := new(uint256.Int).AddOverflow(b.get(b.allowances, h), amount)
	if overflow {
		return amm.ErrOverflow.Wrapf("allowance of %s in %s", payer.Hex(), asset.Hex())
	}
	b.allowances[h] = allowance
	return nil
}

// Reclaim takes amount of asset back from recipient into custody, ignoring
// allowances. It reverses a PushTo.
func (b *Bank) Reclaim(_ context.Context, asset, recipient common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, recipient, b.custody, amount)
}

func (b *Bank) move(asset, from, to common.Address, amount *uint256.Int) error {
	src := holding{asset, from}
	held := b.get(b.balances, src)
	if held.Lt(amount) {
		return amm.ErrTransferFailed.Wrapf("%s holds %s of %s, needs %s", from.Hex(), held.Dec(), asset.Hex(), amount.Dec())
	}
	if err := b.credit(holding{asset, to}, amount); err != nil {
		return err
	}
	b.balances[src] = held.Sub(held, amount)
	return nil
}

// Records exports every non-empty balance and allowance, ordered by asset
// then account.
func (b *Bank) Records() []model.BalanceRecord {
	b.mu.RLock()
	keys := make(map[holding]struct{}, len(b.balances))
	for h, v := range b.balances {
		if !v.IsZero() {
			keys[h] = struct{}{}
		}
	}
	for h, v := range b.allowances {
		if !v.IsZero() {
			keys[h] = struct{}{}
		}
	}
	out := make([]model.BalanceRecord, 0, len(keys))
	for h := range keys {
		rec := model.BalanceRecord{
			Asset:   h.asset.Hex(),
			Account: h.account.Hex(),
			Balance: b.get(b.balances, h).Dec(),
		}
		if allowance := b.get(b.allowances, h); !allowance.IsZero() {
			rec.Allowance = allowance.Dec()
		}
		out = append(out, rec)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ai, aj := common.HexToAddress(out[i].Asset), common.HexToAddress(out[j].Asset)
		if c := bytes.Compare(ai[:], aj[:]); c != 0 {
			return c < 0
		}
		oi, oj := common.HexToAddress(out[i].Account), common.HexToAddress(out[j].Account)
		return bytes.Compare(oi[:], oj[:]) < 0
	})
	return out
}

// Load replaces the bank's contents with records.
func (b *Bank) Load(records []model.BalanceRecord) error {
	balances := make(map[holding]*uint256.Int, len(records))
	allowances := make(map[holding]*uint256.Int)
	for _, rec := range records {
		asset, err := model.ParseAddress(rec.Asset)
		if err != nil {
			return fmt.Errorf("load balance: %w", err)
		}
		account, err := model.ParseAddress(rec.Account)
		if err != nil {
			return fmt.Errorf("load balance: %w", err)
		}
		balance, err := model.ParseOptionalAmount(rec.Balance)
		if err != nil {
			return fmt.Errorf("load balance %s/%s: %w", rec.Asset, rec.Account, err)
		}
		allowance, err := model.ParseOptionalAmount(rec.Allowance)
		if err != nil {
			return fmt.Errorf("load allowance %s/%s: %w", rec.Asset, rec.Account, err)
		}
		h := holding{asset, account}
		balances[h] = balance
		if !allowance.IsZero() {
			allowances[h] = allowance
		}
	}

	b.mu.Lock()
	b.balances = balances
	b.allowances = allowances
	b.mu.Unlock()
	return nil
}

func (b *Bank) credit(h holding, amount *uint256.Int) error {
	current := b.get(b.balances, h)
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return amm.ErrOverflow.Wrapf("balance of %s in %s", h.account.Hex(), h.asset.Hex())
	}
	b.balances[h] = sum
	return nil
}

// get returns a copy of the stored value, or zero.
func (b *Bank) get(m map[holding]*uint256.Int, h holding) *uint256.Int {
	if v, ok := m[h]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}
