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

type shareHolding struct {
	class  amm.PairKey
	holder common.Address
}

// Shares is an in-memory ledger of pool-share receipts. Each pool's shares
// form their own class, keyed by pair key.
type Shares struct {
	mu       sync.RWMutex
	balances map[shareHolding]*uint256.Int
	supply   map[amm.PairKey]*uint256.Int
}

func NewShares() *Shares {
	return &Shares{
		balances: make(map[shareHolding]*uint256.Int),
		supply:   make(map[amm.PairKey]*uint256.Int),
	}
}

func (s *Shares) Mint(_ context.Context, class amm.PairKey, holder common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := shareHolding{class, holder}
	supply, overflow := new(uint256.Int).AddOverflow(valueOf(s.supply[class]), amount)
	if overflow {
		return amm.ErrOverflow.Wrapf("share supply of %s", class)
	}
	balance, overflow := new(uint256.Int).AddOverflow(valueOf(s.balances[h]), amount)
	if overflow {
		return amm.ErrOverflow.Wrapf("shares of %s in %s", holder.Hex(), class)
	}
	s.supply[class] = supply
	s.balances[h] = balance
	return nil
}

func (s *Shares) Burn(_ context.Context, class amm.PairKey, holder common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := shareHolding{class, holder}
	balance := valueOf(s.balances[h])
	if balance.Lt(amount) {
		return amm.ErrInsufficientShares.Wrapf("%s holds %s shares of %s, burning %s", holder.Hex(), balance.Dec(), class, amount.Dec())
	}
	s.balances[h] = new(uint256.Int).Sub(balance, amount)
	s.supply[class] = new(uint256.Int).Sub(valueOf(s.supply[class]), amount)
	return nil
}

func (s *Shares) BalanceOf(_ context.Context, class amm.PairKey, holder common.Address) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(uint256.Int).Set(valueOf(s.balances[shareHolding{class, holder}])), nil
}

// TotalSupply returns the outstanding shares of class.
func (s *Shares) TotalSupply(class amm.PairKey) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(uint256.Int).Set(valueOf(s.supply[class]))
}

// Records exports every non-zero holding, ordered by class then holder.
func (s *Shares) Records() []model.ShareRecord {
	s.mu.RLock()
	keys := make([]shareHolding, 0, len(s.balances))
	for h, v := range s.balances {
		if !v.IsZero() {
			keys = append(keys, h)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := bytes.Compare(keys[i].class[:], keys[j].class[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(keys[i].holder[:], keys[j].holder[:]) < 0
	})
	out := make([]model.ShareRecord, 0, len(keys))
	for _, h := range keys {
		out = append(out, model.ShareRecord{
			Class:  h.class.String(),
			Holder: h.holder.Hex(),
			Amount: s.balances[h].Dec(),
		})
	}
	s.mu.RUnlock()
	return out
}

// Load replaces the ledger's contents with records and recomputes supplies.
func (s *Shares) Load(records []model.ShareRecord) error {
	balances := make(map[shareHolding]*uint256.Int, len(records))
	supply := make(map[amm.PairKey]*uint256.Int)
	for _, rec := range records {
		class, err := amm.ParsePairKey(rec.Class)
		if err != nil {
			return fmt.Errorf("load shares: class %q: %w", rec.Class, err)
		}
		holder, err := model.ParseAddress(rec.Holder)
		if err != nil {
			return fmt.Errorf("load shares: %w", err)
		}
		amount, err := model.ParseAmount(rec.Amount)
		if err != nil {
			return fmt.Errorf("load shares %s/%s: %w", rec.Class, rec.Holder, err)
		}
		total, overflow := new(uint256.Int).AddOverflow(valueOf(supply[class]), amount)
		if overflow {
			return amm.ErrOverflow.Wrapf("share supply of %s", class)
		}
		supply[class] = total
		h := shareHolding{class, holder}
		balances[h] = new(uint256.Int).Add(valueOf(balances[h]), amount)
	}

	s.mu.Lock()
	s.balances = balances
	s.supply = supply
	s.mu.Unlock()
	return nil
}

func valueOf(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
