package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolState is the accounting state of one pool. Reserves follow the pair's
// canonical order.
type PoolState struct {
	Pair        Pair
	Reserve0    uint256.Int
	Reserve1    uint256.Int
	TotalShares uint256.Int
}

// Key returns the pool's pair key.
func (p PoolState) Key() PairKey {
	return p.Pair.Key()
}

// Initialized reports whether the pool has outstanding shares.
func (p PoolState) Initialized() bool {
	return !p.TotalShares.IsZero()
}

// ReservesFor returns the reserves ordered as (asset, other side).
func (p PoolState) ReservesFor(asset common.Address) (*uint256.Int, *uint256.Int) {
	r0, r1 := p.Reserve0, p.Reserve1
	if asset == p.Pair.Asset1 {
		return &r1, &r0
	}
	return &r0, &r1
}

// Product returns reserve0 * reserve1 without truncation.
func (p PoolState) Product() *big.Int {
	return new(big.Int).Mul(p.Reserve0.ToBig(), p.Reserve1.ToBig())
}

// Validate checks the shares/reserves invariant.
func (p PoolState) Validate() error {
	if p.TotalShares.IsZero() {
		if !p.Reserve0.IsZero() || !p.Reserve1.IsZero() {
			return ErrInvalidPoolState.Wrapf("pool %s has reserves (%s, %s) but no shares",
				p.Key(), p.Reserve0.Dec(), p.Reserve1.Dec())
		}
		return nil
	}
	if p.Reserve0.IsZero() || p.Reserve1.IsZero() {
		return ErrInvalidPoolState.Wrapf("pool %s has %s shares but reserves (%s, %s)",
			p.Key(), p.TotalShares.Dec(), p.Reserve0.Dec(), p.Reserve1.Dec())
	}
	return nil
}

// orient maps amounts given in (a, b) caller order onto canonical order.
func orient(pair Pair, assetA common.Address, a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if assetA == pair.Asset0 {
		return a, b
	}
	return b, a
}
