package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PricingOracle answers read-only price questions. It never modifies pools.
type PricingOracle struct {
	registry *Registry
}

func NewPricingOracle(registry *Registry) *PricingOracle {
	return &PricingOracle{registry: registry}
}

// SpotPrice returns quote-asset units per base-asset unit, scaled by PriceScale.
func (o *PricingOracle) SpotPrice(base, quote common.Address) (*uint256.Int, error) {
	pair := NewPair(base, quote)
	if pair.Identical() {
		return nil, ErrInvalidPath.Wrapf("cannot price %s against itself", base.Hex())
	}
	pool, ok := o.registry.Get(pair.Key())
	if !ok {
		return nil, ErrNoLiquidity.Wrapf("pool %s does not exist", pair.Key())
	}
	reserveBase, reserveQuote := pool.ReservesFor(base)
	if reserveBase.IsZero() || reserveQuote.IsZero() {
		return nil, ErrNoLiquidity.Wrapf("pool %s has no reserves", pair.Key())
	}
	return mulDiv(reserveQuote, PriceScale, reserveBase)
}

// QuoteOutput estimates a fee-less trade from raw reserves.
func (o *PricingOracle) QuoteOutput(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return QuoteOutput(amountIn, reserveIn, reserveOut)
}

// Pool returns the pool of the pair, if it was ever referenced.
func (o *PricingOracle) Pool(assetA, assetB common.Address) (PoolState, bool) {
	return o.registry.Get(CanonicalKey(assetA, assetB))
}
