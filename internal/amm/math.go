package amm

import (
	"math/big"

	"github.com/holiman/uint256"
)

// FeeDenominator is the basis-point denominator for swap fees.
const FeeDenominator = 10_000

// PriceScale is the fixed-point scale of spot prices.
var PriceScale = uint256.NewInt(1_000_000_000_000_000_000)

var feeDenominator = uint256.NewInt(FeeDenominator)

// QuoteOutput returns the constant-product output for adding amountIn to the
// input reserve, with no fee deducted: amountIn * reserveOut / (reserveIn + amountIn).
func QuoteOutput(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if err := requirePositive(amountIn, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	denominator, err := addChecked(reserveIn, amountIn)
	if err != nil {
		return nil, err
	}
	return mulDiv(amountIn, reserveOut, denominator)
}

// QuoteOutputWithFee is QuoteOutput with feeBps basis points taken from the
// input before pricing. A zero fee yields exactly QuoteOutput.
func QuoteOutputWithFee(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if feeBps == 0 {
		return QuoteOutput(amountIn, reserveIn, reserveOut)
	}
	if err := requirePositive(amountIn, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	feeMul, err := feeMultiplier(feeBps)
	if err != nil {
		return nil, err
	}
	amountInWithFee, err := mulChecked(amountIn, feeMul)
	if err != nil {
		return nil, err
	}
	scaledReserveIn, err := mulChecked(reserveIn, feeDenominator)
	if err != nil {
		return nil, err
	}
	denominator, err := addChecked(scaledReserveIn, amountInWithFee)
	if err != nil {
		return nil, err
	}
	return mulDiv(amountInWithFee, reserveOut, denominator)
}

// QuoteInput returns the smallest input that yields at least amountOut.
func QuoteInput(amountOut, reserveIn, reserveOut *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if err := requirePositive(amountOut, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if !amountOut.Lt(reserveOut) {
		return nil, ErrNoLiquidity.Wrapf("amount out %s exceeds reserve %s", amountOut.Dec(), reserveOut.Dec())
	}
	feeMul, err := feeMultiplier(feeBps)
	if err != nil {
		return nil, err
	}
	scaledOut, err := mulChecked(amountOut, feeDenominator)
	if err != nil {
		return nil, err
	}
	remaining := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator, err := mulChecked(remaining, feeMul)
	if err != nil {
		return nil, err
	}
	amountIn, err := mulDiv(reserveIn, scaledOut, denominator)
	if err != nil {
		return nil, err
	}
	return addChecked(amountIn, uint256.NewInt(1))
}

// Quote returns the amount of the other asset equivalent to amountA at the
// reserve ratio: amountA * reserveB / reserveA.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if err := requirePositive(amountA, reserveA, reserveB); err != nil {
		return nil, err
	}
	return mulDiv(amountA, reserveB, reserveA)
}

func feeMultiplier(feeBps uint64) (*uint256.Int, error) {
	if feeBps >= FeeDenominator {
		return nil, ErrInvalidInput.Wrapf("fee %d bps must be below %d", feeBps, FeeDenominator)
	}
	return uint256.NewInt(FeeDenominator - feeBps), nil
}

func requirePositive(values ...*uint256.Int) error {
	for _, v := range values {
		if v == nil || v.IsZero() {
			return ErrInvalidInput.Wrap("amounts and reserves must be positive")
		}
	}
	return nil
}

// mulDiv computes floor(x * y / d) with a 512-bit intermediate product.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrInvalidPoolState.Wrap("division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow.Wrapf("%s * %s / %s", x.Dec(), y.Dec(), d.Dec())
	}
	return z, nil
}

func mulChecked(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow.Wrapf("%s * %s", x.Dec(), y.Dec())
	}
	return z, nil
}

func addChecked(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow.Wrapf("%s + %s", x.Dec(), y.Dec())
	}
	return z, nil
}

func subChecked(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrInvalidPoolState.Wrapf("%s - %s underflows", x.Dec(), y.Dec())
	}
	return z, nil
}

// sqrtProduct returns floor(sqrt(a * b)). The product may need 512 bits; its
// root always fits in 256.
func sqrtProduct(a, b *uint256.Int) *uint256.Int {
	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	root, _ := uint256.FromBig(product.Sqrt(product))
	return root
}

func minInt(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
