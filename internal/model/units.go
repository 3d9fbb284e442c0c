package model

import (
	"math/big"
)

// PriceDecimals is the number of fractional digits in a fixed-point spot price.
const PriceDecimals = 18

// FormatTokenAmount renders a raw integer amount with decimals fractional digits.
func FormatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	rat := new(big.Rat).SetFrac(abs, pow10(int64(decimals)))
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// FormatPrice converts a fixed-point price of raw quote units per raw base
// unit into whole quote tokens per whole base token.
func FormatPrice(price *big.Int, baseDecimals, quoteDecimals uint8) string {
	if price == nil {
		return "0"
	}
	num := new(big.Int).Mul(price, pow10(int64(baseDecimals)))
	den := new(big.Int).Mul(pow10(PriceDecimals), pow10(int64(quoteDecimals)))
	return new(big.Rat).SetFrac(num, den).FloatString(PriceDecimals)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
