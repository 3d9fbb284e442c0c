package amm

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error codespace for pool engine errors.
const Codespace = "amm"

// Engine error kinds. Callers match them with errors.Is.
var (
	ErrExpired            = errorsmod.Register(Codespace, 2, "deadline expired")
	ErrInvalidInput       = errorsmod.Register(Codespace, 3, "invalid input")
	ErrInvalidPath        = errorsmod.Register(Codespace, 4, "invalid path")
	ErrNoLiquidity        = errorsmod.Register(Codespace, 5, "insufficient liquidity")
	ErrSlippageExceeded   = errorsmod.Register(Codespace, 6, "slippage exceeded")
	ErrZeroLiquidity      = errorsmod.Register(Codespace, 7, "zero liquidity minted")
	ErrInsufficientShares = errorsmod.Register(Codespace, 8, "insufficient shares")
	ErrInsufficientFunds  = errorsmod.Register(Codespace, 9, "insufficient balance or allowance")
	ErrTransferFailed     = errorsmod.Register(Codespace, 10, "transfer failed")
	ErrOverflow           = errorsmod.Register(Codespace, 11, "arithmetic overflow")
	ErrInvalidPoolState   = errorsmod.Register(Codespace, 12, "invalid pool state")
)

var errorKinds = []struct {
	err  *errorsmod.Error
	name string
}{
	{ErrExpired, "expired"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidPath, "invalid_path"},
	{ErrNoLiquidity, "no_liquidity"},
	{ErrSlippageExceeded, "slippage_exceeded"},
	{ErrZeroLiquidity, "zero_liquidity"},
	{ErrInsufficientShares, "insufficient_shares"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrTransferFailed, "transfer_failed"},
	{ErrOverflow, "overflow"},
	{ErrInvalidPoolState, "invalid_pool_state"},
}

// ErrorKind names the engine error kind of err: "ok" for nil, "internal"
// for errors outside the codespace.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			return kind.name
		}
	}
	return "internal"
}
