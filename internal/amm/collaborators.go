package amm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AssetTransfer moves assets between parties and the pool custody.
//
// PullFrom fails with ErrInsufficientFunds when the payer's balance or
// allowance is short; PushTo fails with ErrTransferFailed.
type AssetTransfer interface {
	PullFrom(ctx context.Context, asset, payer common.Address, amount *uint256.Int) error
	PushTo(ctx context.Context, asset, recipient common.Address, amount *uint256.Int) error
}

// TransferReverser is implemented by transfers that can undo their own
// moves exactly. Refund reverses a PullFrom, restoring any allowance it
// spent; Reclaim reverses a PushTo without consulting allowances. Rollback
// uses it when available and falls back to the opposite transfer.
type TransferReverser interface {
	Refund(ctx context.Context, asset, payer common.Address, amount *uint256.Int) error
	Reclaim(ctx context.Context, asset, recipient common.Address, amount *uint256.Int) error
}

// ShareLedger issues pool-share receipts. Every pool has its own receipt
// class, identified by the pool's pair key.
type ShareLedger interface {
	Mint(ctx context.Context, class PairKey, holder common.Address, amount *uint256.Int) error
	Burn(ctx context.Context, class PairKey, holder common.Address, amount *uint256.Int) error
	BalanceOf(ctx context.Context, class PairKey, holder common.Address) (*uint256.Int, error)
}

// Clock reports the current time in unix seconds.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 {
	return f()
}

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() uint64 {
	return uint64(time.Now().Unix())
})

// FixedClock always reports ts.
func FixedClock(ts uint64) Clock {
	return ClockFunc(func() uint64 { return ts })
}

func checkDeadline(clock Clock, deadline uint64) error {
	if now := clock.Now(); now > deadline {
		return ErrExpired.Wrapf("now %d is past deadline %d", now, deadline)
	}
	return nil
}
