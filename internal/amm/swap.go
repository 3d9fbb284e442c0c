package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// SwapParams describes an exact-input trade along a two-asset path.
type SwapParams struct {
	AmountIn     *uint256.Int
	AmountOutMin *uint256.Int
	Path         []common.Address
	Sender       common.Address
	Recipient    common.Address
	Deadline     uint64
}

// SwapResult reports a completed trade.
type SwapResult struct {
	Key       PairKey
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// SwapEngine prices trades against pool reserves and applies them.
type SwapEngine struct {
	registry  *Registry
	transfers AssetTransfer
	clock     Clock
	feeBps    uint64
	logger    *zap.Logger
}

func NewSwapEngine(registry *Registry, transfers AssetTransfer, clock Clock, feeBps uint64, logger *zap.Logger) *SwapEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock
	}
	return &SwapEngine{
		registry:  registry,
		transfers: transfers,
		clock:     clock,
		feeBps:    feeBps,
		logger:    logger,
	}
}

// FeeBps returns the swap fee in basis points.
func (e *SwapEngine) FeeBps() uint64 {
	return e.feeBps
}

// SwapExactIn trades AmountIn of Path[0] for as much Path[1] as the pool
// gives, failing if that is below AmountOutMin.
func (e *SwapEngine) SwapExactIn(ctx context.Context, p SwapParams) (SwapResult, error) {
	if err := checkDeadline(e.clock, p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if len(p.Path) != 2 {
		return SwapResult{}, ErrInvalidPath.Wrapf("path has %d assets, want 2", len(p.Path))
	}
	input, output := p.Path[0], p.Path[1]
	if input == output {
		return SwapResult{}, ErrInvalidPath.Wrapf("cannot swap %s for itself", input.Hex())
	}

	pair := NewPair(input, output)
	key := pair.Key()
	pool, ok := e.registry.Get(key)
	if !ok || !pool.Initialized() {
		return SwapResult{}, ErrNoLiquidity.Wrapf("pool %s is empty", key)
	}

	amountIn := orZero(p.AmountIn)
	reserveIn, reserveOut := pool.ReservesFor(input)
	amountOut, err := QuoteOutputWithFee(amountIn, reserveIn, reserveOut, e.feeBps)
	if err != nil {
		return SwapResult{}, err
	}
	if minOut := orZero(p.AmountOutMin); amountOut.Lt(minOut) {
		return SwapResult{}, ErrSlippageExceeded.Wrapf("amount out %s below minimum %s", amountOut.Dec(), minOut.Dec())
	}

	newReserveIn, err := addChecked(reserveIn, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	newReserveOut, err := subChecked(reserveOut, amountOut)
	if err != nil {
		return SwapResult{}, err
	}
	next := pool
	if input == pair.Asset0 {
		next.Reserve0, next.Reserve1 = *newReserveIn, *newReserveOut
	} else {
		next.Reserve0, next.Reserve1 = *newReserveOut, *newReserveIn
	}
	if next.Product().Cmp(pool.Product()) < 0 {
		return SwapResult{}, ErrInvalidPoolState.Wrapf("swap would decrease the reserve product of pool %s", key)
	}

	var j journal
	if err := pullRecorded(ctx, e.transfers, &j, input, p.Sender, amountIn); err != nil {
		return SwapResult{}, j.rollback(ctx, e.logger, err)
	}
	if err := pushRecorded(ctx, e.transfers, &j, output, p.Recipient, amountOut); err != nil {
		return SwapResult{}, j.rollback(ctx, e.logger, err)
	}
	e.registry.Put(next)

	e.logger.Debug("swap executed",
		zap.Stringer("pair", key),
		zap.Stringer("asset_in", input),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", amountOut.Dec()),
		zap.Stringer("recipient", p.Recipient),
	)

	return SwapResult{Key: key, AmountIn: amountIn, AmountOut: amountOut}, nil
}
