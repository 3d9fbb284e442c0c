package amm

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// AddLiquidityParams describes a deposit. Amounts follow the caller's
// (AssetA, AssetB) order, which need not be canonical.
type AddLiquidityParams struct {
	AssetA         common.Address
	AssetB         common.Address
	AmountADesired *uint256.Int
	AmountBDesired *uint256.Int
	AmountAMin     *uint256.Int
	AmountBMin     *uint256.Int
	Sender         common.Address
	Recipient      common.Address
	Deadline       uint64
}

// AddLiquidityResult reports the amounts used, in caller order, and the
// shares issued.
type AddLiquidityResult struct {
	Key     PairKey
	AmountA *uint256.Int
	AmountB *uint256.Int
	Shares  *uint256.Int
}

// RemoveLiquidityParams describes a withdrawal of Shares from Sender.
type RemoveLiquidityParams struct {
	AssetA     common.Address
	AssetB     common.Address
	Shares     *uint256.Int
	AmountAMin *uint256.Int
	AmountBMin *uint256.Int
	Sender     common.Address
	Recipient  common.Address
	Deadline   uint64
}

// RemoveLiquidityResult reports the amounts paid out, in caller order.
type RemoveLiquidityResult struct {
	Key     PairKey
	AmountA *uint256.Int
	AmountB *uint256.Int
}

// LiquidityEngine computes deposits and withdrawals and applies them.
type LiquidityEngine struct {
	registry  *Registry
	transfers AssetTransfer
	shares    ShareLedger
	clock     Clock
	logger    *zap.Logger
}

func NewLiquidityEngine(registry *Registry, transfers AssetTransfer, shares ShareLedger, clock Clock, logger *zap.Logger) *LiquidityEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock
	}
	return &LiquidityEngine{
		registry:  registry,
		transfers: transfers,
		shares:    shares,
		clock:     clock,
		logger:    logger,
	}
}

// AddLiquidity deposits up to the desired amounts at the pool's current
// ratio and mints shares to the recipient. The first deposit into an empty
// pool sets the ratio and mints sqrt(amountA * amountB) shares.
func (e *LiquidityEngine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (AddLiquidityResult, error) {
	if err := checkDeadline(e.clock, p.Deadline); err != nil {
		return AddLiquidityResult{}, err
	}
	pair := NewPair(p.AssetA, p.AssetB)
	if pair.Identical() {
		return AddLiquidityResult{}, ErrInvalidPath.Wrapf("cannot pool %s with itself", p.AssetA.Hex())
	}

	pool := e.registry.GetOrCreate(pair)
	key := pair.Key()

	usedA, usedB, shares, err := computeDeposit(pool, p)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	if shares.IsZero() {
		return AddLiquidityResult{}, ErrZeroLiquidity.Wrapf("deposit of (%s, %s) mints no shares", usedA.Dec(), usedB.Dec())
	}

	used0, used1 := orient(pair, p.AssetA, usedA, usedB)
	next := pool
	reserve0, err := addChecked(&pool.Reserve0, used0)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	reserve1, err := addChecked(&pool.Reserve1, used1)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	totalShares, err := addChecked(&pool.TotalShares, shares)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	next.Reserve0, next.Reserve1, next.TotalShares = *reserve0, *reserve1, *totalShares

	var j journal
	if err := e.pull(ctx, &j, pair.Asset0, p.Sender, used0); err != nil {
		return AddLiquidityResult{}, j.rollback(ctx, e.logger, err)
	}
	if err := e.pull(ctx, &j, pair.Asset1, p.Sender, used1); err != nil {
		return AddLiquidityResult{}, j.rollback(ctx, e.logger, err)
	}

	if err := e.shares.Mint(ctx, key, p.Recipient, shares); err != nil {
		return AddLiquidityResult{}, j.rollback(ctx, e.logger, err)
	}
	e.registry.Put(next)

	e.logger.Debug("liquidity added",
		zap.Stringer("pair", key),
		zap.String("amount0", used0.Dec()),
		zap.String("amount1", used1.Dec()),
		zap.String("shares", shares.Dec()),
		zap.Stringer("recipient", p.Recipient),
	)

	return AddLiquidityResult{Key: key, AmountA: usedA, AmountB: usedB, Shares: shares}, nil
}

// computeDeposit returns the amounts used, in caller order, and the shares
// the deposit earns against pool.
func computeDeposit(pool PoolState, p AddLiquidityParams) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	desiredA, desiredB := orZero(p.AmountADesired), orZero(p.AmountBDesired)
	minA, minB := orZero(p.AmountAMin), orZero(p.AmountBMin)

	if !pool.Initialized() {
		return desiredA, desiredB, sqrtProduct(desiredA, desiredB), nil
	}

	if desiredA.IsZero() || desiredB.IsZero() {
		return desiredA, desiredB, new(uint256.Int), nil
	}
	reserveA, reserveB := pool.ReservesFor(p.AssetA)

	var usedA, usedB *uint256.Int
	optimalB, err := Quote(desiredA, reserveA, reserveB)
	if err != nil {
		return nil, nil, nil, err
	}
	if !optimalB.Gt(desiredB) {
		if optimalB.Lt(minB) {
			return nil, nil, nil, ErrSlippageExceeded.Wrapf("amount b %s below minimum %s", optimalB.Dec(), minB.Dec())
		}
		usedA, usedB = desiredA, optimalB
	} else {
		optimalA, err := Quote(desiredB, reserveB, reserveA)
		if err != nil {
			return nil, nil, nil, err
		}
		if optimalA.Lt(minA) {
			return nil, nil, nil, ErrSlippageExceeded.Wrapf("amount a %s below minimum %s", optimalA.Dec(), minA.Dec())
		}
		usedA, usedB = optimalA, desiredB
	}

	sharesA, err := mulDiv(usedA, &pool.TotalShares, reserveA)
	if err != nil {
		return nil, nil, nil, err
	}
	sharesB, err := mulDiv(usedB, &pool.TotalShares, reserveB)
	if err != nil {
		return nil, nil, nil, err
	}
	return usedA, usedB, minInt(sharesA, sharesB), nil
}

// RemoveLiquidity burns the sender's shares and pays the recipient the
// proportional part of both reserves, rounded down.
func (e *LiquidityEngine) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	if err := checkDeadline(e.clock, p.Deadline); err != nil {
		return RemoveLiquidityResult{}, err
	}
	pair := NewPair(p.AssetA, p.AssetB)
	if pair.Identical() {
		return RemoveLiquidityResult{}, ErrInvalidPath.Wrapf("cannot pool %s with itself", p.AssetA.Hex())
	}
	shares := orZero(p.Shares)
	if shares.IsZero() {
		return RemoveLiquidityResult{}, ErrInvalidInput.Wrap("shares must be positive")
	}
	key := pair.Key()

	balance, err := e.shares.BalanceOf(ctx, key, p.Sender)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	if balance.Lt(shares) {
		return RemoveLiquidityResult{}, ErrInsufficientShares.Wrapf("holder %s has %s shares, needs %s", p.Sender.Hex(), balance.Dec(), shares.Dec())
	}

	pool, ok := e.registry.Get(key)
	if !ok || !pool.Initialized() {
		return RemoveLiquidityResult{}, ErrNoLiquidity.Wrapf("pool %s is empty", key)
	}
	if pool.TotalShares.Lt(shares) {
		return RemoveLiquidityResult{}, ErrInsufficientShares.Wrapf("pool %s has %s shares outstanding, needs %s", key, pool.TotalShares.Dec(), shares.Dec())
	}

	out0, err := mulDiv(shares, &pool.Reserve0, &pool.TotalShares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	out1, err := mulDiv(shares, &pool.Reserve1, &pool.TotalShares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	outA, outB := orient(pair, p.AssetA, out0, out1)
	if minA := orZero(p.AmountAMin); outA.Lt(minA) {
		return RemoveLiquidityResult{}, ErrSlippageExceeded.Wrapf("amount a %s below minimum %s", outA.Dec(), minA.Dec())
	}
	if minB := orZero(p.AmountBMin); outB.Lt(minB) {
		return RemoveLiquidityResult{}, ErrSlippageExceeded.Wrapf("amount b %s below minimum %s", outB.Dec(), minB.Dec())
	}

	next := pool
	reserve0, err := subChecked(&pool.Reserve0, out0)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	reserve1, err := subChecked(&pool.Reserve1, out1)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	totalShares, err := subChecked(&pool.TotalShares, shares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	next.Reserve0, next.Reserve1, next.TotalShares = *reserve0, *reserve1, *totalShares

	var j journal
	if err := e.shares.Burn(ctx, key, p.Sender, shares); err != nil {
		return RemoveLiquidityResult{}, j.rollback(ctx, e.logger, err)
	}
	j.record("remint shares", func(ctx context.Context) error {
		return e.shares.Mint(ctx, key, p.Sender, shares)
	})

	if err := e.push(ctx, &j, pair.Asset0, p.Recipient, out0); err != nil {
		return RemoveLiquidityResult{}, j.rollback(ctx, e.logger, err)
	}
	if err := e.push(ctx, &j, pair.Asset1, p.Recipient, out1); err != nil {
		return RemoveLiquidityResult{}, j.rollback(ctx, e.logger, err)
	}
	e.registry.Put(next)

	e.logger.Debug("liquidity removed",
		zap.Stringer("pair", key),
		zap.String("amount0", out0.Dec()),
		zap.String("amount1", out1.Dec()),
		zap.String("shares", shares.Dec()),
		zap.Stringer("recipient", p.Recipient),
	)

	return RemoveLiquidityResult{Key: key, AmountA: outA, AmountB: outB}, nil
}

func (e *LiquidityEngine) pull(ctx context.Context, j *journal, asset, payer common.Address, amount *uint256.Int) error {
	return pullRecorded(ctx, e.transfers, j, asset, payer, amount)
}

func (e *LiquidityEngine) push(ctx context.Context, j *journal, asset, recipient common.Address, amount *uint256.Int) error {
	return pushRecorded(ctx, e.transfers, j, asset, recipient, amount)
}

// pullRecorded pulls amount into the pool and records the refund. Zero
// amounts are skipped.
func pullRecorded(ctx context.Context, transfers AssetTransfer, j *journal, asset, payer common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := transfers.PullFrom(ctx, asset, payer, amount); err != nil {
		return err
	}
	j.record("refund "+asset.Hex(), func(ctx context.Context) error {
		if r, ok := transfers.(TransferReverser); ok {
			return r.Refund(ctx, asset, payer, amount)
		}
		return transfers.PushTo(ctx, asset, payer, amount)
	})
	return nil
}

// pushRecorded pays amount out of the pool and records the claw-back. Zero
// amounts are skipped.
func pushRecorded(ctx context.Context, transfers AssetTransfer, j *journal, asset, recipient common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := transfers.PushTo(ctx, asset, recipient, amount); err != nil {
		return err
	}
	j.record("reclaim "+asset.Hex(), func(ctx context.Context) error {
		if r, ok := transfers.(TransferReverser); ok {
			return r.Reclaim(ctx, asset, recipient, amount)
		}
		return transfers.PullFrom(ctx, asset, recipient, amount)
	})
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
