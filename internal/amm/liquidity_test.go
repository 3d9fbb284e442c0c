package amm_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"cpamm/internal/amm"
	"cpamm/internal/ledger"
)

func TestAddLiquidityInitialDeposit(t *testing.T) {
	f := newFixture(t)

	res := f.seed(t, tokenX, tokenY, 1000, 4000)
	assert.Equal(t, uint64(1000), res.AmountA.Uint64())
	assert.Equal(t, uint64(4000), res.AmountB.Uint64())
	assert.Equal(t, uint64(2000), res.Shares.Uint64())
	assert.Equal(t, amm.CanonicalKey(tokenY, tokenX), res.Key)

	pool := f.pool(t, tokenX, tokenY)
	assert.Equal(t, uint64(1000), pool.Reserve0.Uint64())
	assert.Equal(t, uint64(4000), pool.Reserve1.Uint64())
	assert.Equal(t, uint64(2000), pool.TotalShares.Uint64())

	held, err := f.shares.BalanceOf(context.Background(), res.Key, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), held.Uint64())
	assert.Equal(t, uint64(1000), f.spent(alice, tokenX))
	assert.Equal(t, uint64(4000), f.spent(alice, tokenY))
	assert.Equal(t, uint64(1000), f.bank.BalanceOf(tokenX, ledger.DefaultCustody).Uint64())
}

func TestAddLiquidityProportional(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokenX, tokenY, 1000, 4000)

	res, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(500),
		AmountBDesired: u(5000),
		Sender:         bob,
		Recipient:      bob,
		Deadline:       deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.AmountA.Uint64())
	assert.Equal(t, uint64(2000), res.AmountB.Uint64())
	assert.Equal(t, uint64(1000), res.Shares.Uint64())
	assert.Equal(t, uint64(2000), f.spent(bob, tokenY))

	pool := f.pool(t, tokenX, tokenY)
	assert.Equal(t, uint64(1500), pool.Reserve0.Uint64())
	assert.Equal(t, uint64(6000), pool.Reserve1.Uint64())
	assert.Equal(t, uint64(3000), pool.TotalShares.Uint64())
}

func TestAddLiquidityCallerOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokenX, tokenY, 1000, 4000)

	res, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenY,
		AssetB:         tokenX,
		AmountADesired: u(400),
		AmountBDesired: u(1000),
		Sender:         bob,
		Recipient:      bob,
		Deadline:       deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(400), res.AmountA.Uint64(), "amounts follow caller order")
	assert.Equal(t, uint64(100), res.AmountB.Uint64())
	assert.Equal(t, uint64(200), res.Shares.Uint64())

	pool := f.pool(t, tokenY, tokenX)
	assert.Equal(t, uint64(1100), pool.Reserve0.Uint64())
	assert.Equal(t, uint64(4400), pool.Reserve1.Uint64())
}

func TestAddLiquiditySlippage(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokenX, tokenY, 1000, 4000)
	before := f.pool(t, tokenX, tokenY)

	_, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(500),
		AmountBDesired: u(1000),
		AmountAMin:     u(500),
		Sender:         bob,
		Recipient:      bob,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrSlippageExceeded)
	assert.Equal(t, before, f.pool(t, tokenX, tokenY))
	assert.Zero(t, f.spent(bob, tokenX))
	assert.Zero(t, f.spent(bob, tokenY))
}

func TestAddLiquidityZeroShares(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountBDesired: u(1000),
		Sender:         alice,
		Recipient:      alice,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrZeroLiquidity)

	f.seed(t, tokenX, tokenY, 1000, 4000)
	_, err = f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1),
		AmountBDesired: u(1),
		Sender:         bob,
		Recipient:      bob,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrZeroLiquidity)
	assert.Zero(t, f.spent(bob, tokenY))

	_, err = f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountBDesired: u(4000),
		Sender:         bob,
		Recipient:      bob,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrZeroLiquidity, "a one-sided deposit into a live pool mints nothing")
	assert.Zero(t, f.spent(bob, tokenY))
}

func TestAddLiquidityRejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1000),
		AmountBDesired: u(1000),
		Sender:         alice,
		Recipient:      alice,
		Deadline:       now - 1,
	})
	require.ErrorIs(t, err, amm.ErrExpired)
	assert.Zero(t, f.engine.Registry().Len(), "expired deposits never touch the registry")

	_, err = f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenX,
		AmountADesired: u(1000),
		AmountBDesired: u(1000),
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrInvalidPath)

	poor := common.HexToAddress("0x9999999999999999999999999999999999999999")
	_, err = f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1000),
		AmountBDesired: u(1000),
		Sender:         poor,
		Recipient:      poor,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrInsufficientFunds)
	pool := f.pool(t, tokenX, tokenY)
	assert.False(t, pool.Initialized())
}

func TestAddLiquidityDeadlineInclusive(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1000),
		AmountBDesired: u(1000),
		Sender:         alice,
		Recipient:      alice,
		Deadline:       now,
	})
	require.NoError(t, err)
}

func TestAddLiquidityRollsBackWhenMintFails(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	shares := &failingShares{Shares: ledger.NewShares(), failMint: true}
	f := newFixture(t, withShareLedger(shares), withLogger(zap.New(core)))

	_, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1000),
		AmountBDesired: u(4000),
		Sender:         alice,
		Recipient:      alice,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, errLedgerDown)

	pool := f.pool(t, tokenX, tokenY)
	assert.False(t, pool.Initialized())
	assert.True(t, pool.Reserve0.IsZero())
	assert.Zero(t, f.spent(alice, tokenX))
	assert.Zero(t, f.spent(alice, tokenY))
	assert.True(t, f.bank.BalanceOf(tokenY, ledger.DefaultCustody).IsZero())
	assert.Zero(t, logs.FilterMessage("rollback step failed").Len())
}

func TestAddLiquidityRestoresAllowanceOnFailure(t *testing.T) {
	ctx := context.Background()
	carol := common.HexToAddress("0x3333333333333333333333333333333333333333")
	bank := ledger.NewBank(common.Address{}, true)
	require.NoError(t, bank.Credit(tokenX, carol, u(1000)))
	require.NoError(t, bank.Credit(tokenY, carol, u(10)))
	bank.Approve(tokenX, carol, u(1000))
	bank.Approve(tokenY, carol, u(1000))

	engine, err := amm.NewEngine(amm.Config{Clock: amm.FixedClock(now)}, amm.NewRegistry(), bank, ledger.NewShares(), nil)
	require.NoError(t, err)

	_, err = engine.AddLiquidity(ctx, amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1000),
		AmountBDesired: u(1000),
		Sender:         carol,
		Recipient:      carol,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, amm.ErrInsufficientFunds)

	assert.Equal(t, uint64(1000), bank.BalanceOf(tokenX, carol).Uint64())
	assert.Equal(t, uint64(1000), bank.Allowance(tokenX, carol).Uint64())
	assert.Equal(t, uint64(1000), bank.Allowance(tokenY, carol).Uint64())
	assert.True(t, bank.BalanceOf(tokenX, bank.Custody()).IsZero())
}

func TestAddLiquidityHidesPoolUntilCommitted(t *testing.T) {
	shares := &failingShares{Shares: ledger.NewShares(), failMint: true}
	f := newFixture(t, withShareLedger(shares))

	var midErr error
	shares.onMint = func() {
		_, midErr = f.engine.SpotPrice(tokenX, tokenY)
	}
	_, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: u(1000),
		AmountBDesired: u(2000),
		Sender:         alice,
		Recipient:      alice,
		Deadline:       deadline,
	})
	require.ErrorIs(t, err, errLedgerDown)
	require.ErrorIs(t, midErr, amm.ErrNoLiquidity, "uncommitted reserves must not be priced")
}

func TestRemoveLiquidity(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, tokenX, tokenY, 1000, 4000)

	res, err := f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
		AssetA:    tokenY,
		AssetB:    tokenX,
		Shares:    u(1000),
		Sender:    alice,
		Recipient: bob,
		Deadline:  deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.Key, res.Key)
	assert.Equal(t, uint64(2000), res.AmountA.Uint64())
	assert.Equal(t, uint64(500), res.AmountB.Uint64())

	pool := f.pool(t, tokenX, tokenY)
	assert.Equal(t, uint64(500), pool.Reserve0.Uint64())
	assert.Equal(t, uint64(2000), pool.Reserve1.Uint64())
	assert.Equal(t, uint64(1000), pool.TotalShares.Uint64())
	assert.Equal(t, uint64(1000), f.shares.TotalSupply(res.Key).Uint64())

	assert.Equal(t, uint64(2000), f.received(bob, tokenY))
}

func TestRemoveLiquidityDrainsPool(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, tokenX, tokenY, 1000, 4000)

	_, err := f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
		AssetA:    tokenX,
		AssetB:    tokenY,
		Shares:    seeded.Shares,
		Sender:    alice,
		Recipient: alice,
		Deadline:  deadline,
	})
	require.NoError(t, err)

	pool := f.pool(t, tokenX, tokenY)
	assert.False(t, pool.Initialized())
	assert.True(t, pool.Reserve0.IsZero())
	assert.True(t, pool.Reserve1.IsZero())
	assert.Zero(t, f.spent(alice, tokenX))
	require.NoError(t, f.engine.Registry().CheckInvariants())
}

func TestRemoveLiquidityRejections(t *testing.T) {
	f := newFixture(t)
	f.seed(t, tokenX, tokenY, 1000, 4000)
	before := f.pool(t, tokenX, tokenY)

	cases := []struct {
		name   string
		params amm.RemoveLiquidityParams
		want   error
	}{
		{
			name:   "expired",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenY, Shares: u(10), Sender: alice, Recipient: alice, Deadline: now - 1},
			want:   amm.ErrExpired,
		},
		{
			name:   "zero shares",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenY, Sender: alice, Recipient: alice, Deadline: deadline},
			want:   amm.ErrInvalidInput,
		},
		{
			name:   "not a holder",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenY, Shares: u(1), Sender: bob, Recipient: bob, Deadline: deadline},
			want:   amm.ErrInsufficientShares,
		},
		{
			name:   "more than held",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenY, Shares: u(2001), Sender: alice, Recipient: alice, Deadline: deadline},
			want:   amm.ErrInsufficientShares,
		},
		{
			name:   "minimum a",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenY, Shares: u(1000), AmountAMin: u(501), Sender: alice, Recipient: alice, Deadline: deadline},
			want:   amm.ErrSlippageExceeded,
		},
		{
			name:   "minimum b",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenY, Shares: u(1000), AmountBMin: u(2001), Sender: alice, Recipient: alice, Deadline: deadline},
			want:   amm.ErrSlippageExceeded,
		},
		{
			name:   "identical assets",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenX, Shares: u(1), Sender: alice, Recipient: alice, Deadline: deadline},
			want:   amm.ErrInvalidPath,
		},
		{
			name:   "missing pool",
			params: amm.RemoveLiquidityParams{AssetA: tokenX, AssetB: tokenZ, Shares: u(1), Sender: alice, Recipient: alice, Deadline: deadline},
			want:   amm.ErrInsufficientShares,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.RemoveLiquidity(context.Background(), tc.params)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, f.pool(t, tokenX, tokenY))
			held, err := f.shares.BalanceOf(context.Background(), before.Key(), alice)
			require.NoError(t, err)
			assert.Equal(t, uint64(2000), held.Uint64())
		})
	}
}

func TestRemoveLiquidityRollsBackFailedPayout(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, tokenX, tokenY, 1000, 4000)
	before := f.pool(t, tokenX, tokenY)

	_, err := f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
		AssetA:    tokenX,
		AssetB:    tokenY,
		Shares:    u(500),
		Sender:    alice,
		Recipient: common.Address{},
		Deadline:  deadline,
	})
	require.ErrorIs(t, err, amm.ErrTransferFailed)

	assert.Equal(t, before, f.pool(t, tokenX, tokenY))
	held, err := f.shares.BalanceOf(context.Background(), seeded.Key, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), held.Uint64())
	assert.Equal(t, uint64(2000), f.shares.TotalSupply(seeded.Key).Uint64())
}

func TestRemoveLiquidityReclaimsPartialPayout(t *testing.T) {
	f := newFixture(t, withAllowances(), withTransfers(func(bank *ledger.Bank) amm.AssetTransfer {
		return &failingPayouts{Bank: bank, asset: tokenY}
	}))
	seeded := f.seed(t, tokenX, tokenY, 1000, 4000)
	before := f.pool(t, tokenX, tokenY)
	f.bank.Approve(tokenX, bob, u(0))

	_, err := f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
		AssetA:    tokenX,
		AssetB:    tokenY,
		Shares:    u(500),
		Sender:    alice,
		Recipient: bob,
		Deadline:  deadline,
	})
	require.ErrorIs(t, err, errPayoutDown)

	assert.Equal(t, before, f.pool(t, tokenX, tokenY))
	assert.Zero(t, f.received(bob, tokenX))
	assert.True(t, f.bank.Allowance(tokenX, bob).IsZero())
	assert.Equal(t, uint64(1000), f.bank.BalanceOf(tokenX, f.bank.Custody()).Uint64())
	held, err := f.shares.BalanceOf(context.Background(), seeded.Key, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), held.Uint64())
}

func TestRemoveLiquidityHidesPoolUntilCommitted(t *testing.T) {
	shares := &failingShares{Shares: ledger.NewShares()}
	f := newFixture(t, withShareLedger(shares))
	f.seed(t, tokenX, tokenY, 1000, 4000)
	priceBefore, err := f.engine.SpotPrice(tokenX, tokenY)
	require.NoError(t, err)

	var midPrice *uint256.Int
	shares.onBurn = func() {
		midPrice, _ = f.engine.SpotPrice(tokenX, tokenY)
	}
	_, err = f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
		AssetA:    tokenX,
		AssetB:    tokenY,
		Shares:    u(2000),
		Sender:    alice,
		Recipient: alice,
		Deadline:  deadline,
	})
	require.NoError(t, err)
	require.NotNil(t, midPrice, "pool must still be priced during the burn")
	assert.Equal(t, priceBefore, midPrice)
}

func TestRemoveLiquidityRollsBackFailedBurn(t *testing.T) {
	shares := &failingShares{Shares: ledger.NewShares()}
	f := newFixture(t, withShareLedger(shares))
	f.seed(t, tokenX, tokenY, 1000, 4000)
	before := f.pool(t, tokenX, tokenY)

	shares.failBurn = true
	_, err := f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
		AssetA:    tokenX,
		AssetB:    tokenY,
		Shares:    u(500),
		Sender:    alice,
		Recipient: alice,
		Deadline:  deadline,
	})
	require.ErrorIs(t, err, errLedgerDown)
	assert.Equal(t, before, f.pool(t, tokenX, tokenY))
}

func TestLiquidityRoundTripNeverProfits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture(t)
		r0 := rapid.Uint64Range(1_000, 1_000_000_000_000).Draw(t, "reserve0")
		r1 := rapid.Uint64Range(1_000, 1_000_000_000_000).Draw(t, "reserve1")
		f.seed(t, tokenX, tokenY, r0, r1)

		d0 := rapid.Uint64Range(1, 1_000_000_000_000).Draw(t, "deposit0")
		d1 := rapid.Uint64Range(1, 1_000_000_000_000).Draw(t, "deposit1")
		added, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
			AssetA:         tokenX,
			AssetB:         tokenY,
			AmountADesired: u(d0),
			AmountBDesired: u(d1),
			Sender:         bob,
			Recipient:      bob,
			Deadline:       deadline,
		})
		if err != nil {
			require.ErrorIs(t, err, amm.ErrZeroLiquidity)
			return
		}

		removed, err := f.engine.RemoveLiquidity(context.Background(), amm.RemoveLiquidityParams{
			AssetA:    tokenX,
			AssetB:    tokenY,
			Shares:    added.Shares,
			Sender:    bob,
			Recipient: bob,
			Deadline:  deadline,
		})
		require.NoError(t, err)
		if removed.AmountA.Gt(added.AmountA) || removed.AmountB.Gt(added.AmountB) {
			t.Fatalf("withdrew (%s, %s) after depositing (%s, %s)",
				removed.AmountA.Dec(), removed.AmountB.Dec(), added.AmountA.Dec(), added.AmountB.Dec())
		}
		require.NoError(t, f.engine.Registry().CheckInvariants())
	})
}
