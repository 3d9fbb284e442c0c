package amm_test

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cpamm/internal/amm"
	"cpamm/internal/ledger"
)

const (
	now      = uint64(1_700_000_000)
	deadline = now + 600
)

var (
	tokenX = common.HexToAddress("0xaa00000000000000000000000000000000000000")
	tokenY = common.HexToAddress("0xbb00000000000000000000000000000000000000")
	tokenZ = common.HexToAddress("0xcc00000000000000000000000000000000000000")
	alice  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob    = common.HexToAddress("0x2222222222222222222222222222222222222222")

	startingBalance = uint256.NewInt(1_000_000_000_000_000_000)
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

type fixture struct {
	engine *amm.Engine
	bank   *ledger.Bank
	shares *ledger.Shares
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	feeBps     uint64
	logger     *zap.Logger
	shares     amm.ShareLedger
	allowances bool
	transfers  func(*ledger.Bank) amm.AssetTransfer
}

func withFee(bps uint64) fixtureOption {
	return func(c *fixtureConfig) { c.feeBps = bps }
}

func withLogger(logger *zap.Logger) fixtureOption {
	return func(c *fixtureConfig) { c.logger = logger }
}

func withShareLedger(shares amm.ShareLedger) fixtureOption {
	return func(c *fixtureConfig) { c.shares = shares }
}

// withAllowances enforces allowances; every holder approves its full balance.
func withAllowances() fixtureOption {
	return func(c *fixtureConfig) { c.allowances = true }
}

func withTransfers(wrap func(*ledger.Bank) amm.AssetTransfer) fixtureOption {
	return func(c *fixtureConfig) { c.transfers = wrap }
}

// newFixture funds alice and bob with every test token.
func newFixture(t require.TestingT, opts ...fixtureOption) *fixture {
	shares := ledger.NewShares()
	cfg := fixtureConfig{shares: shares}
	for _, opt := range opts {
		opt(&cfg)
	}

	bank := ledger.NewBank(common.Address{}, cfg.allowances)
	for _, token := range []common.Address{tokenX, tokenY, tokenZ} {
		for _, holder := range []common.Address{alice, bob} {
			require.NoError(t, bank.Credit(token, holder, startingBalance))
			bank.Approve(token, holder, startingBalance)
		}
	}
	var transfers amm.AssetTransfer = bank
	if cfg.transfers != nil {
		transfers = cfg.transfers(bank)
	}

	engine, err := amm.NewEngine(amm.Config{FeeBps: cfg.feeBps, Clock: amm.FixedClock(now)}, amm.NewRegistry(), transfers, cfg.shares, cfg.logger)
	require.NoError(t, err)
	return &fixture{engine: engine, bank: bank, shares: shares}
}

func (f *fixture) seed(t require.TestingT, a, b common.Address, amountA, amountB uint64) amm.AddLiquidityResult {
	res, err := f.engine.AddLiquidity(context.Background(), amm.AddLiquidityParams{
		AssetA:         a,
		AssetB:         b,
		AmountADesired: u(amountA),
		AmountBDesired: u(amountB),
		Sender:         alice,
		Recipient:      alice,
		Deadline:       deadline,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) pool(t require.TestingT, a, b common.Address) amm.PoolState {
	pool, ok := f.engine.Registry().Get(amm.CanonicalKey(a, b))
	require.True(t, ok, "pool must exist")
	return pool
}

func (f *fixture) spent(holder, token common.Address) uint64 {
	return new(uint256.Int).Sub(startingBalance, f.bank.BalanceOf(token, holder)).Uint64()
}

func (f *fixture) received(holder, token common.Address) uint64 {
	return new(uint256.Int).Sub(f.bank.BalanceOf(token, holder), startingBalance).Uint64()
}

var errLedgerDown = errors.New("share ledger unavailable")

// failingShares delegates to a real ledger but fails the selected calls.
// The hooks run first on every call.
type failingShares struct {
	*ledger.Shares
	failMint bool
	failBurn bool
	onMint   func()
	onBurn   func()
}

func (s *failingShares) Mint(ctx context.Context, class amm.PairKey, holder common.Address, amount *uint256.Int) error {
	if s.onMint != nil {
		s.onMint()
	}
	if s.failMint {
		return errLedgerDown
	}
	return s.Shares.Mint(ctx, class, holder, amount)
}

func (s *failingShares) Burn(ctx context.Context, class amm.PairKey, holder common.Address, amount *uint256.Int) error {
	if s.onBurn != nil {
		s.onBurn()
	}
	if s.failBurn {
		return errLedgerDown
	}
	return s.Shares.Burn(ctx, class, holder, amount)
}

var errPayoutDown = errors.New("payout rail unavailable")

// failingPayouts delegates to a bank but fails every PushTo of one asset.
// Refund and Reclaim come from the bank.
type failingPayouts struct {
	*ledger.Bank
	asset common.Address
}

func (p *failingPayouts) PushTo(ctx context.Context, asset, recipient common.Address, amount *uint256.Int) error {
	if asset == p.asset {
		return errPayoutDown
	}
	return p.Bank.PushTo(ctx, asset, recipient, amount)
}
