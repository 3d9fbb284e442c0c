package amm

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Operation names used in metrics and logs.
const (
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
	OpSpotPrice       = "spot_price"
)

// Config controls engine behavior.
type Config struct {
	// FeeBps is the swap fee in basis points. Zero prices swaps with the
	// plain constant-product formula.
	FeeBps uint64
	// Clock supplies the time deadlines are checked against. Defaults to
	// SystemClock.
	Clock   Clock
	Metrics *Metrics
}

// Engine serializes operations over one registry. Each mutating operation
// runs to completion before the next starts.
type Engine struct {
	mu        sync.Mutex
	registry  *Registry
	liquidity *LiquidityEngine
	swaps     *SwapEngine
	oracle    *PricingOracle
	metrics   *Metrics
	logger    *zap.Logger
}

func NewEngine(cfg Config, registry *Registry, transfers AssetTransfer, shares ShareLedger, logger *zap.Logger) (*Engine, error) {
	if registry == nil {
		return nil, ErrInvalidInput.Wrap("registry is nil")
	}
	if transfers == nil || shares == nil {
		return nil, ErrInvalidInput.Wrap("asset transfer and share ledger are required")
	}
	if cfg.FeeBps >= FeeDenominator {
		return nil, ErrInvalidInput.Wrapf("fee %d bps must be below %d", cfg.FeeBps, FeeDenominator)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}

	return &Engine{
		registry:  registry,
		liquidity: NewLiquidityEngine(registry, transfers, shares, clock, logger),
		swaps:     NewSwapEngine(registry, transfers, clock, cfg.FeeBps, logger),
		oracle:    NewPricingOracle(registry),
		metrics:   cfg.Metrics,
		logger:    logger,
	}, nil
}

// Registry returns the engine's pool registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

func (e *Engine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (AddLiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.liquidity.AddLiquidity(ctx, p)
	e.finish(OpAddLiquidity, start, err)
	return res, err
}

func (e *Engine) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.liquidity.RemoveLiquidity(ctx, p)
	e.finish(OpRemoveLiquidity, start, err)
	return res, err
}

func (e *Engine) SwapExactIn(ctx context.Context, p SwapParams) (SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.swaps.SwapExactIn(ctx, p)
	e.finish(OpSwap, start, err)
	return res, err
}

// SpotPrice does not take the engine lock. Operations write a pool once,
// after every transfer and share change has succeeded, so readers never see
// state that is later rolled back.
func (e *Engine) SpotPrice(base, quote common.Address) (*uint256.Int, error) {
	start := time.Now()
	price, err := e.oracle.SpotPrice(base, quote)
	e.metrics.observe(OpSpotPrice, start, err)
	return price, err
}

func (e *Engine) QuoteOutput(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return e.oracle.QuoteOutput(amountIn, reserveIn, reserveOut)
}

// QuoteSwap estimates SwapExactIn against current reserves at the engine's fee.
func (e *Engine) QuoteSwap(amountIn *uint256.Int, input, output common.Address) (*uint256.Int, error) {
	pool, ok := e.oracle.Pool(input, output)
	if !ok || !pool.Initialized() {
		return nil, ErrNoLiquidity.Wrapf("pool %s is empty", CanonicalKey(input, output))
	}
	reserveIn, reserveOut := pool.ReservesFor(input)
	return QuoteOutputWithFee(amountIn, reserveIn, reserveOut, e.swaps.FeeBps())
}

func (e *Engine) finish(operation string, start time.Time, err error) {
	e.metrics.observe(operation, start, err)
	if err != nil {
		e.logger.Debug("operation rejected", zap.String("operation", operation), zap.String("kind", ErrorKind(err)), zap.Error(err))
	}
}
