package replay

import (
	"context"
	"fmt"
	"math"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

// Apply runs one operation record against engine and reports the outcome.
// Engine rejections become rejected results, not errors.
func Apply(ctx context.Context, engine *amm.Engine, rec model.OperationRecord) model.ResultRecord {
	result := model.ResultRecord{Seq: rec.Seq, Op: rec.Op}

	var err error
	switch rec.Op {
	case model.OpAddLiquidity:
		err = applyAddLiquidity(ctx, engine, rec, &result)
	case model.OpRemoveLiquidity:
		err = applyRemoveLiquidity(ctx, engine, rec, &result)
	case model.OpSwap:
		err = applySwap(ctx, engine, rec, &result)
	case model.OpSpotPrice:
		err = applySpotPrice(engine, rec, &result)
	default:
		err = amm.ErrInvalidInput.Wrapf("unknown operation %q", rec.Op)
	}

	if result.PairKey != "" {
		if key, perr := amm.ParsePairKey(result.PairKey); perr == nil {
			if pool, ok := engine.Registry().Get(key); ok {
				result.Reserve0 = pool.Reserve0.Dec()
				result.Reserve1 = pool.Reserve1.Dec()
				result.TotalShares = pool.TotalShares.Dec()
			}
		}
	}

	result.AppliedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err != nil {
		codespace, code, log := errorsmod.ABCIInfo(err, false)
		result.Status = model.StatusRejected
		result.Codespace = codespace
		result.Code = code
		result.Kind = amm.ErrorKind(err)
		result.Error = log
		return result
	}
	result.Status = model.StatusOK
	return result
}

func applyAddLiquidity(ctx context.Context, engine *amm.Engine, rec model.OperationRecord, result *model.ResultRecord) error {
	var d decoder
	params := amm.AddLiquidityParams{
		AssetA:         d.address("asset_a", rec.AssetA),
		AssetB:         d.address("asset_b", rec.AssetB),
		AmountADesired: d.amount("amount_a_desired", rec.AmountADesired),
		AmountBDesired: d.amount("amount_b_desired", rec.AmountBDesired),
		AmountAMin:     d.optionalAmount("amount_a_min", rec.AmountAMin),
		AmountBMin:     d.optionalAmount("amount_b_min", rec.AmountBMin),
		Deadline:       deadline(rec.Deadline),
	}
	params.Sender, params.Recipient = d.parties(rec)
	if d.err != nil {
		return d.err
	}
	result.PairKey = amm.CanonicalKey(params.AssetA, params.AssetB).String()

	res, err := engine.AddLiquidity(ctx, params)
	if err != nil {
		return err
	}
	result.AmountA = res.AmountA.Dec()
	result.AmountB = res.AmountB.Dec()
	result.Shares = res.Shares.Dec()
	return nil
}

func applyRemoveLiquidity(ctx context.Context, engine *amm.Engine, rec model.OperationRecord, result *model.ResultRecord) error {
	var d decoder
	params := amm.RemoveLiquidityParams{
		AssetA:     d.address("asset_a", rec.AssetA),
		AssetB:     d.address("asset_b", rec.AssetB),
		Shares:     d.amount("shares", rec.Shares),
		AmountAMin: d.optionalAmount("amount_a_min", rec.AmountAMin),
		AmountBMin: d.optionalAmount("amount_b_min", rec.AmountBMin),
		Deadline:   deadline(rec.Deadline),
	}
	params.Sender, params.Recipient = d.parties(rec)
	if d.err != nil {
		return d.err
	}
	result.PairKey = amm.CanonicalKey(params.AssetA, params.AssetB).String()

	res, err := engine.RemoveLiquidity(ctx, params)
	if err != nil {
		return err
	}
	result.AmountA = res.AmountA.Dec()
	result.AmountB = res.AmountB.Dec()
	result.Shares = params.Shares.Dec()
	return nil
}

func applySwap(ctx context.Context, engine *amm.Engine, rec model.OperationRecord, result *model.ResultRecord) error {
	var d decoder
	params := amm.SwapParams{
		AmountIn:     d.amount("amount_in", rec.AmountIn),
		AmountOutMin: d.optionalAmount("amount_out_min", rec.AmountOutMin),
		Deadline:     deadline(rec.Deadline),
	}
	for i, hop := range rec.Path {
		params.Path = append(params.Path, d.address(fmt.Sprintf("path[%d]", i), hop))
	}
	params.Sender, params.Recipient = d.parties(rec)
	if d.err != nil {
		return d.err
	}
	if len(params.Path) == 2 {
		result.PairKey = amm.CanonicalKey(params.Path[0], params.Path[1]).String()
	}

	res, err := engine.SwapExactIn(ctx, params)
	if err != nil {
		return err
	}
	result.AmountIn = res.AmountIn.Dec()
	result.AmountOut = res.AmountOut.Dec()
	return nil
}

func applySpotPrice(engine *amm.Engine, rec model.OperationRecord, result *model.ResultRecord) error {
	var d decoder
	base := d.address("base", rec.Base)
	quote := d.address("quote", rec.Quote)
	if d.err != nil {
		return d.err
	}
	result.PairKey = amm.CanonicalKey(base, quote).String()

	price, err := engine.SpotPrice(base, quote)
	if err != nil {
		return err
	}
	result.Price = price.Dec()
	return nil
}

// deadline maps the zero "never expires" deadline onto the largest timestamp.
func deadline(ts uint64) uint64 {
	if ts == 0 {
		return math.MaxUint64
	}
	return ts
}

// decoder parses record fields, keeping the first failure.
type decoder struct {
	err error
}

func (d *decoder) address(field, input string) common.Address {
	if d.err != nil {
		return common.Address{}
	}
	addr, err := model.ParseAddress(input)
	if err != nil {
		d.err = amm.ErrInvalidInput.Wrapf("%s: %v", field, err)
	}
	return addr
}

func (d *decoder) amount(field, input string) *uint256.Int {
	if d.err != nil {
		return nil
	}
	v, err := model.ParseAmount(input)
	if err != nil {
		d.err = amm.ErrInvalidInput.Wrapf("%s: %v", field, err)
	}
	return v
}

func (d *decoder) optionalAmount(field, input string) *uint256.Int {
	if d.err != nil {
		return nil
	}
	v, err := model.ParseOptionalAmount(input)
	if err != nil {
		d.err = amm.ErrInvalidInput.Wrapf("%s: %v", field, err)
	}
	return v
}

// parties returns the sender and the recipient, which defaults to the sender.
func (d *decoder) parties(rec model.OperationRecord) (common.Address, common.Address) {
	sender := d.address("sender", rec.Sender)
	if d.err != nil {
		return common.Address{}, common.Address{}
	}
	recipient, err := model.ParseOptionalAddress(rec.Recipient, sender)
	if err != nil {
		d.err = amm.ErrInvalidInput.Wrapf("recipient: %v", err)
	}
	return sender, recipient
}
