package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

func TestApplyOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	added := Apply(ctx, h.engine, addOp(1, "1000", "1000"))
	require.Equal(t, model.StatusOK, added.Status, added.Error)
	assert.Equal(t, "1000", added.Shares)
	assert.Equal(t, "1000", added.Reserve0)

	swapped := Apply(ctx, h.engine, swapOp(2, "100", "90"))
	require.Equal(t, model.StatusOK, swapped.Status, swapped.Error)
	assert.Equal(t, "90", swapped.AmountOut)
	assert.Equal(t, "1100", swapped.Reserve0)
	assert.Equal(t, "910", swapped.Reserve1)

	priced := Apply(ctx, h.engine, model.OperationRecord{Seq: 3, Op: model.OpSpotPrice, Base: tokenY, Quote: tokenX})
	require.Equal(t, model.StatusOK, priced.Status, priced.Error)
	assert.Equal(t, "1208791208791208791", priced.Price)

	removed := Apply(ctx, h.engine, model.OperationRecord{
		Seq:       4,
		Op:        model.OpRemoveLiquidity,
		Sender:    alice,
		Recipient: bob,
		AssetA:    tokenY,
		AssetB:    tokenX,
		Shares:    "500",
	})
	require.Equal(t, model.StatusOK, removed.Status, removed.Error)
	assert.Equal(t, "455", removed.AmountA)
	assert.Equal(t, "550", removed.AmountB)
	assert.Equal(t, "500", removed.TotalShares)
	assert.Equal(t, added.PairKey, removed.PairKey)
}

func TestApplyRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name string
		rec  model.OperationRecord
		code uint32
		kind string
	}{
		{name: "unknown op", rec: model.OperationRecord{Seq: 1, Op: "flash_loan"}, code: amm.ErrInvalidInput.ABCICode(), kind: "invalid_input"},
		{name: "bad address", rec: model.OperationRecord{Seq: 2, Op: model.OpSwap, Sender: bob, AmountIn: "1", Path: []string{"0x12", tokenY}}, code: amm.ErrInvalidInput.ABCICode(), kind: "invalid_input"},
		{name: "missing amount", rec: model.OperationRecord{Seq: 3, Op: model.OpSwap, Sender: bob, Path: []string{tokenX, tokenY}}, code: amm.ErrInvalidInput.ABCICode(), kind: "invalid_input"},
		{name: "empty pool", rec: swapOp(4, "100", "0"), code: amm.ErrNoLiquidity.ABCICode(), kind: "no_liquidity"},
		{name: "expired", rec: func() model.OperationRecord { r := addOp(5, "10", "10"); r.Deadline = 999; return r }(), code: amm.ErrExpired.ABCICode(), kind: "expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Apply(ctx, h.engine, tc.rec)
			assert.Equal(t, model.StatusRejected, res.Status)
			assert.Equal(t, amm.Codespace, res.Codespace)
			assert.Equal(t, tc.code, res.Code)
			assert.Equal(t, tc.kind, res.Kind)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestApplyUsesRecordTimestamp(t *testing.T) {
	h := newHarness(t)
	rec := addOp(1, "10", "10")
	rec.Deadline = 2_000

	h.clock.set(2_001)
	res := Apply(context.Background(), h.engine, rec)
	h.clock.set(0)
	assert.Equal(t, "expired", res.Kind)

	res = Apply(context.Background(), h.engine, rec)
	assert.Equal(t, model.StatusOK, res.Status, res.Error)
}
