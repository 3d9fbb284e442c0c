package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"cpamm/internal/amm"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

const (
	tokenX = "0xaa00000000000000000000000000000000000000"
	tokenY = "0xbb00000000000000000000000000000000000000"
	alice  = "0x1111111111111111111111111111111111111111"
	bob    = "0x2222222222222222222222222222222222222222"
)

type harness struct {
	engine *amm.Engine
	bank   *ledger.Bank
	shares *ledger.Shares
	clock  *Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bank := ledger.NewBank(common.Address{}, false)
	for _, token := range []string{tokenX, tokenY} {
		for _, holder := range []string{alice, bob} {
			require.NoError(t, bank.Credit(common.HexToAddress(token), common.HexToAddress(holder), uint256.NewInt(1_000_000)))
		}
	}
	shares := ledger.NewShares()
	clock := NewClock(amm.FixedClock(1_000))
	engine, err := amm.NewEngine(amm.Config{Clock: clock}, amm.NewRegistry(), bank, shares, nil)
	require.NoError(t, err)
	return &harness{engine: engine, bank: bank, shares: shares, clock: clock}
}

func writeOps(t *testing.T, ops ...model.OperationRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	var data []byte
	for _, op := range ops {
		line, err := json.Marshal(op)
		require.NoError(t, err)
		data = append(data, line...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func addOp(seq uint64, amountX, amountY string) model.OperationRecord {
	return model.OperationRecord{
		Seq:            seq,
		Op:             model.OpAddLiquidity,
		Sender:         alice,
		AssetA:         tokenX,
		AssetB:         tokenY,
		AmountADesired: amountX,
		AmountBDesired: amountY,
	}
}

func swapOp(seq uint64, amountIn, minOut string) model.OperationRecord {
	return model.OperationRecord{
		Seq:          seq,
		Op:           model.OpSwap,
		Sender:       bob,
		AmountIn:     amountIn,
		AmountOutMin: minOut,
		Path:         []string{tokenX, tokenY},
	}
}

// memorySink collects results in memory.
type memorySink struct {
	results []model.ResultRecord
}

func (s *memorySink) PutResults(_ context.Context, results []model.ResultRecord) error {
	s.results = append(s.results, results...)
	return nil
}
