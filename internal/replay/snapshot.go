package replay

import (
	"fmt"

	"github.com/holiman/uint256"

	"cpamm/internal/amm"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

// Capture copies the state of the registry and both ledgers.
func Capture(lastSeq uint64, registry *amm.Registry, bank *ledger.Bank, shares *ledger.Shares) model.Snapshot {
	pools := registry.Pools()
	records := make([]model.PoolRecord, 0, len(pools))
	for _, pool := range pools {
		records = append(records, PoolRecord(pool))
	}
	return model.Snapshot{
		LastSeq:  lastSeq,
		Custody:  bank.Custody().Hex(),
		Pools:    records,
		Balances: bank.Records(),
		Shares:   shares.Records(),
	}
}

// Restore loads snap into the registry and both ledgers. The bank must use
// the custody account the snapshot was taken with.
func Restore(snap model.Snapshot, registry *amm.Registry, bank *ledger.Bank, shares *ledger.Shares) error {
	custody, err := model.ParseOptionalAddress(snap.Custody, bank.Custody())
	if err != nil {
		return fmt.Errorf("restore custody: %w", err)
	}
	if custody != bank.Custody() {
		return fmt.Errorf("restore custody: state uses %s, bank uses %s", custody.Hex(), bank.Custody().Hex())
	}

	pools := make([]amm.PoolState, 0, len(snap.Pools))
	for _, rec := range snap.Pools {
		pool, err := PoolState(rec)
		if err != nil {
			return err
		}
		pools = append(pools, pool)
	}
	if err := registry.Restore(pools); err != nil {
		return err
	}
	if err := bank.Load(snap.Balances); err != nil {
		return err
	}
	return shares.Load(snap.Shares)
}

// PoolRecord converts a pool to its storage form.
func PoolRecord(pool amm.PoolState) model.PoolRecord {
	return model.PoolRecord{
		Key:         pool.Key().String(),
		Asset0:      pool.Pair.Asset0.Hex(),
		Asset1:      pool.Pair.Asset1.Hex(),
		Reserve0:    pool.Reserve0.Dec(),
		Reserve1:    pool.Reserve1.Dec(),
		TotalShares: pool.TotalShares.Dec(),
	}
}

// PoolState parses a stored pool and checks its key matches its assets.
func PoolState(rec model.PoolRecord) (amm.PoolState, error) {
	asset0, err := model.ParseAddress(rec.Asset0)
	if err != nil {
		return amm.PoolState{}, fmt.Errorf("pool %s: %w", rec.Key, err)
	}
	asset1, err := model.ParseAddress(rec.Asset1)
	if err != nil {
		return amm.PoolState{}, fmt.Errorf("pool %s: %w", rec.Key, err)
	}
	state := amm.PoolState{Pair: amm.Pair{Asset0: asset0, Asset1: asset1}}

	for _, field := range []struct {
		name  string
		value string
		dst   *uint256.Int
	}{
		{"reserve0", rec.Reserve0, &state.Reserve0},
		{"reserve1", rec.Reserve1, &state.Reserve1},
		{"total_shares", rec.TotalShares, &state.TotalShares},
	} {
		v, err := model.ParseAmount(field.value)
		if err != nil {
			return amm.PoolState{}, fmt.Errorf("pool %s %s: %w", rec.Key, field.name, err)
		}
		field.dst.Set(v)
	}

	if rec.Key != "" {
		key, err := amm.ParsePairKey(rec.Key)
		if err != nil {
			return amm.PoolState{}, fmt.Errorf("pool key %q: %w", rec.Key, err)
		}
		if key != state.Key() {
			return amm.PoolState{}, fmt.Errorf("pool key %s does not match assets %s/%s", rec.Key, rec.Asset0, rec.Asset1)
		}
	}
	return state, nil
}
