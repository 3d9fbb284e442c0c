package amm

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	assetX = common.HexToAddress("0xaa00000000000000000000000000000000000000")
	assetY = common.HexToAddress("0xbb00000000000000000000000000000000000000")
	assetZ = common.HexToAddress("0xcc00000000000000000000000000000000000000")
)

func poolState(a, b common.Address, r0, r1, shares uint64) PoolState {
	state := PoolState{Pair: NewPair(a, b)}
	state.Reserve0.SetUint64(r0)
	state.Reserve1.SetUint64(r1)
	state.TotalShares.SetUint64(shares)
	return state
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get(CanonicalKey(assetX, assetY))
	assert.False(t, ok)

	created := r.GetOrCreate(NewPair(assetY, assetX))
	assert.False(t, created.Initialized())
	assert.Equal(t, assetX, created.Pair.Asset0)
	assert.Equal(t, 1, r.Len())

	again := r.GetOrCreate(NewPair(assetX, assetY))
	assert.Equal(t, created, again)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Put(poolState(assetX, assetY, 10, 20, 5))

	got, ok := r.Get(CanonicalKey(assetX, assetY))
	require.True(t, ok)
	got.Reserve0.SetUint64(999)

	again, _ := r.Get(CanonicalKey(assetX, assetY))
	assert.Equal(t, uint64(10), again.Reserve0.Uint64())
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.GetOrCreate(NewPair(assetX, assetZ))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, r.Len())
}

func TestRegistryPoolsSorted(t *testing.T) {
	r := NewRegistry()
	r.Put(poolState(assetX, assetY, 1, 1, 1))
	r.Put(poolState(assetY, assetZ, 1, 1, 1))
	r.Put(poolState(assetX, assetZ, 1, 1, 1))

	pools := r.Pools()
	require.Len(t, pools, 3)
	for i := 1; i < len(pools); i++ {
		prev, cur := pools[i-1].Key(), pools[i].Key()
		assert.Negative(t, compareKeys(prev, cur))
	}
}

func compareKeys(a, b PairKey) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func TestRegistryRestore(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Restore([]PoolState{poolState(assetX, assetY, 100, 400, 200)}))
	pool, ok := r.Get(CanonicalKey(assetX, assetY))
	require.True(t, ok)
	assert.Equal(t, uint64(400), pool.Reserve1.Uint64())

	bad := []PoolState{
		poolState(assetY, assetZ, 1, 1, 1),
		poolState(assetX, assetZ, 0, 5, 0),
	}
	err := r.Restore(bad)
	require.ErrorIs(t, err, ErrInvalidPoolState)
	assert.Equal(t, 1, r.Len(), "nothing loads when one state is invalid")

	reversed := PoolState{Pair: Pair{Asset0: assetY, Asset1: assetX}}
	assert.ErrorIs(t, r.Restore([]PoolState{reversed}), ErrInvalidPoolState)

	same := PoolState{Pair: Pair{Asset0: assetX, Asset1: assetX}}
	assert.ErrorIs(t, r.Restore([]PoolState{same}), ErrInvalidPath)
}

func TestRegistryCheckInvariants(t *testing.T) {
	r := NewRegistry()
	r.Put(poolState(assetX, assetY, 100, 400, 200))
	require.NoError(t, r.CheckInvariants())

	r.Put(poolState(assetX, assetZ, 0, 7, 3))
	r.Put(poolState(assetY, assetZ, 7, 7, 0))
	err := r.CheckInvariants()
	require.ErrorIs(t, err, ErrInvalidPoolState)
}

func TestPoolStateReservesFor(t *testing.T) {
	state := poolState(assetX, assetY, 100, 400, 200)

	in, out := state.ReservesFor(assetY)
	assert.Equal(t, uint64(400), in.Uint64())
	assert.Equal(t, uint64(100), out.Uint64())

	in.SetUint64(1)
	assert.Equal(t, uint64(400), state.Reserve1.Uint64())
	assert.Equal(t, "40000", state.Product().String())
}
