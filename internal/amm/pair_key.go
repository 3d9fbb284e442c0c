package amm

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PairKey is the 32-byte identifier of the pool for an unordered asset pair.
//
// It is the Keccak-256 digest of the two asset addresses concatenated in
// ascending byte order, so CanonicalKey(x, y) == CanonicalKey(y, x).
type PairKey [32]byte

// CanonicalKey derives the pool key for assets x and y. It does not reject x == y.
func CanonicalKey(x, y common.Address) PairKey {
	return NewPair(x, y).Key()
}

// String returns the key as a 0x-prefixed hex string.
func (k PairKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// MarshalJSON serializes the key as a hex string.
func (k PairKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a hex string produced by MarshalJSON.
func (k *PairKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePairKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePairKey parses a 32-byte hex key with optional 0x prefix.
func ParsePairKey(s string) (PairKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return PairKey{}, err
	}
	if len(b) != len(PairKey{}) {
		return PairKey{}, errors.New("pair key must be 32 bytes")
	}
	var k PairKey
	copy(k[:], b)
	return k, nil
}

// Pair is an asset pair in canonical order: Asset0 sorts before Asset1.
type Pair struct {
	Asset0 common.Address `json:"asset0"`
	Asset1 common.Address `json:"asset1"`
}

// NewPair orders x and y canonically.
func NewPair(x, y common.Address) Pair {
	if bytes.Compare(x[:], y[:]) > 0 {
		x, y = y, x
	}
	return Pair{Asset0: x, Asset1: y}
}

// Key returns the pool key of the pair.
func (p Pair) Key() PairKey {
	return PairKey(crypto.Keccak256Hash(p.Asset0.Bytes(), p.Asset1.Bytes()))
}

// Identical reports whether both sides name the same asset.
func (p Pair) Identical() bool {
	return p.Asset0 == p.Asset1
}
