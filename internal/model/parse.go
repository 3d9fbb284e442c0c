package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseOptionalAddress returns fallback when input is blank.
func ParseOptionalAddress(input string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(input) == "" {
		return fallback, nil
	}
	return ParseAddress(input)
}

// ParseAmount parses a base-10 unsigned 256-bit integer.
func ParseAmount(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, err := uint256.FromDecimal(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	return v, nil
}

// ParseOptionalAmount returns zero when input is blank.
func ParseOptionalAmount(input string) (*uint256.Int, error) {
	if strings.TrimSpace(input) == "" {
		return new(uint256.Int), nil
	}
	return ParseAmount(input)
}
