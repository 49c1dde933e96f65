package config

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const lamportDecimals = 9

// ParseSOL converts a SOL amount such as "2.1" into lamports. Amounts with
// more precision than one lamport are rejected.
func ParseSOL(input string) (uint64, error) {
	return ParseAmount(input, lamportDecimals)
}

// ParseAmount converts a UI amount into base units for a mint with the given
// decimals.
func ParseAmount(input string, decimals uint8) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", input, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", input)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimals", input, decimals)
	}
	if scaled.GreaterThan(fromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("amount %s overflows", input)
	}
	return scaled.BigInt().Uint64(), nil
}

// FormatSOL renders lamports as a SOL string.
func FormatSOL(lamports uint64) string {
	return FormatAmount(lamports, lamportDecimals)
}

// FormatAmount renders base units as a UI amount.
func FormatAmount(amount uint64, decimals uint8) string {
	return fromUint64(amount).Shift(-int32(decimals)).String()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// ParsePublicKey parses a base58 address; name labels the error.
func ParsePublicKey(name, input string) (solana.PublicKey, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(input)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return key, nil
}
