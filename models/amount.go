package models

import "math/big"

// maxUint256 is 2^256 - 1, the largest value any ledger amount may hold.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ValidAmount reports whether a is a usable unsigned 256-bit amount.
func ValidAmount(a *big.Int) bool {
	return a != nil && a.Sign() >= 0 && a.Cmp(maxUint256) <= 0
}

// FitsUint256 reports whether a still fits in 256 bits after arithmetic.
// Callers treat a false result as an overflow, never wrapping.
func FitsUint256(a *big.Int) bool {
	return a.Sign() >= 0 && a.Cmp(maxUint256) <= 0
}

// ParseAmount parses a base-10 amount string into an unsigned 256-bit integer.
func ParseAmount(s string) (*big.Int, error) {
	a, ok := new(big.Int).SetString(s, 10)
	if !ok || !ValidAmount(a) {
		return nil, ErrInvalidAmount
	}
	return a, nil
}
