package fpmath

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	PriceConfig   = DecimalConfig{DecimalPrecision: 2, Scale: 100}                   // 0.01
	ReserveConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}             // 0.000001 reserve currency
	AssetConfig   = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}             // 0.000001 synthetic units
	RateConfig    = DecimalConfig{DecimalPrecision: 8, Scale: 100_000_000}           // 0.00000001 per second
	RatioConfig   = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}             // collateral ratio fraction
	IndexConfig   = DecimalConfig{DecimalPrecision: 12, Scale: 1_000_000_000_000}    // interest index per unit
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := quotient.Int64()

	if roundingMode == RoundHalfEven {
		// Banker's rounding: if remainder == denominator/2, round to even
		half := big.NewInt(denominator / 2)
		cmp := remainder.Cmp(half)

		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 {
			if result%2 != 0 {
				result++
			}
		}
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// MulDiv computes a * b / denominator through a 128-bit intermediate
// with banker's rounding. denominator must be nonzero.
func MulDiv(a, b, denominator int64) int64 {
	temp := MultiplyInt128(a, b)
	result := DivideInt128(temp, denominator, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeWeightedIndex calculates the size-weighted average of two index
// values, used when a position accretes at a different entry index.
func ComputeWeightedIndex(oldSize, oldIndex, addSize, addIndex int64) int64 {
	if oldSize == 0 {
		return addIndex
	}

	term1 := MultiplyInt128(oldSize, oldIndex)
	term2 := MultiplyInt128(addSize, addIndex)
	numerator := getInt128()
	numerator.Add(term1, term2)

	denominator := oldSize + addSize

	result := DivideInt128(numerator, denominator, RoundHalfEven)

	putInt128(term1)
	putInt128(term2)
	putInt128(numerator)

	return result
}
