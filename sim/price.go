package sim

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// OracleDecimals is the fixed-point precision of prices pushed to the oracle.
const OracleDecimals = 18

// OraclePrice converts a feed value to the oracle's 18-decimal fixed-point form,
// truncating below 1e-18. Non-finite and non-positive values are rejected.
func OraclePrice(value float64) (*big.Int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: feed value %v is not finite", ErrInvalidNumericInput, value)
	}
	if value <= 0 {
		return nil, fmt.Errorf("%w: feed value %v is not positive", ErrInvalidNumericInput, value)
	}
	wei := decimal.NewFromFloat(value).Shift(OracleDecimals).BigInt()
	if wei.Sign() == 0 {
		return nil, fmt.Errorf("%w: feed value %v underflows %d decimals", ErrInvalidNumericInput, value, OracleDecimals)
	}
	return wei, nil
}

// OracleValue is the inverse of OraclePrice.
func OracleValue(price *big.Int) float64 {
	f, _ := decimal.NewFromBigInt(price, -OracleDecimals).Float64()
	return f
}
