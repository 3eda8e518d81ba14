// Package tickmath converts between ticks, prices and Q64.96 sqrt prices.
//
// One convention is used throughout: price(t) = 1.0001^t and sqrt(price(t)) = 1.0001^(t/2).
// Conversions into fixed point are checked; nothing narrows silently.
package tickmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272

	// Base is the price ratio between adjacent ticks.
	Base = 1.0001

	// tickTolerance is the relative slack allowed when comparing a price with a
	// tick boundary. It covers float error in Pow and Q64.96 truncation down to
	// MinTick, and is far below the 1e-4 gap between adjacent ticks.
	tickTolerance = 1e-9
)

var (
	ErrNonPositive = errors.New("value must be finite and positive")
	ErrNegative    = errors.New("value must be finite and non-negative")
	ErrTickRange   = errors.New("tick outside supported range")
	ErrOverflow    = errors.New("value overflows 256 bits")
)

var (
	logBase = math.Log(Base)
	// q96 is 2^96 as a float; exact in float64.
	q96 = math.Ldexp(1, 96)
	// Q96 is 2^96 in fixed point, the sqrt price of tick 0.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
)

// PriceAtTick returns 1.0001^t.
func PriceAtTick(t int32) float64 {
	return math.Pow(Base, float64(t))
}

// SqrtPriceAtTick returns 1.0001^(t/2).
func SqrtPriceAtTick(t int32) float64 {
	return math.Pow(Base, float64(t)/2)
}

// TickAtPrice returns the greatest tick whose price does not exceed p. A price
// within tickTolerance of a tick boundary maps to that tick.
func TickAtPrice(p float64) (int32, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, fmt.Errorf("price %v: %w", p, ErrNonPositive)
	}
	t := math.Floor(math.Log(p) / logBase)
	if t < float64(MinTick)-1 || t > float64(MaxTick)+1 {
		return 0, fmt.Errorf("price %v maps to tick %.0f: %w", p, t, ErrTickRange)
	}
	// the log estimate can be off by one in either direction at large |t|
	bound := p * (1 + tickTolerance)
	for math.Pow(Base, t+1) <= bound {
		t++
	}
	for t > float64(MinTick)-1 && math.Pow(Base, t) > bound {
		t--
	}
	if t < float64(MinTick) || t > float64(MaxTick) {
		return 0, fmt.Errorf("price %v maps to tick %.0f: %w", p, t, ErrTickRange)
	}
	return int32(t), nil
}

// SqrtPriceX96ToPrice decodes a Q64.96 sqrt price into a float price.
func SqrtPriceX96ToPrice(sqrtPriceX96 *uint256.Int) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.IsZero() {
		return 0, fmt.Errorf("sqrt price: %w", ErrNonPositive)
	}
	f, _ := new(big.Float).SetInt(sqrtPriceX96.ToBig()).Float64()
	s := f / q96
	return s * s, nil
}

// TickAtSqrtPriceX96 returns the tick implied by a Q64.96 sqrt price.
func TickAtSqrtPriceX96(sqrtPriceX96 *uint256.Int) (int32, error) {
	p, err := SqrtPriceX96ToPrice(sqrtPriceX96)
	if err != nil {
		return 0, err
	}
	return TickAtPrice(p)
}

// SqrtPriceX96AtTick encodes the sqrt price of tick t in Q64.96.
func SqrtPriceX96AtTick(t int32) (*uint256.Int, error) {
	if t < MinTick || t > MaxTick {
		return nil, fmt.Errorf("tick %d: %w", t, ErrTickRange)
	}
	return encodeSqrt(SqrtPriceAtTick(t))
}

// SqrtPriceX96FromPrice encodes sqrt(p) in Q64.96.
func SqrtPriceX96FromPrice(p float64) (*uint256.Int, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return nil, fmt.Errorf("price %v: %w", p, ErrNonPositive)
	}
	return encodeSqrt(math.Sqrt(p))
}

func encodeSqrt(s float64) (*uint256.Int, error) {
	v, err := FloatToUint256(s * q96)
	if err != nil {
		return nil, err
	}
	if v.IsZero() {
		return nil, fmt.Errorf("sqrt price %v underflows Q64.96: %w", s, ErrNonPositive)
	}
	return v, nil
}

// FloatToUint256 truncates a non-negative finite float to an integer, failing
// instead of wrapping when it does not fit.
func FloatToUint256(v float64) (*uint256.Int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%v: %w", v, ErrNegative)
	}
	i, _ := new(big.Float).SetFloat64(v).Int(nil)
	out, overflow := uint256.FromBig(i)
	if overflow {
		return nil, fmt.Errorf("%v: %w", v, ErrOverflow)
	}
	return out, nil
}

// BigToFloat converts an integer to the nearest float64.
func BigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
