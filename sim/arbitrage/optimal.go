// Package arbitrage sizes and submits the trade that re-pegs a pool to the feed.
package arbitrage

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/tickmath"
)

var _ sim.Arbitrageur = (*OptimalArbitrageur)(nil)

// OptimalArbitrageur computes the closed-form profit-maximizing swap against the
// liquidity between the pool tick and the feed's tick, and submits it as the admin.
type OptimalArbitrageur struct{}

// NewOptimalArbitrageur returns an OptimalArbitrageur.
func NewOptimalArbitrageur() *OptimalArbitrageur {
	return &OptimalArbitrageur{}
}

func (o *OptimalArbitrageur) Init(context.Context, sim.Signal, *sim.Handle) error { return nil }

// Arbitrage swaps toward the feed price. When the feed already maps to the pool's
// tick nothing is sent.
func (o *OptimalArbitrageur) Arbitrage(ctx context.Context, signal sim.Signal, h *sim.Handle) (sim.Trade, error) {
	ledger := h.Ledger()
	state, err := ledger.PoolState(ctx, signal.Pool)
	if err != nil {
		return sim.Trade{}, &sim.LedgerError{Op: "get_pool_state", Err: err}
	}
	target, err := tickmath.TickAtPrice(signal.TheoreticalValue)
	if err != nil {
		return sim.Trade{}, fmt.Errorf("%w: target tick: %v", sim.ErrInvalidNumericInput, err)
	}

	trade := sim.Trade{CurrentTick: state.Tick, TargetTick: target}
	if target == state.Tick {
		return trade, nil
	}

	sums, err := Accumulate(ctx, ledger, signal.Pool, state.Tick, target)
	if err != nil {
		return sim.Trade{}, err
	}
	size := OptimalAmount(sums.A, sums.B, FeeFactor(state.Fee))
	amount, err := tickmath.FloatToUint256(size)
	if err != nil {
		return sim.Trade{}, fmt.Errorf("%w: trade size: %v", sim.ErrInvalidNumericInput, err)
	}

	// pool above target: sell token0 to push the price down
	trade.ZeroForOne = state.Tick > target
	trade.Amount = *amount

	swap := sim.SwapParams{
		Amount:            trade.Amount,
		ZeroForOne:        trade.ZeroForOne,
		SqrtPriceLimitX96: state.SqrtPriceX96,
	}
	if _, err := h.Submit(ctx, "submit_swap", func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
		return ledger.SubmitSwap(ctx, tx, signal.Pool, swap)
	}); err != nil {
		return sim.Trade{}, err
	}
	trade.Submitted = true
	logrus.Tracef("arbitrage %d -> %d: liquidity a=%g b=%g amount=%s", state.Tick, target, sums.A, sums.B, trade.Amount.Dec())
	return trade, nil
}

// Sums are the per-tick liquidity accumulators over a traversed range, in the
// a*b=k decomposition: A = sum L/sqrt(p), B = sum L*sqrt(p).
type Sums struct {
	A, B  float64
	Ticks int
}

// K is the constant-product invariant approximated by the sums.
func (s Sums) K() float64 { return s.A * s.B }

// Accumulate walks every tick in [min(from, to), max(from, to)) and sums the
// liquidity reported by the ledger.
func Accumulate(ctx context.Context, ledger sim.Ledger, pool sim.PoolID, from, to int32) (Sums, error) {
	start, end := from, to
	if start > end {
		start, end = end, start
	}
	var s Sums
	for t := start; t < end; t++ {
		l, err := ledger.TickLiquidity(ctx, pool, t)
		if err != nil {
			return Sums{}, &sim.LedgerError{Op: "get_tick_liquidity", Err: fmt.Errorf("tick %d: %w", t, err)}
		}
		liquidity := tickmath.BigToFloat(l)
		sqrtPrice := tickmath.SqrtPriceAtTick(t)
		s.A += liquidity / sqrtPrice
		s.B += liquidity * sqrtPrice
		s.Ticks++
	}
	return s, nil
}

// FeeFactor converts a fee in hundredths of a basis point to the multiplier kept
// by the trader: 3000 (0.30%) -> 0.997.
func FeeFactor(fee uint32) float64 {
	return 1 - float64(fee)/1e6
}

// OptimalAmount is the swap-in size max(0, a - k/(f*(a/b))) with k = a*b.
// Empty or non-positive liquidity yields zero instead of dividing by zero.
func OptimalAmount(a, b, feeFactor float64) float64 {
	if !(a > 0) || !(b > 0) || !(feeFactor > 0) {
		return 0
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0
	}
	k := a * b
	trade := a - k/(feeFactor*(a/b))
	if math.IsNaN(trade) || math.IsInf(trade, 0) || trade < 0 {
		return 0
	}
	return trade
}
