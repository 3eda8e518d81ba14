// Package strategy holds ready-made liquidity strategies and the name registry
// the CLI builds them from.
package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/tickmath"
)

var (
	_ sim.Strategy = NoOp{}
	_ sim.Strategy = (*StaticLiquidity)(nil)
	_ sim.Strategy = (*RangeRebalancer)(nil)
)

// NoOp never touches the pool. Useful as a baseline and for pure feed runs.
type NoOp struct{}

func (NoOp) Name() string { return NameNoOp }

func (NoOp) Init(context.Context, sim.Identity, sim.Signal, *sim.Engine) error    { return nil }
func (NoOp) Process(context.Context, sim.Identity, sim.Signal, *sim.Engine) error { return nil }

// StaticLiquidity provides a fixed position once at startup and then holds it.
type StaticLiquidity struct {
	Liquidity *big.Int
	TickLower int32
	TickUpper int32
	// FullRange ignores TickLower/TickUpper and uses the widest aligned range.
	FullRange bool
	HookData  []byte
}

func (s *StaticLiquidity) Name() string { return NameStatic }

func (s *StaticLiquidity) Init(ctx context.Context, id sim.Identity, _ sim.Signal, engine *sim.Engine) error {
	lower, upper := s.TickLower, s.TickUpper
	if s.FullRange {
		lower, upper = FullRange(engine.TickSpacing())
	}
	return engine.ModifyLiquidity(ctx, s.Liquidity, lower, upper, s.HookData, id)
}

func (s *StaticLiquidity) Process(context.Context, sim.Identity, sim.Signal, *sim.Engine) error {
	return nil
}

// RangeRebalancer keeps a band of liquidity around the active tick. When the tick
// leaves the band the position is withdrawn and re-added around the new tick.
type RangeRebalancer struct {
	Liquidity *big.Int
	// HalfWidth is the number of tick spacings on each side of the active spacing.
	HalfWidth int32
	HookData  []byte

	placed     bool
	lower      int32
	upper      int32
	rebalances int
}

func (r *RangeRebalancer) Name() string { return NameRebalancer }

// Range returns the current band and whether a position is open.
func (r *RangeRebalancer) Range() (lower, upper int32, placed bool) {
	return r.lower, r.upper, r.placed
}

// Rebalances counts how often the band was moved after Init.
func (r *RangeRebalancer) Rebalances() int { return r.rebalances }

func (r *RangeRebalancer) Init(ctx context.Context, id sim.Identity, signal sim.Signal, engine *sim.Engine) error {
	if r.HalfWidth < 0 {
		return fmt.Errorf("%w: half width %d is negative", sim.ErrConfiguration, r.HalfWidth)
	}
	return r.place(ctx, id, signal.Tick, engine)
}

func (r *RangeRebalancer) Process(ctx context.Context, id sim.Identity, signal sim.Signal, engine *sim.Engine) error {
	if r.placed && signal.Tick >= r.lower && signal.Tick < r.upper {
		return nil
	}
	// at the edge of the tick range the best band may not contain the tick
	if lower, upper := Band(signal.Tick, engine.TickSpacing(), r.HalfWidth); r.placed && lower == r.lower && upper == r.upper {
		return nil
	}
	if r.placed {
		withdraw := new(big.Int).Neg(r.Liquidity)
		if err := engine.ModifyLiquidity(ctx, withdraw, r.lower, r.upper, r.HookData, id); err != nil {
			return fmt.Errorf("withdrawing [%d, %d): %w", r.lower, r.upper, err)
		}
		r.placed = false
	}
	if err := r.place(ctx, id, signal.Tick, engine); err != nil {
		return err
	}
	r.rebalances++
	logrus.Debugf("%s rebalanced to [%d, %d) at tick %d", id, r.lower, r.upper, signal.Tick)
	if err := engine.Log("rebalances", float64(r.rebalances)); err != nil {
		logrus.Warnf("%s: reporting rebalance: %v", id, err)
	}
	return nil
}

func (r *RangeRebalancer) place(ctx context.Context, id sim.Identity, tick int32, engine *sim.Engine) error {
	lower, upper := Band(tick, engine.TickSpacing(), r.HalfWidth)
	if err := engine.ModifyLiquidity(ctx, r.Liquidity, lower, upper, r.HookData, id); err != nil {
		return fmt.Errorf("adding [%d, %d): %w", lower, upper, err)
	}
	r.lower, r.upper, r.placed = lower, upper, true
	return nil
}

// FullRange returns the widest range whose bounds are multiples of spacing.
func FullRange(spacing int32) (lower, upper int32) {
	// integer division truncates toward zero, which keeps both bounds inside the range
	return (tickmath.MinTick / spacing) * spacing, (tickmath.MaxTick / spacing) * spacing
}

// Band returns the aligned range covering tick's spacing plus halfWidth spacings on
// each side. Near either end of FullRange the band keeps its width and shifts inward,
// so it is never empty; it is only narrowed when wider than FullRange itself.
func Band(tick, spacing, halfWidth int32) (lower, upper int32) {
	minTick, maxTick := FullRange(spacing)
	width := (2*int64(halfWidth) + 1) * int64(spacing)
	if width >= int64(maxTick)-int64(minTick) {
		return minTick, maxTick
	}
	base := floorDiv(tick, spacing) * spacing
	lower = base - halfWidth*spacing
	upper = base + (halfWidth+1)*spacing
	switch {
	case upper > maxTick:
		upper, lower = maxTick, maxTick-int32(width)
	case lower < minTick:
		lower, upper = minTick, minTick+int32(width)
	}
	return lower, upper
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
