package sim

import (
	"context"

	"github.com/holiman/uint256"
)

// Trade is the outcome of one arbitrage pass.
type Trade struct {
	// Submitted is false when no swap was sent (target tick equals current tick).
	Submitted   bool
	Amount      uint256.Int
	ZeroForOne  bool
	CurrentTick int32
	TargetTick  int32
}

// Arbitrageur keeps the pool price pegged to the feed. It runs as the admin identity.
type Arbitrageur interface {
	Init(ctx context.Context, signal Signal, h *Handle) error
	Arbitrage(ctx context.Context, signal Signal, h *Handle) (Trade, error)
}

// EmptyArbitrageur never trades. Useful to observe strategies in isolation.
// Its trade only reports the quoted tick as both current and target.
type EmptyArbitrageur struct{}

func (EmptyArbitrageur) Init(context.Context, Signal, *Handle) error { return nil }

func (EmptyArbitrageur) Arbitrage(_ context.Context, signal Signal, _ *Handle) (Trade, error) {
	return Trade{CurrentTick: signal.Tick, TargetTick: signal.Tick}, nil
}
