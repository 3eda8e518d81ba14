package sim

import (
	"context"
	"strconv"
)

// Strategy is user logic run once at startup and once per step. Any error aborts the run;
// a strategy that wants to retry a failed liquidity change must do so itself.
type Strategy interface {
	Init(ctx context.Context, id Identity, signal Signal, engine *Engine) error
	Process(ctx context.Context, id Identity, signal Signal, engine *Engine) error
}

// Named is implemented by strategies that want a readable name in logs.
type Named interface {
	Name() string
}

func strategyName(s Strategy, idx int) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "strategy-" + strconv.Itoa(idx)
}
