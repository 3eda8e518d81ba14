package sim

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// StepRecord is what the arena reports to the inspector after each step.
// Tick and SqrtPriceX96 are the pool state at the end of the step, after the
// arbitrageur and every strategy ran; Trade.CurrentTick is the tick it was quoted at.
type StepRecord struct {
	RunID            uuid.UUID
	Step             uint64
	TheoreticalValue float64
	Tick             int32
	SqrtPriceX96     uint256.Int
	Trade            Trade
}

// StrategyRecord is a named value a strategy reported through Engine.Log.
// HasStep is false for values reported from Init.
type StrategyRecord struct {
	RunID    uuid.UUID
	Step     uint64
	HasStep  bool
	Slot     int
	Identity common.Address
	Key      string
	Value    float64
}

// Inspector consumes step telemetry. Errors are logged by the arena, never fatal.
type Inspector interface {
	Log(record StepRecord) error
	Flush() error
}

// StrategyInspector is implemented by inspectors that also accept strategy telemetry.
type StrategyInspector interface {
	LogStrategy(record StrategyRecord) error
}

// EmptyInspector discards everything.
type EmptyInspector struct{}

func (EmptyInspector) Log(StepRecord) error { return nil }
func (EmptyInspector) Flush() error         { return nil }
