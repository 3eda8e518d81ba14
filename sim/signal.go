package sim

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Signal is the per-step snapshot handed to the arbitrageur and every strategy.
// It is a value type; receivers get their own copy.
type Signal struct {
	// TheoreticalValue is the feed's current value.
	TheoreticalValue float64
	// SqrtPriceX96 is the pool's Q64.96 sqrt price as reported by the ledger.
	SqrtPriceX96 uint256.Int
	// Tick is the active tick implied by SqrtPriceX96.
	Tick int32
	// Step is only meaningful when HasStep is set; the initialization signal has no step.
	Step    uint64
	HasStep bool

	Pool    PoolID
	Manager common.Address
	Fetcher common.Address
}

// NewSignal builds a signal from a pool state read. Pass hasStep=false for the
// initialization signal.
func NewSignal(value float64, state PoolState, step uint64, hasStep bool, d Deployment) Signal {
	s := Signal{
		TheoreticalValue: value,
		SqrtPriceX96:     state.SqrtPriceX96,
		Tick:             state.Tick,
		HasStep:          hasStep,
		Pool:             d.Pool,
		Manager:          d.Manager,
		Fetcher:          d.Fetcher,
	}
	if hasStep {
		s.Step = step
	}
	return s
}

// StepIndex returns the step and whether the signal belongs to a step at all.
func (s Signal) StepIndex() (uint64, bool) { return s.Step, s.HasStep }
