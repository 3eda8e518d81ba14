package sim

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arena-sim/arena/sim/tickmath"
)

// Engine is the only way a strategy can change pool state. Strategies state intent;
// the engine picks the ledger entry point, sequences the call for the caller's identity
// and waits for confirmation.
//
// The arena hands each strategy a view bound to that strategy's keyring slot. A bound
// view only acts for its own identity; the admin identity is never reachable.
type Engine struct {
	core  *engineCore
	owner int
}

// unbound marks an engine that accepts any registered strategy identity.
const unbound = -1

type engineCore struct {
	deployment  Deployment
	tickSpacing int32
	ledger      Ledger
	handles     map[int]*Handle

	inspector Inspector
	runID     uuid.UUID
	step      uint64
	hasStep   bool
}

// NewEngine creates an unbound engine for the pool in deployment. Only the strategy
// slots of keyring are registered; identities must match the keyring's copy,
// signing key included.
func NewEngine(d Deployment, cfg Config, ledger Ledger, seq *Sequencer, keyring *Keyring) *Engine {
	core := &engineCore{
		deployment:  d,
		tickSpacing: cfg.TickSpacing,
		ledger:      ledger,
		handles:     make(map[int]*Handle, keyring.Len()),
		inspector:   EmptyInspector{},
	}
	for i := 0; i < keyring.Len(); i++ {
		if i == AdminIndex {
			continue
		}
		id, _ := keyring.At(i)
		core.handles[i] = NewHandle(id, ledger, seq, cfg.ConfirmTimeout)
	}
	return &Engine{core: core, owner: unbound}
}

// Bind returns a view of the engine that acts only for id.
func (e *Engine) Bind(id Identity) (*Engine, error) {
	if _, err := e.handleFor(id); err != nil {
		return nil, err
	}
	return &Engine{core: e.core, owner: id.Index}, nil
}

// observe routes strategy telemetry to inspector, stamped with runID.
func (e *Engine) observe(runID uuid.UUID, inspector Inspector) {
	e.core.runID = runID
	e.core.inspector = inspector
}

// at sets the step stamped on strategy telemetry.
func (e *Engine) at(step uint64) {
	e.core.step, e.core.hasStep = step, true
}

func (e *Engine) handleFor(id Identity) (*Handle, error) {
	if e.owner != unbound && id.Index != e.owner {
		return nil, fmt.Errorf("%w: engine is bound to slot %d, not %s", ErrConfiguration, e.owner, id)
	}
	h, ok := e.core.handles[id.Index]
	if !ok || !h.Identity().matches(id) {
		return nil, fmt.Errorf("%w: identity %s is not registered with the engine", ErrConfiguration, id)
	}
	return h, nil
}

// Pool returns the id of the pool the engine mutates.
func (e *Engine) Pool() PoolID { return e.core.deployment.Pool }

// Deployment returns the addresses of the run's ledger objects.
func (e *Engine) Deployment() Deployment { return e.core.deployment }

// TickSpacing returns the pool's tick spacing. Range bounds must be multiples of it.
func (e *Engine) TickSpacing() int32 { return e.core.tickSpacing }

// PoolState reads the current pool state.
func (e *Engine) PoolState(ctx context.Context) (PoolState, error) {
	state, err := e.core.ledger.PoolState(ctx, e.core.deployment.Pool)
	if err != nil {
		return PoolState{}, &LedgerError{Op: "get_pool_state", Err: err}
	}
	return state, nil
}

// Log reports a named value to the run's inspector on behalf of the bound strategy.
// Inspectors that do not implement StrategyInspector ignore it.
func (e *Engine) Log(key string, value float64) error {
	if e.owner == unbound {
		return fmt.Errorf("%w: strategy telemetry needs a bound engine", ErrConfiguration)
	}
	si, ok := e.core.inspector.(StrategyInspector)
	if !ok {
		return nil
	}
	h := e.core.handles[e.owner]
	return si.LogStrategy(StrategyRecord{
		RunID:    e.core.runID,
		Step:     e.core.step,
		HasStep:  e.core.hasStep,
		Slot:     e.owner,
		Identity: h.Identity().Address,
		Key:      key,
		Value:    value,
	})
}

// ModifyLiquidity adds (delta > 0) or removes (delta < 0) liquidity across
// [tickLower, tickUpper) on behalf of id, and returns once the change is confirmed.
func (e *Engine) ModifyLiquidity(ctx context.Context, delta *big.Int, tickLower, tickUpper int32, hookData []byte, id Identity) error {
	if delta == nil || delta.Sign() == 0 {
		return fmt.Errorf("%w: liquidity delta must be non-zero", ErrInvalidNumericInput)
	}
	if err := e.checkRange(tickLower, tickUpper); err != nil {
		return err
	}
	h, err := e.handleFor(id)
	if err != nil {
		return err
	}

	params := LiquidityParams{
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		LiquidityDelta: new(big.Int).Set(delta),
		HookData:       append([]byte(nil), hookData...),
	}
	start := time.Now()
	conf, err := h.Submit(ctx, "submit_liquidity_change", func(ctx context.Context, tx Tx) (Confirmation, error) {
		return e.core.ledger.SubmitLiquidityChange(ctx, tx, e.core.deployment.Pool, params)
	})
	if err != nil {
		return err
	}
	logrus.Debugf("%s modified liquidity %s over [%d, %d) in block %d (%v)",
		id, delta, tickLower, tickUpper, conf.Block, time.Since(start))
	return nil
}

func (e *Engine) checkRange(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("%w: tick range [%d, %d) is empty", ErrInvalidNumericInput, lower, upper)
	}
	if lower < tickmath.MinTick || upper > tickmath.MaxTick {
		return fmt.Errorf("%w: tick range [%d, %d) exceeds [%d, %d]", ErrInvalidNumericInput, lower, upper, tickmath.MinTick, tickmath.MaxTick)
	}
	if lower%e.core.tickSpacing != 0 || upper%e.core.tickSpacing != 0 {
		return fmt.Errorf("%w: ticks %d, %d are not multiples of spacing %d", ErrInvalidNumericInput, lower, upper, e.core.tickSpacing)
	}
	return nil
}
