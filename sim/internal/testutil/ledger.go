// Package testutil provides shared test infrastructure for the arena packages:
// a scriptable in-memory ledger that records every call.
package testutil

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arena-sim/arena/sim"
)

// Ledger operation names recorded in Call.Op.
const (
	OpDeploy          = "deploy"
	OpPriceUpdate     = "submit_price_update"
	OpPoolState       = "get_pool_state"
	OpTickLiquidity   = "get_tick_liquidity"
	OpSwap            = "submit_swap"
	OpLiquidityChange = "submit_liquidity_change"
	OpNextSequence    = "next_sequence_number"
)

// Call records one ledger invocation.
type Call struct {
	Op        string
	From      common.Address
	Nonce     uint64
	Tick      int32
	Price     *big.Int
	Swap      sim.SwapParams
	Liquidity sim.LiquidityParams
}

// FakeLedger is a sim.Ledger and sim.Deployer whose answers are set by the test.
// It never moves the pool on its own; OnSubmit can mutate State between calls.
type FakeLedger struct {
	State     sim.PoolState
	Liquidity map[int32]*big.Int // per-tick answer of TickLiquidity; missing ticks are zero
	Pool      sim.PoolID

	Errs   map[string]error  // op -> error returned without inclusion
	Revert map[string]string // op -> revert reason on inclusion
	Hang   map[string]bool   // op -> block until ctx is done

	// OnSubmit runs after every included submission.
	OnSubmit func(c Call)

	Calls  []Call
	Nonces map[common.Address]uint64
	block  uint64
}

var (
	_ sim.Ledger   = (*FakeLedger)(nil)
	_ sim.Deployer = (*FakeLedger)(nil)
)

// NewFakeLedger returns a ledger reporting state for every pool.
func NewFakeLedger(state sim.PoolState) *FakeLedger {
	return &FakeLedger{
		State:     state,
		Liquidity: make(map[int32]*big.Int),
		Pool:      sim.PoolID(crypto.Keccak256Hash([]byte("fake-pool"))),
		Errs:      make(map[string]error),
		Revert:    make(map[string]string),
		Hang:      make(map[string]bool),
		Nonces:    make(map[common.Address]uint64),
	}
}

// Ops returns the op of every recorded call, in order.
func (f *FakeLedger) Ops() []string {
	ops := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		ops = append(ops, c.Op)
	}
	return ops
}

// Count returns how many recorded calls hit op.
func (f *FakeLedger) Count(op string) int {
	n := 0
	for _, c := range f.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// CallsFor returns the recorded calls of op.
func (f *FakeLedger) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeLedger) query(ctx context.Context, c Call) error {
	if f.Hang[c.Op] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := f.Errs[c.Op]; err != nil {
		return err
	}
	f.Calls = append(f.Calls, c)
	return nil
}

func (f *FakeLedger) submit(ctx context.Context, tx sim.Tx, c Call) (sim.Confirmation, error) {
	c.From, c.Nonce = tx.From, tx.Nonce
	if err := f.query(ctx, c); err != nil {
		return sim.Confirmation{}, err
	}
	f.Nonces[tx.From] = tx.Nonce + 1
	f.block++
	conf := sim.Confirmation{Block: f.block}
	if reason, ok := f.Revert[c.Op]; ok {
		conf.Reverted = true
		conf.Reason = reason
	}
	if f.OnSubmit != nil {
		f.OnSubmit(c)
	}
	return conf, nil
}

func (f *FakeLedger) NextSequenceNumber(ctx context.Context, id common.Address) (uint64, error) {
	if err := f.Errs[OpNextSequence]; err != nil {
		return 0, err
	}
	return f.Nonces[id], nil
}

func (f *FakeLedger) SubmitPriceUpdate(ctx context.Context, tx sim.Tx, price *big.Int) (sim.Confirmation, error) {
	return f.submit(ctx, tx, Call{Op: OpPriceUpdate, Price: new(big.Int).Set(price)})
}

func (f *FakeLedger) PoolState(ctx context.Context, _ sim.PoolID) (sim.PoolState, error) {
	if err := f.query(ctx, Call{Op: OpPoolState, Tick: f.State.Tick}); err != nil {
		return sim.PoolState{}, err
	}
	return f.State, nil
}

func (f *FakeLedger) TickLiquidity(ctx context.Context, _ sim.PoolID, tick int32) (*big.Int, error) {
	if err := f.query(ctx, Call{Op: OpTickLiquidity, Tick: tick}); err != nil {
		return nil, err
	}
	if l, ok := f.Liquidity[tick]; ok {
		return new(big.Int).Set(l), nil
	}
	return new(big.Int), nil
}

func (f *FakeLedger) SubmitSwap(ctx context.Context, tx sim.Tx, _ sim.PoolID, swap sim.SwapParams) (sim.Confirmation, error) {
	return f.submit(ctx, tx, Call{Op: OpSwap, Swap: swap})
}

func (f *FakeLedger) SubmitLiquidityChange(ctx context.Context, tx sim.Tx, _ sim.PoolID, change sim.LiquidityParams) (sim.Confirmation, error) {
	return f.submit(ctx, tx, Call{Op: OpLiquidityChange, Liquidity: change, Tick: change.TickLower})
}

// Deploy submits a single admin call and reports f.Pool.
func (f *FakeLedger) Deploy(ctx context.Context, admin *sim.Handle, cfg sim.Config) (sim.Deployment, error) {
	if _, err := admin.Submit(ctx, OpDeploy, func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
		return f.submit(ctx, tx, Call{Op: OpDeploy})
	}); err != nil {
		return sim.Deployment{}, err
	}
	return sim.Deployment{
		Pool:    f.Pool,
		Key:     sim.PoolKey{Fee: cfg.PoolFee, TickSpacing: cfg.TickSpacing, Hooks: cfg.Hooks},
		Manager: common.HexToAddress("0x1000000000000000000000000000000000000001"),
		Fetcher: common.HexToAddress("0x1000000000000000000000000000000000000002"),
		Oracle:  common.HexToAddress("0x1000000000000000000000000000000000000003"),
	}, nil
}
