// Package ledger provides Paper, an in-process ledger that stands in for the
// external pool service in tests and offline runs.
//
// Paper enforces per-identity sequence numbers the way a chain does: a call with
// the wrong nonce is rejected and never included; an included call that fails its
// checks is reverted and still consumes the nonce. Swaps use single-range
// constant-liquidity math around the active tick and do not cross ticks.
package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/tickmath"
)

// Op names a ledger entry point.
type Op string

const (
	OpDeploy          Op = "deploy"
	OpInitialize      Op = "initialize"
	OpPriceUpdate     Op = "submit_price_update"
	OpPoolState       Op = "get_pool_state"
	OpTickLiquidity   Op = "get_tick_liquidity"
	OpSwap            Op = "submit_swap"
	OpLiquidityChange Op = "submit_liquidity_change"
	OpNextSequence    Op = "next_sequence_number"
)

var (
	ErrStaleNonce  = errors.New("stale sequence number")
	ErrUnknownPool = errors.New("unknown pool")
)

// Call is one entry of the call log.
type Call struct {
	Op       Op
	From     common.Address
	Nonce    uint64
	Pool     sim.PoolID
	Tick     int32
	Reverted bool
}

type positionKey struct {
	owner        common.Address
	lower, upper int32
}

type pool struct {
	key          sim.PoolKey
	sqrtPrice    uint256.Int
	tick         int32
	liquidityNet map[int32]*big.Int
	positions    map[positionKey]*big.Int
}

// Paper is safe for concurrent use, though the arena drives it from one goroutine.
type Paper struct {
	mu          sync.Mutex
	block       uint64
	nonces      map[common.Address]uint64
	oraclePrice *big.Int
	pools       map[sim.PoolID]*pool
	calls       []Call
	faults      map[Op]error
}

var (
	_ sim.Ledger   = (*Paper)(nil)
	_ sim.Deployer = (*Paper)(nil)
)

// NewPaper returns an empty ledger.
func NewPaper() *Paper {
	return &Paper{
		nonces:      make(map[common.Address]uint64),
		oraclePrice: new(big.Int),
		pools:       make(map[sim.PoolID]*pool),
		faults:      make(map[Op]error),
	}
}

// FailOn makes every later call to op fail with err before reaching the ledger.
// A nil err clears the fault.
func (p *Paper) FailOn(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.faults, op)
		return
	}
	p.faults[op] = err
}

// Calls returns a copy of the call log.
func (p *Paper) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Count returns how many logged calls hit op.
func (p *Paper) Count(op Op) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// OraclePrice returns the last 18-decimal price pushed to the oracle.
func (p *Paper) OraclePrice() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.oraclePrice)
}

// SetPoolPrice moves a pool's price directly, outside any transaction.
func (p *Paper) SetPoolPrice(id sim.PoolID, sqrtPriceX96 *uint256.Int) error {
	tick, err := tickmath.TickAtSqrtPriceX96(sqrtPriceX96)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.pools[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, id.Hex())
	}
	pl.sqrtPrice.Set(sqrtPriceX96)
	pl.tick = tick
	return nil
}

func (p *Paper) fault(op Op) error {
	if err, ok := p.faults[op]; ok {
		return err
	}
	return nil
}

// include checks and consumes tx's nonce. Callers hold p.mu.
func (p *Paper) include(ctx context.Context, op Op, tx sim.Tx) (sim.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return sim.Confirmation{}, err
	}
	if err := p.fault(op); err != nil {
		return sim.Confirmation{}, err
	}
	if want := p.nonces[tx.From]; tx.Nonce != want {
		return sim.Confirmation{}, fmt.Errorf("%w: %s sent %d, expected %d", ErrStaleNonce, tx.From.Hex(), tx.Nonce, want)
	}
	p.nonces[tx.From]++
	p.block++
	return sim.Confirmation{TxHash: txHash(tx), Block: p.block}, nil
}

func txHash(tx sim.Tx) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], tx.Nonce)
	return crypto.Keccak256Hash(tx.From.Bytes(), n[:])
}

func revert(conf sim.Confirmation, reason string) sim.Confirmation {
	conf.Reverted = true
	conf.Reason = reason
	return conf
}

func (p *Paper) log(c Call) { p.calls = append(p.calls, c) }

// NextSequenceNumber returns how many calls from identity were included.
func (p *Paper) NextSequenceNumber(ctx context.Context, identity common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := p.fault(OpNextSequence); err != nil {
		return 0, err
	}
	return p.nonces[identity], nil
}

// SubmitPriceUpdate sets the oracle price.
func (p *Paper) SubmitPriceUpdate(ctx context.Context, tx sim.Tx, price *big.Int) (sim.Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conf, err := p.include(ctx, OpPriceUpdate, tx)
	if err != nil {
		return conf, err
	}
	call := Call{Op: OpPriceUpdate, From: tx.From, Nonce: tx.Nonce}
	if price == nil || price.Sign() <= 0 {
		call.Reverted = true
		p.log(call)
		return revert(conf, "price must be positive"), nil
	}
	p.oraclePrice = new(big.Int).Set(price)
	p.log(call)
	return conf, nil
}

// PoolState returns the pool's price, tick, fee and spacing.
func (p *Paper) PoolState(ctx context.Context, id sim.PoolID) (sim.PoolState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return sim.PoolState{}, err
	}
	if err := p.fault(OpPoolState); err != nil {
		return sim.PoolState{}, err
	}
	pl, ok := p.pools[id]
	if !ok {
		return sim.PoolState{}, fmt.Errorf("%w: %s", ErrUnknownPool, id.Hex())
	}
	p.log(Call{Op: OpPoolState, Pool: id, Tick: pl.tick})
	return sim.PoolState{
		SqrtPriceX96: pl.sqrtPrice,
		Tick:         pl.tick,
		Fee:          pl.key.Fee,
		TickSpacing:  pl.key.TickSpacing,
	}, nil
}

// TickLiquidity returns the liquidity in range at tick.
func (p *Paper) TickLiquidity(ctx context.Context, id sim.PoolID, tick int32) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.fault(OpTickLiquidity); err != nil {
		return nil, err
	}
	pl, ok := p.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, id.Hex())
	}
	p.log(Call{Op: OpTickLiquidity, Pool: id, Tick: tick})
	return pl.liquidityAt(tick), nil
}

func (pl *pool) liquidityAt(tick int32) *big.Int {
	sum := new(big.Int)
	for t, net := range pl.liquidityNet {
		if t <= tick {
			sum.Add(sum, net)
		}
	}
	return sum
}

// SubmitSwap trades against the liquidity active at the current tick. The swap
// reverts if the pool moved away from SqrtPriceLimitX96 since it was quoted.
func (p *Paper) SubmitSwap(ctx context.Context, tx sim.Tx, id sim.PoolID, swap sim.SwapParams) (sim.Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conf, err := p.include(ctx, OpSwap, tx)
	if err != nil {
		return conf, err
	}
	call := Call{Op: OpSwap, From: tx.From, Nonce: tx.Nonce, Pool: id}
	pl, ok := p.pools[id]
	if !ok {
		call.Reverted = true
		p.log(call)
		return revert(conf, "pool not initialized"), nil
	}
	if !swap.SqrtPriceLimitX96.IsZero() && !swap.SqrtPriceLimitX96.Eq(&pl.sqrtPrice) {
		call.Reverted = true
		p.log(call)
		return revert(conf, "price moved since quote"), nil
	}

	next, reason := pl.swapPrice(swap)
	if reason != "" {
		call.Reverted = true
		p.log(call)
		return revert(conf, reason), nil
	}
	if next != nil {
		tick, err := tickmath.TickAtSqrtPriceX96(next)
		if err != nil {
			call.Reverted = true
			p.log(call)
			return revert(conf, err.Error()), nil
		}
		pl.sqrtPrice.Set(next)
		pl.tick = tick
	}
	call.Tick = pl.tick
	p.log(call)
	return conf, nil
}

// swapPrice returns the post-swap sqrt price, or nil when the price does not move.
func (pl *pool) swapPrice(swap sim.SwapParams) (*uint256.Int, string) {
	if swap.Amount.IsZero() {
		return nil, ""
	}
	liquidity := tickmath.BigToFloat(pl.liquidityAt(pl.tick))
	if liquidity <= 0 {
		return nil, ""
	}
	price, err := tickmath.SqrtPriceX96ToPrice(&pl.sqrtPrice)
	if err != nil {
		return nil, err.Error()
	}
	amountIn := tickmath.BigToFloat(swap.Amount.ToBig()) * (1 - float64(pl.key.Fee)/1e6)

	s := math.Sqrt(price)
	if swap.ZeroForOne {
		s = liquidity * s / (liquidity + amountIn*s)
	} else {
		s += amountIn / liquidity
	}
	next, err := tickmath.SqrtPriceX96FromPrice(s * s)
	if err != nil {
		return nil, err.Error()
	}
	return next, ""
}

// SubmitLiquidityChange adds or removes a position's liquidity.
func (p *Paper) SubmitLiquidityChange(ctx context.Context, tx sim.Tx, id sim.PoolID, change sim.LiquidityParams) (sim.Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conf, err := p.include(ctx, OpLiquidityChange, tx)
	if err != nil {
		return conf, err
	}
	call := Call{Op: OpLiquidityChange, From: tx.From, Nonce: tx.Nonce, Pool: id, Tick: change.TickLower}
	reject := func(reason string) (sim.Confirmation, error) {
		call.Reverted = true
		p.log(call)
		return revert(conf, reason), nil
	}

	pl, ok := p.pools[id]
	if !ok {
		return reject("pool not initialized")
	}
	if change.LiquidityDelta == nil || change.LiquidityDelta.Sign() == 0 {
		return reject("zero liquidity delta")
	}
	if change.TickLower >= change.TickUpper {
		return reject("tick range empty")
	}
	if change.TickLower%pl.key.TickSpacing != 0 || change.TickUpper%pl.key.TickSpacing != 0 {
		return reject("ticks not aligned to spacing")
	}

	key := positionKey{owner: tx.From, lower: change.TickLower, upper: change.TickUpper}
	current, ok := pl.positions[key]
	if !ok {
		current = new(big.Int)
	}
	updated := new(big.Int).Add(current, change.LiquidityDelta)
	if updated.Sign() < 0 {
		return reject("insufficient position liquidity")
	}
	if updated.Sign() == 0 {
		delete(pl.positions, key)
	} else {
		pl.positions[key] = updated
	}
	pl.addNet(change.TickLower, change.LiquidityDelta)
	pl.addNet(change.TickUpper, new(big.Int).Neg(change.LiquidityDelta))
	p.log(call)
	return conf, nil
}

func (pl *pool) addNet(tick int32, delta *big.Int) {
	net, ok := pl.liquidityNet[tick]
	if !ok {
		net = new(big.Int)
		pl.liquidityNet[tick] = net
	}
	net.Add(net, delta)
	if net.Sign() == 0 {
		delete(pl.liquidityNet, tick)
	}
}

// Deploy creates two tokens, the pool manager, the fetcher and the oracle, then
// initializes the pool at cfg.SqrtPriceX96. Every step is a separate admin call.
func (p *Paper) Deploy(ctx context.Context, admin *sim.Handle, cfg sim.Config) (sim.Deployment, error) {
	if err := cfg.Validate(); err != nil {
		return sim.Deployment{}, err
	}
	contracts := make([]common.Address, 0, 5)
	for _, name := range []string{"token", "token", "manager", "fetcher", "oracle"} {
		var addr common.Address
		if _, err := admin.Submit(ctx, "deploy_"+name, func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			conf, err := p.include(ctx, OpDeploy, tx)
			if err != nil {
				return conf, err
			}
			addr = crypto.CreateAddress(tx.From, tx.Nonce)
			p.log(Call{Op: OpDeploy, From: tx.From, Nonce: tx.Nonce})
			return conf, nil
		}); err != nil {
			return sim.Deployment{}, err
		}
		contracts = append(contracts, addr)
	}

	token0, token1 := contracts[0], contracts[1]
	if bytes.Compare(token0.Bytes(), token1.Bytes()) > 0 {
		token0, token1 = token1, token0
	}
	key := sim.PoolKey{
		Currency0:   token0,
		Currency1:   token1,
		Fee:         cfg.PoolFee,
		TickSpacing: cfg.TickSpacing,
		Hooks:       cfg.Hooks,
	}
	d := sim.Deployment{
		Pool:    key.ID(),
		Key:     key,
		Manager: contracts[2],
		Fetcher: contracts[3],
		Oracle:  contracts[4],
	}

	tick, err := tickmath.TickAtSqrtPriceX96(cfg.SqrtPriceX96)
	if err != nil {
		return sim.Deployment{}, fmt.Errorf("%w: initial price: %v", sim.ErrConfiguration, err)
	}
	price, _ := tickmath.SqrtPriceX96ToPrice(cfg.SqrtPriceX96)
	oracle, err := sim.OraclePrice(price)
	if err != nil {
		return sim.Deployment{}, err
	}

	if _, err := admin.Submit(ctx, "initialize", func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		conf, err := p.include(ctx, OpInitialize, tx)
		if err != nil {
			return conf, err
		}
		call := Call{Op: OpInitialize, From: tx.From, Nonce: tx.Nonce, Pool: d.Pool, Tick: tick}
		if _, exists := p.pools[d.Pool]; exists {
			call.Reverted = true
			p.log(call)
			return revert(conf, "pool already initialized"), nil
		}
		pl := &pool{
			key:          key,
			tick:         tick,
			liquidityNet: make(map[int32]*big.Int),
			positions:    make(map[positionKey]*big.Int),
		}
		pl.sqrtPrice.Set(cfg.SqrtPriceX96)
		p.pools[d.Pool] = pl
		p.oraclePrice = oracle
		p.log(call)
		return conf, nil
	}); err != nil {
		return sim.Deployment{}, err
	}
	return d, nil
}
