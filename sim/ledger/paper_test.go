package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/tickmath"
)

type fixture struct {
	paper *Paper
	keys  *sim.Keyring
	seq   *sim.Sequencer
	admin *sim.Handle
	agent *sim.Handle
	d     sim.Deployment
}

func deployed(t *testing.T) *fixture {
	t.Helper()
	p := NewPaper()
	keys, err := sim.NewKeyring(21, 2)
	require.NoError(t, err)
	seq := sim.NewSequencer(p)
	agentID, _ := keys.At(1)
	f := &fixture{
		paper: p,
		keys:  keys,
		seq:   seq,
		admin: sim.NewHandle(keys.Admin(), p, seq, time.Second),
		agent: sim.NewHandle(agentID, p, seq, time.Second),
	}
	f.d, err = p.Deploy(context.Background(), f.admin, sim.DefaultConfig(1))
	require.NoError(t, err)
	return f
}

func (f *fixture) liquidity(t *testing.T, delta int64, lower, upper int32) error {
	t.Helper()
	_, err := f.agent.Submit(context.Background(), string(OpLiquidityChange), func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
		return f.paper.SubmitLiquidityChange(ctx, tx, f.d.Pool, sim.LiquidityParams{TickLower: lower, TickUpper: upper, LiquidityDelta: big.NewInt(delta)})
	})
	return err
}

func (f *fixture) swap(t *testing.T, amount uint64, zeroForOne bool, limit *uint256.Int) error {
	t.Helper()
	_, err := f.admin.Submit(context.Background(), string(OpSwap), func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
		return f.paper.SubmitSwap(ctx, tx, f.d.Pool, sim.SwapParams{Amount: *uint256.NewInt(amount), ZeroForOne: zeroForOne, SqrtPriceLimitX96: *limit})
	})
	return err
}

func (f *fixture) state(t *testing.T) sim.PoolState {
	t.Helper()
	s, err := f.paper.PoolState(context.Background(), f.d.Pool)
	require.NoError(t, err)
	return s
}

func TestPaper_Deploy(t *testing.T) {
	f := deployed(t)

	assert.Equal(t, f.d.Key.ID(), f.d.Pool)
	assert.Negative(t, bytes.Compare(f.d.Key.Currency0.Bytes(), f.d.Key.Currency1.Bytes()), "currencies sorted")
	assert.NotEqual(t, f.d.Manager, f.d.Fetcher)
	assert.Equal(t, 5, f.paper.Count(OpDeploy))
	assert.Equal(t, 1, f.paper.Count(OpInitialize))

	s := f.state(t)
	assert.Equal(t, int32(0), s.Tick)
	assert.True(t, s.SqrtPriceX96.Eq(tickmath.Q96))
	assert.Equal(t, uint32(3000), s.Fee)
	assert.Equal(t, int32(60), s.TickSpacing)
	assert.Equal(t, "1000000000000000000", f.paper.OraclePrice().String())

	n, err := f.paper.NextSequenceNumber(context.Background(), f.keys.Admin().Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), n)
}

func TestPaper_Deploy_RejectsInvalidConfig(t *testing.T) {
	p := NewPaper()
	keys, _ := sim.NewKeyring(1, 1)
	admin := sim.NewHandle(keys.Admin(), p, sim.NewSequencer(p), time.Second)
	cfg := sim.DefaultConfig(1)
	cfg.TickSpacing = 0

	_, err := p.Deploy(context.Background(), admin, cfg)
	assert.ErrorIs(t, err, sim.ErrConfiguration)
	assert.Empty(t, p.Calls())
}

func TestPaper_RejectsStaleNonce(t *testing.T) {
	f := deployed(t)
	agent, _ := f.keys.At(1)

	_, err := f.paper.SubmitPriceUpdate(context.Background(), sim.Tx{From: agent.Address, Nonce: 3}, big.NewInt(1))

	assert.ErrorIs(t, err, ErrStaleNonce)
	n, _ := f.paper.NextSequenceNumber(context.Background(), agent.Address)
	assert.Equal(t, uint64(0), n, "rejected call consumes nothing")
}

func TestPaper_PriceUpdate(t *testing.T) {
	f := deployed(t)
	push := func(price *big.Int) (sim.Confirmation, error) {
		return f.admin.Submit(context.Background(), string(OpPriceUpdate), func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
			return f.paper.SubmitPriceUpdate(ctx, tx, price)
		})
	}

	_, err := push(big.NewInt(1_500_000_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", f.paper.OraclePrice().String())

	conf, err := push(big.NewInt(0))
	assert.ErrorIs(t, err, sim.ErrReverted)
	assert.True(t, conf.Reverted)
	assert.Equal(t, "1500000000000000000", f.paper.OraclePrice().String(), "reverted call changes nothing")
	assert.Equal(t, 2, f.paper.Count(OpPriceUpdate))
}

func TestPaper_LiquidityChanges(t *testing.T) {
	f := deployed(t)
	ctx := context.Background()
	at := func(tick int32) string {
		l, err := f.paper.TickLiquidity(ctx, f.d.Pool, tick)
		require.NoError(t, err)
		return l.String()
	}

	require.NoError(t, f.liquidity(t, 1000, -60, 60))
	require.NoError(t, f.liquidity(t, 500, 0, 120))
	assert.Equal(t, "0", at(-61))
	assert.Equal(t, "1000", at(-60))
	assert.Equal(t, "1500", at(0))
	assert.Equal(t, "1500", at(59))
	assert.Equal(t, "500", at(60))
	assert.Equal(t, "0", at(120))

	// cannot withdraw more than the position holds
	assert.ErrorIs(t, f.liquidity(t, -1001, -60, 60), sim.ErrReverted)
	assert.ErrorIs(t, f.liquidity(t, 1, -59, 60), sim.ErrReverted)
	assert.ErrorIs(t, f.liquidity(t, 1, 60, 60), sim.ErrReverted)

	require.NoError(t, f.liquidity(t, -1000, -60, 60))
	assert.Equal(t, "0", at(-60))
	assert.Equal(t, "500", at(0))
}

func TestPaper_Swap_MovesPrice(t *testing.T) {
	tests := []struct {
		name       string
		zeroForOne bool
		up         bool
	}{
		{"one for zero raises the price", false, true},
		{"zero for one lowers the price", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := deployed(t)
			require.NoError(t, f.liquidity(t, 1_000_000_000_000_000_000, -887220, 887220))
			before := f.state(t)

			require.NoError(t, f.swap(t, 1_000_000_000_000_000, tt.zeroForOne, &before.SqrtPriceX96))

			after := f.state(t)
			if tt.up {
				assert.Equal(t, 1, after.SqrtPriceX96.Cmp(&before.SqrtPriceX96))
				// sqrt price grows by 0.997e15/1e18
				assert.Equal(t, int32(19), after.Tick)
			} else {
				assert.Equal(t, -1, after.SqrtPriceX96.Cmp(&before.SqrtPriceX96))
				assert.Equal(t, int32(-20), after.Tick)
			}
		})
	}
}

func TestPaper_Swap_NoMove(t *testing.T) {
	f := deployed(t)
	before := f.state(t)

	// no liquidity in range
	require.NoError(t, f.swap(t, 1000, false, &before.SqrtPriceX96))
	assert.Equal(t, before, f.state(t))

	// zero amount
	require.NoError(t, f.liquidity(t, 1_000_000, -60, 60))
	require.NoError(t, f.swap(t, 0, true, &before.SqrtPriceX96))
	assert.Equal(t, before, f.state(t))
}

func TestPaper_Swap_RevertsWhenPriceMoved(t *testing.T) {
	f := deployed(t)
	stale := f.state(t).SqrtPriceX96
	moved, err := tickmath.SqrtPriceX96AtTick(600)
	require.NoError(t, err)
	require.NoError(t, f.paper.SetPoolPrice(f.d.Pool, moved))
	assert.Equal(t, int32(600), f.state(t).Tick)

	err = f.swap(t, 10, true, &stale)
	assert.ErrorIs(t, err, sim.ErrReverted)
	assert.Contains(t, err.Error(), "price moved")
}

func TestPaper_TickMatchesSqrtPriceFarFromZero(t *testing.T) {
	f := deployed(t)
	for _, tick := range []int32{4774, 50000, -50000, 600000} {
		sqrt, err := tickmath.SqrtPriceX96AtTick(tick)
		require.NoError(t, err)
		require.NoError(t, f.paper.SetPoolPrice(f.d.Pool, sqrt))
		assert.Equal(t, tick, f.state(t).Tick, "tick %d", tick)
	}
}

func TestPaper_FaultsAndUnknownPool(t *testing.T) {
	f := deployed(t)
	ctx := context.Background()
	boom := errors.New("injected")

	f.paper.FailOn(OpPoolState, boom)
	_, err := f.paper.PoolState(ctx, f.d.Pool)
	assert.ErrorIs(t, err, boom)
	f.paper.FailOn(OpPoolState, nil)
	_, err = f.paper.PoolState(ctx, f.d.Pool)
	assert.NoError(t, err)

	_, err = f.paper.PoolState(ctx, sim.PoolID{})
	assert.ErrorIs(t, err, ErrUnknownPool)
	_, err = f.paper.TickLiquidity(ctx, sim.PoolID{}, 0)
	assert.ErrorIs(t, err, ErrUnknownPool)
	assert.ErrorIs(t, f.paper.SetPoolPrice(sim.PoolID{}, tickmath.Q96), ErrUnknownPool)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.paper.PoolState(cancelled, f.d.Pool)
	assert.ErrorIs(t, err, context.Canceled)
}
