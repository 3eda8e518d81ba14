package strategy

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/ledger"
	"github.com/arena-sim/arena/sim/tickmath"
)

type harness struct {
	paper  *ledger.Paper
	engine *sim.Engine
	agent  sim.Identity
	d      sim.Deployment
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	paper := ledger.NewPaper()
	keys, err := sim.NewKeyring(8, 2)
	require.NoError(t, err)
	seq := sim.NewSequencer(paper)
	cfg := sim.DefaultConfig(1)
	cfg.ConfirmTimeout = time.Second
	d, err := paper.Deploy(context.Background(), sim.NewHandle(keys.Admin(), paper, seq, cfg.ConfirmTimeout), cfg)
	require.NoError(t, err)
	agent, _ := keys.At(1)
	engine, err := sim.NewEngine(d, cfg, paper, seq, keys).Bind(agent)
	require.NoError(t, err)
	return &harness{paper: paper, engine: engine, agent: agent, d: d}
}

func (h *harness) signal(t *testing.T) sim.Signal {
	t.Helper()
	state, err := h.paper.PoolState(context.Background(), h.d.Pool)
	require.NoError(t, err)
	return sim.NewSignal(1, state, 0, true, h.d)
}

func (h *harness) liquidityAt(t *testing.T, tick int32) string {
	t.Helper()
	l, err := h.paper.TickLiquidity(context.Background(), h.d.Pool, tick)
	require.NoError(t, err)
	return l.String()
}

func TestFullRange(t *testing.T) {
	tests := []struct {
		spacing      int32
		lower, upper int32
	}{
		{1, tickmath.MinTick, tickmath.MaxTick},
		{60, -887220, 887220},
		{200, -887200, 887200},
	}
	for _, tt := range tests {
		lower, upper := FullRange(tt.spacing)
		assert.Equal(t, tt.lower, lower, "spacing %d", tt.spacing)
		assert.Equal(t, tt.upper, upper, "spacing %d", tt.spacing)
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		tick, spacing, halfWidth int32
		lower, upper             int32
	}{
		{0, 60, 2, -120, 180},
		{59, 60, 1, -60, 120},
		{-1, 60, 0, -60, 0},
		{-60, 60, 0, -60, 0},
		{887000, 60, 5, 886560, 887220},
		{-887100, 60, 5, -887220, -886560},
		{887250, 60, 0, 887160, 887220},
		{-887250, 60, 0, -887220, -887160},
		{0, 60, 20000, -887220, 887220},
	}
	for _, tt := range tests {
		lower, upper := Band(tt.tick, tt.spacing, tt.halfWidth)
		assert.Equal(t, tt.lower, lower, "tick %d", tt.tick)
		assert.Equal(t, tt.upper, upper, "tick %d", tt.tick)
	}
}

func TestStaticLiquidity_AddsOnceAtInit(t *testing.T) {
	h := newHarness(t)
	s := &StaticLiquidity{Liquidity: big.NewInt(5000), FullRange: true}

	require.NoError(t, s.Init(context.Background(), h.agent, h.signal(t), h.engine))
	require.NoError(t, s.Process(context.Background(), h.agent, h.signal(t), h.engine))

	assert.Equal(t, "5000", h.liquidityAt(t, 0))
	assert.Equal(t, "5000", h.liquidityAt(t, -887220))
	assert.Equal(t, 1, h.paper.Count(ledger.OpLiquidityChange))
}

func TestStaticLiquidity_ExplicitRange(t *testing.T) {
	h := newHarness(t)
	s := &StaticLiquidity{Liquidity: big.NewInt(7), TickLower: -600, TickUpper: 600}

	require.NoError(t, s.Init(context.Background(), h.agent, h.signal(t), h.engine))
	assert.Equal(t, "7", h.liquidityAt(t, 0))
	assert.Equal(t, "0", h.liquidityAt(t, 600))

	bad := &StaticLiquidity{Liquidity: big.NewInt(7), TickLower: -50, TickUpper: 600}
	assert.ErrorIs(t, bad.Init(context.Background(), h.agent, h.signal(t), h.engine), sim.ErrInvalidNumericInput)
}

func TestRangeRebalancer_FollowsTick(t *testing.T) {
	// GIVEN a rebalancer placed around tick 0
	h := newHarness(t)
	r := &RangeRebalancer{Liquidity: big.NewInt(100), HalfWidth: 1}
	require.NoError(t, r.Init(context.Background(), h.agent, h.signal(t), h.engine))
	lower, upper, placed := r.Range()
	require.True(t, placed)
	assert.Equal(t, int32(-60), lower)
	assert.Equal(t, int32(120), upper)

	// WHEN the tick stays inside the band nothing changes
	require.NoError(t, r.Process(context.Background(), h.agent, h.signal(t), h.engine))
	assert.Equal(t, 0, r.Rebalances())
	assert.Equal(t, 1, h.paper.Count(ledger.OpLiquidityChange))

	// WHEN the pool moves to tick 600
	moved, err := tickmath.SqrtPriceX96AtTick(600)
	require.NoError(t, err)
	require.NoError(t, h.paper.SetPoolPrice(h.d.Pool, moved))
	require.NoError(t, r.Process(context.Background(), h.agent, h.signal(t), h.engine))

	// THEN the old band is withdrawn and a new one placed around 600
	assert.Equal(t, 1, r.Rebalances())
	lower, upper, _ = r.Range()
	assert.Equal(t, int32(540), lower)
	assert.Equal(t, int32(720), upper)
	assert.Equal(t, "0", h.liquidityAt(t, 0))
	assert.Equal(t, "100", h.liquidityAt(t, 600))
	assert.Equal(t, 3, h.paper.Count(ledger.OpLiquidityChange))
}

func TestRangeRebalancer_TopOfRangeKeepsNonEmptyBand(t *testing.T) {
	// GIVEN a zero-width rebalancer and a pool in the topmost spacing
	h := newHarness(t)
	r := &RangeRebalancer{Liquidity: big.NewInt(10)}
	require.NoError(t, r.Init(context.Background(), h.agent, h.signal(t), h.engine))
	top, err := tickmath.SqrtPriceX96AtTick(887250)
	require.NoError(t, err)
	require.NoError(t, h.paper.SetPoolPrice(h.d.Pool, top))

	// WHEN it processes twice
	require.NoError(t, r.Process(context.Background(), h.agent, h.signal(t), h.engine))
	require.NoError(t, r.Process(context.Background(), h.agent, h.signal(t), h.engine))

	// THEN the band is shifted below the top and placed only once
	lower, upper, placed := r.Range()
	assert.True(t, placed)
	assert.Equal(t, int32(887160), lower)
	assert.Equal(t, int32(887220), upper)
	assert.Equal(t, 1, r.Rebalances())
	assert.Equal(t, 3, h.paper.Count(ledger.OpLiquidityChange))
}

func TestRangeRebalancer_RejectsNegativeWidth(t *testing.T) {
	h := newHarness(t)
	r := &RangeRebalancer{Liquidity: big.NewInt(1), HalfWidth: -1}
	assert.ErrorIs(t, r.Init(context.Background(), h.agent, h.signal(t), h.engine), sim.ErrConfiguration)
}

func TestNoOp(t *testing.T) {
	h := newHarness(t)
	var s NoOp
	assert.NoError(t, s.Init(context.Background(), h.agent, h.signal(t), h.engine))
	assert.NoError(t, s.Process(context.Background(), h.agent, h.signal(t), h.engine))
	assert.Zero(t, h.paper.Count(ledger.OpLiquidityChange))
	assert.Equal(t, NameNoOp, s.Name())
}
