package sim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/internal/testutil"
)

func newFake() *testutil.FakeLedger {
	return testutil.NewFakeLedger(sim.PoolState{
		SqrtPriceX96: *new(uint256.Int).Lsh(uint256.NewInt(1), 96),
		Fee:          3000,
		TickSpacing:  60,
	})
}

func swapVia(fake *testutil.FakeLedger) sim.SendFunc {
	return func(ctx context.Context, tx sim.Tx) (sim.Confirmation, error) {
		return fake.SubmitSwap(ctx, tx, fake.Pool, sim.SwapParams{})
	}
}

func TestSequencer_NeverGoesBackwards(t *testing.T) {
	// GIVEN a ledger that has not seen any submission yet
	fake := newFake()
	keys, err := sim.NewKeyring(1, 2)
	require.NoError(t, err)
	addr := keys.Admin().Address
	seq := sim.NewSequencer(fake)
	ctx := context.Background()

	// WHEN two numbers are taken before anything lands
	n0, err := seq.Next(ctx, addr)
	require.NoError(t, err)
	n1, err := seq.Next(ctx, addr)
	require.NoError(t, err)

	// THEN the local counter wins over the lagging ledger
	assert.Equal(t, uint64(0), n0)
	assert.Equal(t, uint64(1), n1)

	// releasing a stale number is ignored, releasing the latest one reuses it
	seq.Release(addr, 0)
	n2, _ := seq.Next(ctx, addr)
	assert.Equal(t, uint64(2), n2)
	seq.Release(addr, 2)
	n2again, _ := seq.Next(ctx, addr)
	assert.Equal(t, uint64(2), n2again)

	// identities are independent
	other, _ := keys.At(1)
	m0, _ := seq.Next(ctx, other.Address)
	assert.Equal(t, uint64(0), m0)
}

func TestSequencer_FollowsLedgerAhead(t *testing.T) {
	fake := newFake()
	keys, _ := sim.NewKeyring(1, 1)
	addr := keys.Admin().Address
	fake.Nonces[addr] = 7

	n, err := sim.NewSequencer(fake).Next(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}

func TestSequencer_LedgerFailure(t *testing.T) {
	fake := newFake()
	fake.Errs[testutil.OpNextSequence] = errors.New("rpc down")
	keys, _ := sim.NewKeyring(1, 1)

	_, err := sim.NewSequencer(fake).Next(context.Background(), keys.Admin().Address)
	assert.ErrorIs(t, err, sim.ErrLedgerCallFailed)
}

func TestHandle_Submit_SequencesCalls(t *testing.T) {
	fake := newFake()
	keys, _ := sim.NewKeyring(1, 1)
	h := sim.NewHandle(keys.Admin(), fake, sim.NewSequencer(fake), time.Second)

	for i := 0; i < 3; i++ {
		conf, err := h.Submit(context.Background(), testutil.OpSwap, swapVia(fake))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), conf.Block)
	}

	calls := fake.CallsFor(testutil.OpSwap)
	require.Len(t, calls, 3)
	for i, c := range calls {
		assert.Equal(t, uint64(i), c.Nonce)
		assert.Equal(t, keys.Admin().Address, c.From)
	}
	assert.Equal(t, keys.Admin(), h.Identity())
	assert.Same(t, fake, h.Ledger())
}

func TestHandle_Submit_Revert(t *testing.T) {
	fake := newFake()
	fake.Revert[testutil.OpSwap] = "price moved"
	keys, _ := sim.NewKeyring(1, 1)
	h := sim.NewHandle(keys.Admin(), fake, sim.NewSequencer(fake), time.Second)

	conf, err := h.Submit(context.Background(), testutil.OpSwap, swapVia(fake))

	assert.True(t, conf.Reverted)
	assert.ErrorIs(t, err, sim.ErrLedgerCallFailed)
	assert.ErrorIs(t, err, sim.ErrReverted)
	assert.Contains(t, err.Error(), "price moved")
}

func TestHandle_Submit_RejectedCallReleasesNonce(t *testing.T) {
	// GIVEN a ledger that refuses the first swap
	fake := newFake()
	fake.Errs[testutil.OpSwap] = errors.New("connection reset")
	keys, _ := sim.NewKeyring(1, 1)
	h := sim.NewHandle(keys.Admin(), fake, sim.NewSequencer(fake), time.Second)

	_, err := h.Submit(context.Background(), testutil.OpSwap, swapVia(fake))
	require.ErrorIs(t, err, sim.ErrLedgerCallFailed)

	var le *sim.LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, testutil.OpSwap, le.Op)
	assert.Equal(t, keys.Admin().Address, le.Identity)

	// WHEN the ledger recovers
	delete(fake.Errs, testutil.OpSwap)
	_, err = h.Submit(context.Background(), testutil.OpSwap, swapVia(fake))
	require.NoError(t, err)

	// THEN the retried call reuses nonce 0
	calls := fake.CallsFor(testutil.OpSwap)
	require.Len(t, calls, 1)
	assert.Equal(t, uint64(0), calls[0].Nonce)
}

func TestHandle_Submit_Timeout(t *testing.T) {
	fake := newFake()
	fake.Hang[testutil.OpSwap] = true
	keys, _ := sim.NewKeyring(1, 1)
	seq := sim.NewSequencer(fake)
	h := sim.NewHandle(keys.Admin(), fake, seq, 10*time.Millisecond)

	_, err := h.Submit(context.Background(), testutil.OpSwap, swapVia(fake))

	assert.ErrorIs(t, err, sim.ErrConfirmationTimeout)
	assert.NotErrorIs(t, err, sim.ErrLedgerCallFailed)
	// the timed-out call may still land, so its nonce is not reused
	next, _ := seq.Next(context.Background(), keys.Admin().Address)
	assert.Equal(t, uint64(1), next)
}

func TestHandle_Submit_CancelledContext(t *testing.T) {
	fake := newFake()
	fake.Hang[testutil.OpSwap] = true
	keys, _ := sim.NewKeyring(1, 1)
	h := sim.NewHandle(keys.Admin(), fake, sim.NewSequencer(fake), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Submit(ctx, testutil.OpSwap, swapVia(fake))

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, sim.ErrLedgerCallFailed)
}
