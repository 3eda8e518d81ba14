package sim

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Tx carries the sender and sequence number attached to a ledger submission.
type Tx struct {
	From  common.Address
	Nonce uint64
}

// Confirmation is returned once a submission has been included by the ledger.
// A reverted call is still included (its nonce is consumed) but has no effect.
type Confirmation struct {
	TxHash   common.Hash
	Block    uint64
	Reverted bool
	Reason   string
}

// SwapParams describes a swap against a pool.
type SwapParams struct {
	Amount     uint256.Int
	ZeroForOne bool
	// SqrtPriceLimitX96 is the pool price the trade was sized against.
	SqrtPriceLimitX96 uint256.Int
}

// LiquidityParams describes a liquidity change across [TickLower, TickUpper).
type LiquidityParams struct {
	TickLower      int32
	TickUpper      int32
	LiquidityDelta *big.Int // negative removes liquidity
	HookData       []byte
}

// Ledger is the external service holding pool state. Submissions block until the
// call is confirmed or ctx is done.
type Ledger interface {
	// SubmitPriceUpdate pushes an 18-decimal fixed-point reference price to the price oracle.
	SubmitPriceUpdate(ctx context.Context, tx Tx, price *big.Int) (Confirmation, error)
	PoolState(ctx context.Context, pool PoolID) (PoolState, error)
	// TickLiquidity returns the liquidity available at tick.
	TickLiquidity(ctx context.Context, pool PoolID, tick int32) (*big.Int, error)
	SubmitSwap(ctx context.Context, tx Tx, pool PoolID, swap SwapParams) (Confirmation, error)
	SubmitLiquidityChange(ctx context.Context, tx Tx, pool PoolID, change LiquidityParams) (Confirmation, error)
	// NextSequenceNumber returns the number of calls confirmed for identity so far.
	NextSequenceNumber(ctx context.Context, identity common.Address) (uint64, error)
}

// Deployer creates and initializes the pool and its companion contracts. The admin
// handle pays for and sequences every deployment call.
type Deployer interface {
	Deploy(ctx context.Context, admin *Handle, cfg Config) (Deployment, error)
}
