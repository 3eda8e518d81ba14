package sim

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxTickSpacing is the largest tick spacing a pool accepts.
const MaxTickSpacing = 32767

// feeDenominator is the unit of PoolKey.Fee: hundredths of a basis point.
const feeDenominator = 1_000_000

// Config is the flat run configuration. It is read once at Run entry; nothing
// changes mid-run.
type Config struct {
	Steps          uint64         // number of steps to run after initialization
	PoolFee        uint32         // LP fee in hundredths of a bip (3000 = 0.30%)
	ManagerFee     uint32         // protocol fee taken by the pool manager, same unit
	TickSpacing    int32          // 1..MaxTickSpacing
	SqrtPriceX96   *uint256.Int   // initial pool price (Q64.96)
	HookData       []byte         // passed through to pool initialization
	Hooks          common.Address // hook contract, zero for none
	ConfirmTimeout time.Duration  // per-submission confirmation wait; 0 waits on ctx only
}

// DefaultConfig returns a 0.30% pool with tick spacing 60 priced at 1.0.
func DefaultConfig(steps uint64) Config {
	return Config{
		Steps:          steps,
		PoolFee:        3000,
		TickSpacing:    60,
		SqrtPriceX96:   new(uint256.Int).Lsh(uint256.NewInt(1), 96),
		ConfirmTimeout: 30 * time.Second,
	}
}

// Validate checks field ranges. All failures wrap ErrConfiguration.
func (c Config) Validate() error {
	if c.TickSpacing <= 0 || c.TickSpacing > MaxTickSpacing {
		return fmt.Errorf("%w: tick spacing %d outside [1, %d]", ErrConfiguration, c.TickSpacing, MaxTickSpacing)
	}
	if c.PoolFee >= feeDenominator {
		return fmt.Errorf("%w: pool fee %d must be below %d", ErrConfiguration, c.PoolFee, feeDenominator)
	}
	if c.ManagerFee >= feeDenominator {
		return fmt.Errorf("%w: manager fee %d must be below %d", ErrConfiguration, c.ManagerFee, feeDenominator)
	}
	if c.SqrtPriceX96 == nil || c.SqrtPriceX96.IsZero() {
		return fmt.Errorf("%w: initial sqrt price must be positive", ErrConfiguration)
	}
	if c.ConfirmTimeout < 0 {
		return fmt.Errorf("%w: negative confirm timeout %v", ErrConfiguration, c.ConfirmTimeout)
	}
	return nil
}
