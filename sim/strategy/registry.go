package strategy

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/arena-sim/arena/sim"
)

const (
	NameNoOp       = "noop"
	NameStatic     = "static"
	NameRebalancer = "rebalancer"
)

// ValidNames is the set of recognized strategy names.
// Shared by Spec.Validate() and New() to avoid duplication.
var ValidNames = map[string]bool{NameNoOp: true, NameStatic: true, NameRebalancer: true}

// Names returns the recognized strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(ValidNames))
	for n := range ValidNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Spec describes one strategy in a run file.
type Spec struct {
	Name string `yaml:"name"`
	// Liquidity is a decimal integer; scientific notation such as "1e18" is accepted.
	Liquidity string `yaml:"liquidity"`
	TickLower int32  `yaml:"tick_lower"`
	TickUpper int32  `yaml:"tick_upper"`
	FullRange bool   `yaml:"full_range"`
	HalfWidth int32  `yaml:"half_width"`
}

// Validate checks the name and the fields that name needs.
func (s Spec) Validate() error {
	if !ValidNames[s.Name] {
		return fmt.Errorf("%w: unknown strategy %q; valid options: %v", sim.ErrConfiguration, s.Name, Names())
	}
	if s.Name == NameNoOp {
		return nil
	}
	if _, err := s.liquidity(); err != nil {
		return err
	}
	switch s.Name {
	case NameStatic:
		if !s.FullRange && s.TickLower >= s.TickUpper {
			return fmt.Errorf("%w: %s: tick_lower %d must be below tick_upper %d", sim.ErrConfiguration, s.Name, s.TickLower, s.TickUpper)
		}
	case NameRebalancer:
		if s.HalfWidth < 0 {
			return fmt.Errorf("%w: %s: half_width %d is negative", sim.ErrConfiguration, s.Name, s.HalfWidth)
		}
	}
	return nil
}

func (s Spec) liquidity() (*big.Int, error) {
	d, err := decimal.NewFromString(s.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: liquidity %q: %v", sim.ErrConfiguration, s.Name, s.Liquidity, err)
	}
	if !d.IsInteger() || !d.IsPositive() {
		return nil, fmt.Errorf("%w: %s: liquidity %q must be a positive integer", sim.ErrConfiguration, s.Name, s.Liquidity)
	}
	return d.BigInt(), nil
}

// New builds the strategy described by spec.
func New(spec Spec) (sim.Strategy, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Name {
	case NameNoOp:
		return NoOp{}, nil
	case NameStatic:
		l, _ := spec.liquidity()
		return &StaticLiquidity{Liquidity: l, TickLower: spec.TickLower, TickUpper: spec.TickUpper, FullRange: spec.FullRange}, nil
	default:
		l, _ := spec.liquidity()
		return &RangeRebalancer{Liquidity: l, HalfWidth: spec.HalfWidth}, nil
	}
}
