// Package feed implements the theoretical value processes driving a run.
// Every process draws from an injected *rand.Rand so runs are reproducible.
package feed

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/arena-sim/arena/sim"
)

var (
	_ sim.Feed = (*OrnsteinUhlenbeck)(nil)
	_ sim.Feed = (*GeometricBrownianMotion)(nil)
)

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %v", sim.ErrConfiguration, name, v)
	}
	return nil
}

func checkCommon(sigma, dt float64, rng *rand.Rand) error {
	if err := checkFinite("sigma", sigma); err != nil {
		return err
	}
	if err := checkFinite("dt", dt); err != nil {
		return err
	}
	if sigma < 0 {
		return fmt.Errorf("%w: sigma must be >= 0, got %v", sim.ErrConfiguration, sigma)
	}
	if dt <= 0 {
		return fmt.Errorf("%w: dt must be > 0, got %v", sim.ErrConfiguration, dt)
	}
	if rng == nil {
		return fmt.Errorf("%w: random source is required", sim.ErrConfiguration)
	}
	return nil
}
