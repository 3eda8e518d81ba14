package feed

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/arena-sim/arena/sim"
)

// GeometricBrownianMotion is a multiplicative process with exact log-normal steps:
//
//	x *= exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z),  Z ~ N(0,1)
//
// A positive start stays positive.
type GeometricBrownianMotion struct {
	initial     float64
	value       float64
	currentTime float64
	mu          float64 // drift
	sigma       float64 // volatility
	dt          float64 // time step
	rng         *rand.Rand
}

// NewGeometricBrownianMotion validates the parameters; initial must be positive.
func NewGeometricBrownianMotion(initial, mu, sigma, dt float64, rng *rand.Rand) (*GeometricBrownianMotion, error) {
	if err := checkFinite("mu", mu); err != nil {
		return nil, err
	}
	if err := checkFinite("initial", initial); err != nil {
		return nil, err
	}
	if initial <= 0 {
		return nil, fmt.Errorf("%w: initial value must be > 0, got %v", sim.ErrConfiguration, initial)
	}
	if err := checkCommon(sigma, dt, rng); err != nil {
		return nil, err
	}
	return &GeometricBrownianMotion{initial: initial, value: initial, mu: mu, sigma: sigma, dt: dt, rng: rng}, nil
}

func (g *GeometricBrownianMotion) CurrentValue() float64 { return g.value }

func (g *GeometricBrownianMotion) Step() float64 {
	z := g.rng.NormFloat64()
	exponent := (g.mu-0.5*g.sigma*g.sigma)*g.dt + g.sigma*math.Sqrt(g.dt)*z
	g.value *= math.Exp(exponent)
	g.currentTime += g.dt
	return g.value
}

// CurrentTime returns the elapsed process time (steps * dt).
func (g *GeometricBrownianMotion) CurrentTime() float64 { return g.currentTime }

// Initial returns the starting value.
func (g *GeometricBrownianMotion) Initial() float64 { return g.initial }

// Params returns (mu, sigma, dt).
func (g *GeometricBrownianMotion) Params() (mu, sigma, dt float64) {
	return g.mu, g.sigma, g.dt
}
