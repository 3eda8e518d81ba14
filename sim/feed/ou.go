package feed

import (
	"math"
	"math/rand"
)

// OrnsteinUhlenbeck is a mean-reverting process discretized with Euler-Maruyama:
//
//	x += theta*(mu - x)*dt + sigma*sqrt(dt)*Z,  Z ~ N(0,1)
type OrnsteinUhlenbeck struct {
	value float64
	theta float64 // mean reversion rate
	mu    float64 // long-term mean
	sigma float64 // volatility
	dt    float64 // time step
	rng   *rand.Rand
}

// NewOrnsteinUhlenbeck validates the parameters and returns a process starting at initial.
func NewOrnsteinUhlenbeck(initial, theta, mu, sigma, dt float64, rng *rand.Rand) (*OrnsteinUhlenbeck, error) {
	params := []struct {
		name  string
		value float64
	}{{"initial", initial}, {"theta", theta}, {"mu", mu}}
	for _, p := range params {
		if err := checkFinite(p.name, p.value); err != nil {
			return nil, err
		}
	}
	if err := checkCommon(sigma, dt, rng); err != nil {
		return nil, err
	}
	return &OrnsteinUhlenbeck{value: initial, theta: theta, mu: mu, sigma: sigma, dt: dt, rng: rng}, nil
}

func (o *OrnsteinUhlenbeck) CurrentValue() float64 { return o.value }

func (o *OrnsteinUhlenbeck) Step() float64 {
	// always draw, so the stream position does not depend on sigma
	z := o.rng.NormFloat64()
	drift := o.theta * (o.mu - o.value) * o.dt
	noise := o.sigma * math.Sqrt(o.dt) * z
	o.value += drift + noise
	return o.value
}

// Params returns (theta, mu, sigma, dt).
func (o *OrnsteinUhlenbeck) Params() (theta, mu, sigma, dt float64) {
	return o.theta, o.mu, o.sigma, o.dt
}
