// Package trace provides Inspector implementations: an in-memory step recorder,
// summary statistics over recorded steps, and a Prometheus exporter.
package trace

import (
	"math"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/tickmath"
)

// PricePoint is a StepRecord decoded into floats for analysis.
type PricePoint struct {
	Step             uint64
	TheoreticalValue float64
	PoolPrice        float64
	Tick             int32
	// TrackingError is |pool price - value| / value; NaN when the value is not positive.
	TrackingError float64
	TradeAmount   float64
	ZeroForOne    bool
	Submitted     bool
}

// NewPricePoint decodes r. An undecodable sqrt price yields a NaN pool price.
func NewPricePoint(r sim.StepRecord) PricePoint {
	p := PricePoint{
		Step:             r.Step,
		TheoreticalValue: r.TheoreticalValue,
		Tick:             r.Tick,
		TradeAmount:      tickmath.BigToFloat(r.Trade.Amount.ToBig()),
		ZeroForOne:       r.Trade.ZeroForOne,
		Submitted:        r.Trade.Submitted,
		PoolPrice:        math.NaN(),
		TrackingError:    math.NaN(),
	}
	if price, err := tickmath.SqrtPriceX96ToPrice(&r.SqrtPriceX96); err == nil {
		p.PoolPrice = price
	}
	if r.TheoreticalValue > 0 && !math.IsNaN(p.PoolPrice) {
		p.TrackingError = math.Abs(p.PoolPrice-r.TheoreticalValue) / r.TheoreticalValue
	}
	return p
}
