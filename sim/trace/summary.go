package trace

import (
	"math"
	"math/big"

	"gonum.org/v1/gonum/stat"

	"github.com/arena-sim/arena/sim"
)

// Summary aggregates statistics from recorded steps.
type Summary struct {
	Steps             int
	MeanValue         float64
	StdDevValue       float64
	FinalValue        float64
	FinalPoolPrice    float64
	MeanTrackingError float64
	MaxTrackingError  float64
	Trades            int // submitted swaps with a non-zero amount
	ZeroTrades        int // submitted swaps sized at zero
	Volume            *big.Int
}

// Summarize computes aggregate statistics over records.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(records []sim.StepRecord) *Summary {
	summary := &Summary{Volume: new(big.Int)}
	if len(records) == 0 {
		return summary
	}
	summary.Steps = len(records)

	values := make([]float64, 0, len(records))
	tracking := make([]float64, 0, len(records))
	var last PricePoint
	for _, r := range records {
		p := NewPricePoint(r)
		last = p
		values = append(values, p.TheoreticalValue)
		if !math.IsNaN(p.TrackingError) {
			tracking = append(tracking, p.TrackingError)
			if p.TrackingError > summary.MaxTrackingError {
				summary.MaxTrackingError = p.TrackingError
			}
		}
		if !r.Trade.Submitted {
			continue
		}
		if r.Trade.Amount.IsZero() {
			summary.ZeroTrades++
			continue
		}
		summary.Trades++
		summary.Volume.Add(summary.Volume, r.Trade.Amount.ToBig())
	}

	summary.MeanValue = stat.Mean(values, nil)
	if len(values) > 1 {
		summary.StdDevValue = stat.StdDev(values, nil)
	}
	if len(tracking) > 0 {
		summary.MeanTrackingError = stat.Mean(tracking, nil)
	}
	summary.FinalValue = last.TheoreticalValue
	summary.FinalPoolPrice = last.PoolPrice
	return summary
}
