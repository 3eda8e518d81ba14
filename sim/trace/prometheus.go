package trace

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arena-sim/arena/sim"
)

var (
	_ sim.Inspector         = (*PrometheusInspector)(nil)
	_ sim.StrategyInspector = (*PrometheusInspector)(nil)
)

// PrometheusInspector exports step telemetry as Prometheus metrics on its own
// registry. When path is set, Flush writes the registry in text format to it.
type PrometheusInspector struct {
	registry  *prometheus.Registry
	path      string
	steps     prometheus.Counter
	value     prometheus.Gauge
	poolPrice prometheus.Gauge
	tick      prometheus.Gauge
	trades    *prometheus.CounterVec
	tradeSize prometheus.Histogram
	strategy  *prometheus.GaugeVec
}

// NewPrometheusInspector registers the arena metrics on a fresh registry.
func NewPrometheusInspector(path string) *PrometheusInspector {
	p := &PrometheusInspector{
		registry: prometheus.NewRegistry(),
		path:     path,
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_steps_total",
			Help: "Steps completed.",
		}),
		value: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_theoretical_value",
			Help: "Current value of the feed.",
		}),
		poolPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_pool_price",
			Help: "Pool price decoded from the sqrt price at the start of the step.",
		}),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_pool_tick",
			Help: "Active pool tick at the start of the step.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_arbitrage_trades_total",
			Help: "Arbitrage swaps submitted, by direction.",
		}, []string{"direction"}),
		tradeSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_arbitrage_trade_size",
			Help:    "Arbitrage swap input amount.",
			Buckets: prometheus.ExponentialBuckets(1, 10, 20),
		}),
		strategy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_strategy_value",
			Help: "Latest value each strategy reported, by keyring slot and key.",
		}, []string{"slot", "key"}),
	}
	p.registry.MustRegister(p.steps, p.value, p.poolPrice, p.tick, p.trades, p.tradeSize, p.strategy)
	return p
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (p *PrometheusInspector) Registry() *prometheus.Registry { return p.registry }

func (p *PrometheusInspector) Log(record sim.StepRecord) error {
	point := NewPricePoint(record)
	p.steps.Inc()
	p.value.Set(point.TheoreticalValue)
	p.poolPrice.Set(point.PoolPrice)
	p.tick.Set(float64(point.Tick))
	if point.Submitted {
		direction := "one_for_zero"
		if point.ZeroForOne {
			direction = "zero_for_one"
		}
		p.trades.WithLabelValues(direction).Inc()
		p.tradeSize.Observe(point.TradeAmount)
	}
	return nil
}

func (p *PrometheusInspector) LogStrategy(record sim.StrategyRecord) error {
	p.strategy.WithLabelValues(strconv.Itoa(record.Slot), record.Key).Set(record.Value)
	return nil
}

func (p *PrometheusInspector) Flush() error {
	if p.path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(p.path, p.registry)
}
