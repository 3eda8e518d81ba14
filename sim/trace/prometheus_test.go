package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-sim/arena/sim"
)

func TestPrometheusInspector_RecordsSteps(t *testing.T) {
	p := NewPrometheusInspector("")

	require.NoError(t, p.Log(record(0, 1.0, 1.0, 0, false)))
	up := record(1, 1.2, 1.1, 1000, true)
	require.NoError(t, p.Log(up))
	down := record(2, 0.9, 1.0, 10, true)
	down.Trade.ZeroForOne = true
	require.NoError(t, p.Log(down))

	assert.Equal(t, 3.0, testutil.ToFloat64(p.steps))
	assert.Equal(t, 0.9, testutil.ToFloat64(p.value))
	assert.InEpsilon(t, 1.0, testutil.ToFloat64(p.poolPrice), 1e-12)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.trades.WithLabelValues("one_for_zero")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.trades.WithLabelValues("zero_for_one")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.tradeSize))
	assert.NoError(t, p.Flush(), "no path, nothing written")

	require.NoError(t, p.LogStrategy(sim.StrategyRecord{Slot: 2, Key: "rebalances", Value: 3}))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.strategy.WithLabelValues("2", "rebalances")))
}

func TestPrometheusInspector_FlushWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.prom")
	p := NewPrometheusInspector(path)
	require.NoError(t, p.Log(record(0, 1.5, 1.5, 0, false)))

	require.NoError(t, p.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "arena_steps_total 1")
	assert.Contains(t, string(data), "arena_theoretical_value 1.5")
	assert.NotNil(t, p.Registry())
}
