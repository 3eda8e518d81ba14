// Package sim provides the step-synchronized simulation harness for market-making
// strategies running against an AMM pool held by an external ledger.
//
// # Reading Guide
//
// Start with these files to understand the harness:
//   - arena.go: Builder, the Arena lifecycle (built → running → finished) and the step loop
//   - signal.go: the immutable snapshot every agent receives
//   - engine.go: the façade strategies use to change liquidity
//   - handle.go: per-identity sequencing and confirmation of ledger submissions
//
// # Architecture
//
// The sim package defines the seams; implementations live in sub-packages:
//   - sim/feed/: theoretical value processes (Ornstein-Uhlenbeck, geometric Brownian motion)
//   - sim/arbitrage/: the optimal arbitrage sizer
//   - sim/tickmath/: tick, price and Q64.96 sqrt-price conversions
//   - sim/ledger/: an in-process paper ledger for tests and offline runs
//   - sim/strategy/: reusable strategies and their name registry
//   - sim/trace/: inspectors (in-memory recorder, summary statistics, Prometheus)
//
// # Key Interfaces
//
//   - Feed: current value and one-step advance
//   - Ledger / Deployer: the external pool service
//   - Arbitrageur: re-pegs the pool each step under the admin identity
//   - Strategy: user logic, one identity per strategy
//   - Inspector: optional telemetry sink
package sim
