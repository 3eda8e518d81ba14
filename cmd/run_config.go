package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/arbitrage"
	"github.com/arena-sim/arena/sim/feed"
	"github.com/arena-sim/arena/sim/ledger"
	"github.com/arena-sim/arena/sim/strategy"
	"github.com/arena-sim/arena/sim/tickmath"
	"github.com/arena-sim/arena/sim/trace"
)

// RunFile is the YAML run description. Every field has a default; a file only
// needs to name what it changes.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type RunFile struct {
	Seed        int64           `yaml:"seed"`
	Steps       uint64          `yaml:"steps"`
	Pool        PoolSection     `yaml:"pool"`
	Feed        FeedSection     `yaml:"feed"`
	Arbitrageur string          `yaml:"arbitrageur"`
	Trace       string          `yaml:"trace"`
	Strategies  []strategy.Spec `yaml:"strategies"`
}

// PoolSection configures the deployed pool.
type PoolSection struct {
	Fee            uint32  `yaml:"fee"`
	ManagerFee     uint32  `yaml:"manager_fee"`
	TickSpacing    int32   `yaml:"tick_spacing"`
	InitialPrice   float64 `yaml:"initial_price"`
	ConfirmTimeout string  `yaml:"confirm_timeout"`
}

// FeedSection selects and parameterizes the theoretical value process.
// Theta is ignored by gbm.
type FeedSection struct {
	Kind    string  `yaml:"kind"`
	Initial float64 `yaml:"initial"`
	Theta   float64 `yaml:"theta"`
	Mu      float64 `yaml:"mu"`
	Sigma   float64 `yaml:"sigma"`
	Dt      float64 `yaml:"dt"`
}

const (
	feedOU  = "ou"
	feedGBM = "gbm"

	arbOptimal = "optimal"
	arbEmpty   = "empty"
)

// validFeedKinds is the set of recognized feed kinds.
var validFeedKinds = map[string]bool{feedOU: true, feedGBM: true}

// validArbitrageurs is the set of recognized arbitrageur names.
var validArbitrageurs = map[string]bool{arbOptimal: true, arbEmpty: true}

// DefaultRunFile returns a mean-reverting feed around 1.0 with one full-range
// liquidity provider and the optimal arbitrageur.
func DefaultRunFile() RunFile {
	return RunFile{
		Seed:  42,
		Steps: 100,
		Pool: PoolSection{
			Fee:            3000,
			TickSpacing:    60,
			InitialPrice:   1.0,
			ConfirmTimeout: "30s",
		},
		Feed: FeedSection{
			Kind:    feedOU,
			Initial: 1.0,
			Theta:   0.1,
			Mu:      1.0,
			Sigma:   0.01,
			Dt:      1.0,
		},
		Arbitrageur: arbOptimal,
		Trace:       string(trace.TraceLevelSteps),
		Strategies: []strategy.Spec{
			{Name: strategy.NameStatic, Liquidity: "1e18", FullRange: true},
		},
	}
}

// LoadRunFile parses path on top of DefaultRunFile, with strict field checking.
func LoadRunFile(path string) (RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunFile{}, fmt.Errorf("reading run file: %w", err)
	}
	return ParseRunFile(data)
}

// ParseRunFile decodes data on top of DefaultRunFile. Unknown keys are errors.
func ParseRunFile(data []byte) (RunFile, error) {
	rf := DefaultRunFile()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return RunFile{}, fmt.Errorf("%w: parsing run file: %v", sim.ErrConfiguration, err)
	}
	return rf, nil
}

// Validate checks names and parameter ranges that can be checked without building.
func (rf RunFile) Validate() error {
	if !validFeedKinds[rf.Feed.Kind] {
		return fmt.Errorf("%w: unknown feed kind %q; valid options: ou, gbm", sim.ErrConfiguration, rf.Feed.Kind)
	}
	if !validArbitrageurs[rf.Arbitrageur] {
		return fmt.Errorf("%w: unknown arbitrageur %q; valid options: empty, optimal", sim.ErrConfiguration, rf.Arbitrageur)
	}
	if !trace.IsValidTraceLevel(rf.Trace) {
		return fmt.Errorf("%w: unknown trace level %q", sim.ErrConfiguration, rf.Trace)
	}
	if len(rf.Strategies) == 0 {
		return fmt.Errorf("%w: at least one strategy is required", sim.ErrConfiguration)
	}
	for i, s := range rf.Strategies {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
	}
	_, err := rf.Config()
	return err
}

// Config converts the pool section into a validated sim.Config.
func (rf RunFile) Config() (sim.Config, error) {
	timeout, err := time.ParseDuration(rf.Pool.ConfirmTimeout)
	if err != nil {
		return sim.Config{}, fmt.Errorf("%w: confirm_timeout %q: %v", sim.ErrConfiguration, rf.Pool.ConfirmTimeout, err)
	}
	sqrtPrice, err := tickmath.SqrtPriceX96FromPrice(rf.Pool.InitialPrice)
	if err != nil {
		return sim.Config{}, fmt.Errorf("%w: initial_price: %v", sim.ErrConfiguration, err)
	}
	cfg := sim.DefaultConfig(rf.Steps)
	cfg.PoolFee = rf.Pool.Fee
	cfg.ManagerFee = rf.Pool.ManagerFee
	cfg.TickSpacing = rf.Pool.TickSpacing
	cfg.SqrtPriceX96 = sqrtPrice
	cfg.ConfirmTimeout = timeout
	if err := cfg.Validate(); err != nil {
		return sim.Config{}, err
	}
	return cfg, nil
}

// NewFeed builds the configured feed on rng.
func (rf RunFile) NewFeed(rng *rand.Rand) (sim.Feed, error) {
	f := rf.Feed
	switch f.Kind {
	case feedOU:
		return feed.NewOrnsteinUhlenbeck(f.Initial, f.Theta, f.Mu, f.Sigma, f.Dt, rng)
	case feedGBM:
		return feed.NewGeometricBrownianMotion(f.Initial, f.Mu, f.Sigma, f.Dt, rng)
	}
	return nil, fmt.Errorf("%w: unknown feed kind %q", sim.ErrConfiguration, f.Kind)
}

// NewArbitrageur builds the configured arbitrageur.
func (rf RunFile) NewArbitrageur() sim.Arbitrageur {
	if rf.Arbitrageur == arbEmpty {
		return sim.EmptyArbitrageur{}
	}
	return arbitrage.NewOptimalArbitrageur()
}

// runArtifacts is everything a single run produces besides its error.
type runArtifacts struct {
	arena    *sim.Arena
	ledger   *ledger.Paper
	recorder *trace.Recorder
	config   sim.Config
}

// buildArena wires a fresh paper ledger, feed, arbitrageur and strategies for one
// seed. extra inspectors receive every step record after the recorder.
func buildArena(rf RunFile, extra ...sim.Inspector) (*runArtifacts, error) {
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	cfg, err := rf.Config()
	if err != nil {
		return nil, err
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(rf.Seed))
	f, err := rf.NewFeed(rng.ForSubsystem(sim.SubsystemFeed))
	if err != nil {
		return nil, err
	}

	paper := ledger.NewPaper()
	recorder := trace.NewRecorder(trace.TraceLevel(rf.Trace))
	inspectors := append(trace.Multi{recorder}, extra...)

	b := sim.NewBuilder().
		WithFeed(f).
		WithLedger(paper).
		WithArbitrageur(rf.NewArbitrageur()).
		WithInspector(inspectors).
		WithSeed(rf.Seed)
	for _, spec := range rf.Strategies {
		s, err := strategy.New(spec)
		if err != nil {
			return nil, err
		}
		b.WithStrategy(s)
	}
	arena, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &runArtifacts{arena: arena, ledger: paper, recorder: recorder, config: cfg}, nil
}
