package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ArenaState is the lifecycle position of an Arena.
type ArenaState int

const (
	StateBuilt ArenaState = iota
	StateRunning
	StateFinished
)

func (s ArenaState) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("ArenaState(%d)", int(s))
}

// Arena owns the step loop. Each step it advances the feed, pushes the new value to
// the ledger oracle, lets the arbitrageur re-peg the pool, then runs every strategy
// in registration order, each under its own identity.
//
// An Arena runs once. Any ledger error aborts the run.
type Arena struct {
	feed        Feed
	strategies  []Strategy
	arbitrageur Arbitrageur
	inspector   Inspector
	ledger      Ledger
	deployer    Deployer
	keyring     *Keyring

	runID     uuid.UUID
	state     ArenaState
	stepCount uint64
}

// RunID identifies the run in step records.
func (a *Arena) RunID() uuid.UUID { return a.runID }

// State returns the lifecycle state.
func (a *Arena) State() ArenaState { return a.state }

// StepCount returns the number of completed steps.
func (a *Arena) StepCount() uint64 { return a.stepCount }

// Feed returns the arena's feed.
func (a *Arena) Feed() Feed { return a.feed }

// Keyring returns the identities of the run: slot 0 is admin, slot i+1 is strategy i.
func (a *Arena) Keyring() *Keyring { return a.keyring }

// Run deploys the pool, initializes every strategy and the arbitrageur, then runs
// cfg.Steps steps. The inspector is flushed on every exit path.
func (a *Arena) Run(ctx context.Context, cfg Config) (err error) {
	if a.state != StateBuilt {
		return fmt.Errorf("%w: arena is %s", ErrConfiguration, a.state)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.state = StateRunning
	defer func() {
		a.state = StateFinished
		if ferr := a.inspector.Flush(); ferr != nil {
			logrus.Warnf("inspector flush failed: %v", ferr)
		}
	}()

	startTime := time.Now()
	logrus.Infof("Starting run %s: %d steps, %d strategies, fee=%d, tick spacing=%d",
		a.runID, cfg.Steps, len(a.strategies), cfg.PoolFee, cfg.TickSpacing)

	seq := NewSequencer(a.ledger)
	admin := NewHandle(a.keyring.Admin(), a.ledger, seq, cfg.ConfirmTimeout)

	deployment, err := a.deployer.Deploy(ctx, admin, cfg)
	if err != nil {
		return fmt.Errorf("deploying pool: %w", err)
	}
	logrus.Debugf("pool %s deployed, manager=%s fetcher=%s",
		deployment.Pool.Hex(), deployment.Manager.Hex(), deployment.Fetcher.Hex())

	engine := NewEngine(deployment, cfg, a.ledger, seq, a.keyring)
	engine.observe(a.runID, a.inspector)
	views := make([]*Engine, len(a.strategies))
	for i := range a.strategies {
		id, _ := a.keyring.At(i + 1)
		if views[i], err = engine.Bind(id); err != nil {
			return err
		}
	}

	signal, err := a.signal(ctx, deployment, 0, false)
	if err != nil {
		return fmt.Errorf("initial signal: %w", err)
	}
	for i, s := range a.strategies {
		id, _ := a.keyring.At(i + 1)
		if err := s.Init(ctx, id, signal, views[i]); err != nil {
			return fmt.Errorf("init %s: %w", strategyName(s, i), err)
		}
	}
	if err := a.arbitrageur.Init(ctx, signal, admin); err != nil {
		return fmt.Errorf("init arbitrageur: %w", err)
	}

	for step := uint64(0); step < cfg.Steps; step++ {
		engine.at(step)
		if err := a.step(ctx, step, deployment, admin, views); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		a.stepCount++
	}

	logrus.Infof("Run %s complete: %d steps in %v", a.runID, a.stepCount, time.Since(startTime))
	return nil
}

func (a *Arena) step(ctx context.Context, step uint64, d Deployment, admin *Handle, views []*Engine) error {
	value := a.feed.Step()
	price, err := OraclePrice(value)
	if err != nil {
		return err
	}
	if _, err := admin.Submit(ctx, "submit_price_update", func(ctx context.Context, tx Tx) (Confirmation, error) {
		return a.ledger.SubmitPriceUpdate(ctx, tx, price)
	}); err != nil {
		return err
	}

	signal, err := a.signal(ctx, d, step, true)
	if err != nil {
		return err
	}
	trade, err := a.arbitrageur.Arbitrage(ctx, signal, admin)
	if err != nil {
		return fmt.Errorf("arbitrage: %w", err)
	}
	logrus.Debugf("[step %05d] value=%.6f tick=%d target=%d trade=%s zeroForOne=%v",
		step, value, signal.Tick, trade.TargetTick, trade.Amount.Dec(), trade.ZeroForOne)

	for i, s := range a.strategies {
		// re-read so each strategy sees the effect of everything before it
		sig, err := a.signal(ctx, d, step, true)
		if err != nil {
			return err
		}
		id, _ := a.keyring.At(i + 1)
		if err := s.Process(ctx, id, sig, views[i]); err != nil {
			return fmt.Errorf("process %s: %w", strategyName(s, i), err)
		}
	}

	end, err := a.ledger.PoolState(ctx, d.Pool)
	if err != nil {
		return &LedgerError{Op: "get_pool_state", Err: err}
	}
	record := StepRecord{
		RunID:            a.runID,
		Step:             step,
		TheoreticalValue: value,
		Tick:             end.Tick,
		SqrtPriceX96:     end.SqrtPriceX96,
		Trade:            trade,
	}
	if err := a.inspector.Log(record); err != nil {
		logrus.Warnf("[step %05d] inspector log failed: %v", step, err)
	}
	return nil
}

func (a *Arena) signal(ctx context.Context, d Deployment, step uint64, hasStep bool) (Signal, error) {
	state, err := a.ledger.PoolState(ctx, d.Pool)
	if err != nil {
		return Signal{}, &LedgerError{Op: "get_pool_state", Err: err}
	}
	return NewSignal(a.feed.CurrentValue(), state, step, hasStep, d), nil
}

// Builder assembles an Arena. Feed, ledger, arbitrageur and at least one strategy
// are required; the inspector defaults to EmptyInspector and the deployer to the
// ledger itself when it implements Deployer.
type Builder struct {
	feed        Feed
	strategies  []Strategy
	arbitrageur Arbitrageur
	inspector   Inspector
	ledger      Ledger
	deployer    Deployer
	keyring     *Keyring
	seed        int64
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithFeed sets the theoretical value process.
func (b *Builder) WithFeed(f Feed) *Builder {
	b.feed = f
	return b
}

// WithStrategy appends a strategy. Registration order is invocation order.
func (b *Builder) WithStrategy(s Strategy) *Builder {
	b.strategies = append(b.strategies, s)
	return b
}

// WithArbitrageur sets the agent that pegs the pool to the feed.
func (b *Builder) WithArbitrageur(arb Arbitrageur) *Builder {
	b.arbitrageur = arb
	return b
}

// WithInspector sets the telemetry sink.
func (b *Builder) WithInspector(i Inspector) *Builder {
	b.inspector = i
	return b
}

// WithLedger sets the ledger every identity talks to.
func (b *Builder) WithLedger(l Ledger) *Builder {
	b.ledger = l
	return b
}

// WithDeployer overrides the deployment collaborator.
func (b *Builder) WithDeployer(d Deployer) *Builder {
	b.deployer = d
	return b
}

// WithKeyring supplies explicit identities instead of seed-derived ones.
func (b *Builder) WithKeyring(k *Keyring) *Builder {
	b.keyring = k
	return b
}

// WithSeed sets the seed used to derive identities when no keyring is given.
func (b *Builder) WithSeed(seed int64) *Builder {
	b.seed = seed
	return b
}

// Build validates the builder and materializes one identity per strategy plus the admin.
func (b *Builder) Build() (*Arena, error) {
	if b.feed == nil {
		return nil, fmt.Errorf("%w: feed is required", ErrConfiguration)
	}
	if b.ledger == nil {
		return nil, fmt.Errorf("%w: ledger is required", ErrConfiguration)
	}
	if b.arbitrageur == nil {
		return nil, fmt.Errorf("%w: arbitrageur is required", ErrConfiguration)
	}
	if len(b.strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy is required", ErrConfiguration)
	}
	for i, s := range b.strategies {
		if s == nil {
			return nil, fmt.Errorf("%w: strategy %d is nil", ErrConfiguration, i)
		}
	}

	deployer := b.deployer
	if deployer == nil {
		d, ok := b.ledger.(Deployer)
		if !ok {
			return nil, fmt.Errorf("%w: ledger %T cannot deploy and no deployer was set", ErrConfiguration, b.ledger)
		}
		deployer = d
	}

	needed := len(b.strategies) + 1
	keyring := b.keyring
	if keyring == nil {
		k, err := NewKeyring(b.seed, needed)
		if err != nil {
			return nil, err
		}
		keyring = k
	} else if keyring.Len() < needed {
		return nil, fmt.Errorf("%w: keyring has %d identities, need %d", ErrConfiguration, keyring.Len(), needed)
	}

	inspector := b.inspector
	if inspector == nil {
		inspector = EmptyInspector{}
	}

	return &Arena{
		feed:        b.feed,
		strategies:  append([]Strategy(nil), b.strategies...),
		arbitrageur: b.arbitrageur,
		inspector:   inspector,
		ledger:      b.ledger,
		deployer:    deployer,
		keyring:     keyring,
		runID:       uuid.New(),
		state:       StateBuilt,
	}, nil
}
