package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arena-sim/arena/sim"
	"github.com/arena-sim/arena/sim/trace"
)

var (
	// CLI flags shared by run and sweep
	configPath string  // YAML run file
	seed       int64   // Seed for the feed and identities
	steps      uint64  // Number of steps
	logLevel   string  // Log verbosity level
	feedKind   string  // Feed process (ou, gbm)
	feedSigma  float64 // Feed volatility
	feedTheta  float64 // OU mean-reversion speed
	feedMu     float64 // OU mean or GBM drift

	// run only
	metricsOut string // Prometheus textfile written at end of run

	// sweep only
	sweepSeeds    int // Number of consecutive seeds to run
	sweepParallel int // Concurrent runs
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Step-synchronized simulator for AMM liquidity strategies",
}

// runCmd executes one simulation using the run file and CLI overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		rf := loadRunFile(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var inspectors []sim.Inspector
		if metricsOut != "" {
			inspectors = append(inspectors, trace.NewPrometheusInspector(metricsOut))
		}

		summary, err := runOnce(ctx, rf, inspectors...)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		printSummary(os.Stdout, rf.Seed, summary)
		logrus.Info("Simulation complete.")
	},
}

// sweepCmd runs independent simulations over consecutive seeds in parallel
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the same configuration across consecutive seeds",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		rf := loadRunFile(cmd)
		if sweepSeeds <= 0 {
			logrus.Fatalf("--seeds must be positive, got %d", sweepSeeds)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		startTime := time.Now()
		summaries, err := sweep(ctx, rf, sweepSeeds, sweepParallel)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		for i, s := range summaries {
			printSummary(os.Stdout, rf.Seed+int64(i), s)
		}
		logrus.Infof("Sweep of %d seeds complete in %v", sweepSeeds, time.Since(startTime))
	},
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadRunFile reads --config when given and applies every flag the user set.
func loadRunFile(cmd *cobra.Command) RunFile {
	rf := DefaultRunFile()
	if configPath != "" {
		loaded, err := LoadRunFile(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load run file: %v", err)
		}
		rf = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		rf.Seed = seed
	}
	if flags.Changed("steps") {
		rf.Steps = steps
	}
	if flags.Changed("feed") {
		rf.Feed.Kind = feedKind
	}
	if flags.Changed("sigma") {
		rf.Feed.Sigma = feedSigma
	}
	if flags.Changed("theta") {
		rf.Feed.Theta = feedTheta
	}
	if flags.Changed("mu") {
		rf.Feed.Mu = feedMu
	}
	if err := rf.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return rf
}

// runOnce builds and runs one arena and summarizes what the recorder saw.
func runOnce(ctx context.Context, rf RunFile, inspectors ...sim.Inspector) (*trace.Summary, error) {
	run, err := buildArena(rf, inspectors...)
	if err != nil {
		return nil, err
	}
	if err := run.arena.Run(ctx, run.config); err != nil {
		return nil, err
	}
	return trace.Summarize(run.recorder.Steps), nil
}

// sweep runs n seeds starting at rf.Seed. Each run owns its ledger, feed and
// identities; results are returned in seed order.
func sweep(ctx context.Context, rf RunFile, n, parallel int) ([]*trace.Summary, error) {
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	summaries := make([]*trace.Summary, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := 0; i < n; i++ {
		i := i
		local := rf
		local.Seed = rf.Seed + int64(i)
		g.Go(func() error {
			s, err := runOnce(ctx, local)
			if err != nil {
				return fmt.Errorf("seed %d: %w", local.Seed, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func printSummary(w io.Writer, seed int64, s *trace.Summary) {
	fmt.Fprintf(w, "=== Run Summary (seed %d) ===\n", seed)
	fmt.Fprintf(w, "steps:               %d\n", s.Steps)
	fmt.Fprintf(w, "mean value:          %.6f\n", s.MeanValue)
	fmt.Fprintf(w, "stddev value:        %.6f\n", s.StdDevValue)
	fmt.Fprintf(w, "final value:         %.6f\n", s.FinalValue)
	fmt.Fprintf(w, "final pool price:    %.6f\n", s.FinalPoolPrice)
	fmt.Fprintf(w, "mean tracking error: %.6f\n", s.MeanTrackingError)
	fmt.Fprintf(w, "max tracking error:  %.6f\n", s.MaxTrackingError)
	fmt.Fprintf(w, "trades:              %d (zero-size %d)\n", s.Trades, s.ZeroTrades)
	fmt.Fprintf(w, "volume:              %s\n", s.Volume.String())
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, sweepCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Path to a YAML run file")
		c.Flags().Int64Var(&seed, "seed", 42, "Seed for the feed and identity derivation")
		c.Flags().Uint64Var(&steps, "steps", 100, "Number of simulation steps")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

		// Feed overrides
		c.Flags().StringVar(&feedKind, "feed", "ou", "Feed process (ou, gbm)")
		c.Flags().Float64Var(&feedSigma, "sigma", 0.01, "Feed volatility")
		c.Flags().Float64Var(&feedTheta, "theta", 0.1, "OU mean-reversion speed")
		c.Flags().Float64Var(&feedMu, "mu", 1.0, "OU long-run mean or GBM drift")
	}

	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics in text format to this file at the end of the run")

	sweepCmd.Flags().IntVar(&sweepSeeds, "seeds", 8, "Number of consecutive seeds to run, starting at --seed")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 0, "Concurrent runs (0 = GOMAXPROCS)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
}
