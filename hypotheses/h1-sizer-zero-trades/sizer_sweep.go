// H1 Sizer Zero-Trade Sweep
//
// The closed-form sizer returns max(0, a - k/(f*(a/b))). With k = a*b this is
// a - b*b/f, which is zero whenever b*b >= a*f. This program sweeps uniform
// liquidity, starting tick and tick distance, and records the sizer output so
// the zero region can be plotted.
//
// Usage: go run sizer_sweep.go --output-dir <dir> --fee 3000
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arena-sim/arena/sim/arbitrage"
	"github.com/arena-sim/arena/sim/tickmath"
)

func main() {
	outputDir := flag.String("output-dir", ".", "Output directory for CSV files")
	fee := flag.Uint("fee", 3000, "Pool fee in hundredths of a basis point")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}
	path := filepath.Join(*outputDir, "sizer_sweep.csv")
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"liquidity", "start_tick", "distance", "a", "b", "amount", "zero"})

	feeFactor := arbitrage.FeeFactor(uint32(*fee))
	zeros, total := 0, 0
	for _, liquidity := range []float64{1e6, 1e12, 1e18} {
		for _, start := range []int32{-50000, -10000, 0, 10000, 50000} {
			for _, distance := range []int32{1, 10, 100, 1000} {
				var a, b float64
				for t := start; t < start+distance; t++ {
					s := tickmath.SqrtPriceAtTick(t)
					a += liquidity / s
					b += liquidity * s
				}
				amount := arbitrage.OptimalAmount(a, b, feeFactor)
				zero := amount == 0 || math.IsNaN(amount)
				if zero {
					zeros++
				}
				total++
				_ = w.Write([]string{
					strconv.FormatFloat(liquidity, 'g', -1, 64),
					strconv.Itoa(int(start)),
					strconv.Itoa(int(distance)),
					strconv.FormatFloat(a, 'g', 8, 64),
					strconv.FormatFloat(b, 'g', 8, 64),
					strconv.FormatFloat(amount, 'g', 8, 64),
					strconv.FormatBool(zero),
				})
			}
		}
	}
	fmt.Printf("%d of %d configurations size to zero; results in %s\n", zeros, total, path)
}
