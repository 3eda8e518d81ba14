package sim

// Feed produces the theoretical value series.
type Feed interface {
	// CurrentValue returns the value without advancing.
	CurrentValue() float64
	// Step advances one step and returns the new value.
	Step() float64
}
