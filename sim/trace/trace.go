package trace

import (
	"errors"

	"github.com/arena-sim/arena/sim"
)

// TraceLevel controls how much a Recorder keeps.
type TraceLevel string

const (
	// TraceLevelNone keeps nothing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps keeps every step record.
	TraceLevelSteps TraceLevel = "steps"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelSteps: true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

var (
	_ sim.Inspector         = (*Recorder)(nil)
	_ sim.StrategyInspector = (*Recorder)(nil)
	_ sim.StrategyInspector = Multi(nil)
)

// Recorder keeps step records and strategy values in memory.
type Recorder struct {
	Level      TraceLevel
	Steps      []sim.StepRecord
	Strategies []sim.StrategyRecord
	flushes    int
}

// NewRecorder creates a Recorder ready for recording.
func NewRecorder(level TraceLevel) *Recorder {
	return &Recorder{Level: level, Steps: make([]sim.StepRecord, 0)}
}

// Log appends record unless the level is none.
func (r *Recorder) Log(record sim.StepRecord) error {
	if r.Level != TraceLevelSteps {
		return nil
	}
	r.Steps = append(r.Steps, record)
	return nil
}

// LogStrategy appends a strategy value unless the level is none.
func (r *Recorder) LogStrategy(record sim.StrategyRecord) error {
	if r.Level != TraceLevelSteps {
		return nil
	}
	r.Strategies = append(r.Strategies, record)
	return nil
}

// Inspect returns the record of step, if one was kept.
func (r *Recorder) Inspect(step uint64) (sim.StepRecord, bool) {
	// steps are logged in order from 0, so the index usually matches
	if step < uint64(len(r.Steps)) && r.Steps[step].Step == step {
		return r.Steps[step], true
	}
	for _, s := range r.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return sim.StepRecord{}, false
}

// StrategyValues returns the values strategies reported during step, in report order.
func (r *Recorder) StrategyValues(step uint64) []sim.StrategyRecord {
	var out []sim.StrategyRecord
	for _, s := range r.Strategies {
		if s.HasStep && s.Step == step {
			out = append(out, s)
		}
	}
	return out
}

// Flush only counts calls; records stay in memory.
func (r *Recorder) Flush() error {
	r.flushes++
	return nil
}

// Flushes returns how many times Flush was called.
func (r *Recorder) Flushes() int { return r.flushes }

// Multi fans every call out to each inspector in order. All inspectors see every
// record; their errors are joined.
type Multi []sim.Inspector

func (m Multi) Log(record sim.StepRecord) error {
	var errs []error
	for _, in := range m {
		errs = append(errs, in.Log(record))
	}
	return errors.Join(errs...)
}

// LogStrategy forwards record to every inspector that accepts strategy values.
func (m Multi) LogStrategy(record sim.StrategyRecord) error {
	var errs []error
	for _, in := range m {
		if si, ok := in.(sim.StrategyInspector); ok {
			errs = append(errs, si.LogStrategy(record))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Flush() error {
	var errs []error
	for _, in := range m {
		errs = append(errs, in.Flush())
	}
	return errors.Join(errs...)
}
