package l2sweeps

import (
	"fmt"
	"math"
)

// Rule selects how a wrap is recognised.
type Rule int

const (
	// RuleHysteresis raises an event only when the previous angle is above
	// High and the current angle is below Low. Small reverse jitter near
	// 0/360 degrees does not trigger it.
	RuleHysteresis Rule = iota
	// RuleDescending raises an event whenever the angle decreases.
	RuleDescending
)

func (r Rule) String() string {
	switch r {
	case RuleHysteresis:
		return "hysteresis"
	case RuleDescending:
		return "descending"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// ParseRule converts a rule name back to a Rule.
func ParseRule(s string) (Rule, error) {
	switch s {
	case "hysteresis", "":
		return RuleHysteresis, nil
	case "descending":
		return RuleDescending, nil
	}
	return 0, fmt.Errorf("unknown sweep rule %q", s)
}

// Event marks the boundary between two sweeps.
type Event struct {
	Index    int     // index of the sweep that just started
	Previous float64 // last angle of the finished sweep
	Angle    float64 // first angle of the new sweep
}

// Detector tracks the previous raw angle and numbers sweeps. High and Low are
// the wrap band thresholds in degrees and may be changed between calls.
// The zero value uses RuleHysteresis with an empty band; callers set High and
// Low from the config snapshot every cycle.
type Detector struct {
	Rule Rule
	High float64
	Low  float64

	prev     float64
	tracking bool
	index    int
}

// Observe feeds one raw angle and reports whether it starts a new sweep.
// The first angle after construction or Reset never raises an event.
// Non-finite angles are ignored.
func (d *Detector) Observe(angle float64) (Event, bool) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return Event{}, false
	}
	if !d.tracking {
		d.prev = angle
		d.tracking = true
		return Event{}, false
	}

	prev := d.prev
	d.prev = angle

	var wrapped bool
	switch d.Rule {
	case RuleDescending:
		wrapped = angle < prev
	default:
		wrapped = prev > d.High && angle < d.Low
	}
	if !wrapped {
		return Event{}, false
	}

	d.index++
	return Event{Index: d.index, Previous: prev, Angle: angle}, true
}

// Index returns the current sweep index. It starts at 0.
func (d *Detector) Index() int {
	return d.index
}

// Reset forgets the previous angle. The sweep index is kept so that indices
// stay monotonic for the life of the process.
func (d *Detector) Reset() {
	d.tracking = false
	d.prev = 0
}
