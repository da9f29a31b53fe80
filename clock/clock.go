// Package clock tracks simulated time for the core. Unlike the
// teacher's fixed-dt subloop clock this one advances only when the
// scheduler pops an event (spec.md §5: "the only suspension is between
// events"), so T jumps directly to each popped command's time rather
// than stepping by a constant DT.
package clock

import (
	"fmt"

	"github.com/fiblab-sim/moss-core/utils/config"
)

// Clock holds the current simulated time and the run's bounds. T only
// ever increases (Advance panics otherwise), matching the time
// monotonicity invariant in spec.md §8.
type Clock struct {
	StartSeconds float64
	EndSeconds   float64
	T            float64
}

// New builds a Clock from a run's ControlStep, parked at
// StartSeconds.
func New(step config.ControlStep) *Clock {
	return &Clock{
		StartSeconds: step.StartSeconds,
		EndSeconds:   step.StartSeconds + step.TotalSeconds,
		T:            step.StartSeconds,
	}
}

// Now returns the current simulated time in seconds.
func (c *Clock) Now() float64 { return c.T }

// Advance moves the clock forward to t. Panics if t is before the
// current time: the scheduler never pops a command scheduled earlier
// than now, so this would indicate a genuine invariant violation (see
// spec.md §7, "invariant violation (fatal)").
func (c *Clock) Advance(t float64) {
	if t < c.T {
		panic(fmt.Sprintf("clock: time went backwards: now=%v new=%v", c.T, t))
	}
	c.T = t
}

// Done reports whether the run has reached its configured end time.
func (c *Clock) Done() bool {
	return c.T >= c.EndSeconds
}

// String formats the current time as HH:MM:SS, relative to the start
// of the simulated day.
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond decomposes T into hour/minute/second, with
// sub-second precision retained in second.
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	hour := int(c.T) / 3600
	minute := int(c.T) % 3600 / 60
	second := c.T - float64(hour*3600+minute*60)
	return hour, minute, second
}
