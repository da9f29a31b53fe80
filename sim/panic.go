package sim

import "fmt"

// panicf is the single path by which an invariant violation (spec.md
// §7) becomes a Go panic: every call site names the offending entity
// IDs and the simulated time, so a post-mortem never has to guess what
// was happening.
func (s *Sim) panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(fmt.Sprintf("sim: invariant violation at t=%.3f: %s", s.Now(), msg))
}
