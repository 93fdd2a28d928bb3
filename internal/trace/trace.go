// Package trace holds the compile-time-style debug switches used across
// the backend. These are plain package vars rather than a logging library:
// the allocator's hot loops already compete with sort and map overhead for
// budget, and a structured-logging call per node would dominate a profile.
// No pipeline package calls Printf or reads these switches, so setting
// them (cmd/kestrelc's -trace.* flags do) produces no trace output.
package trace

import "fmt"

var (
	// SchedulingEnabled is the switch for list-scheduler tracing.
	SchedulingEnabled = false
	// SpillEnabled is the switch for Belady spiller tracing.
	SpillEnabled = false
	// RegAllocEnabled is the switch for constraint-handler and colorer
	// tracing.
	RegAllocEnabled = false
	// ValidationEnabled is the switch for expensive invariant assertions.
	// The pipeline's invariant checks (cycle detection, coloring
	// feasibility, matching feasibility) panic unconditionally and do not
	// read it.
	ValidationEnabled = true
)

// Printf prints a trace line when enabled is true; a no-op otherwise.
func Printf(enabled bool, format string, args ...interface{}) {
	if !enabled {
		return
	}
	fmt.Printf(format, args...)
}
