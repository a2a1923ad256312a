// Package scheduler holds the round-robin Engine and the Loop that advances
// auto-playing simulations at a fixed cadence.
package scheduler

import "context"

// Scheduler advances simulations on a cadence.
type Scheduler interface {
	// Start begins the scheduling loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// Tick runs a single scheduling iteration. Used for testing.
	Tick(ctx context.Context) error
}

// Stepper is the set of simulations the Loop drives.
type Stepper interface {
	// RunningIDs lists simulations currently in auto-play.
	RunningIDs(ctx context.Context) ([]string, error)

	// Step advances one simulation by a single engine tick.
	Step(ctx context.Context, id string) error
}
