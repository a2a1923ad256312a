package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Simulation is a stored round-robin run: its configuration plus how far it
// has been advanced. The engine is deterministic, so Quantum, ExecutionTimes
// and Iterations are enough to rebuild the full run state.
type Simulation struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Quantum        int             `json:"quantum"`
	ExecutionTimes []int           `json:"execution_times"`
	State          SimulationState `json:"state"`
	Iterations     int             `json:"iterations"`
	CurrentTime    int             `json:"current_time"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at"`

	// Computed fields, not stored.
	Processes []Process `json:"processes,omitempty"`
	Queue     []string  `json:"queue,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
}

// TransitionTo moves the simulation to next, rejecting transitions outside
// ValidSimulationTransitions. Moving to the current state is a no-op.
func (s *Simulation) TransitionTo(next SimulationState) error {
	if s.State == next {
		return nil
	}
	if !s.State.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "simulation", ID: s.ID, From: string(s.State), To: string(next)}
	}
	s.State = next
	return nil
}

// IterationRecord is one persisted tick of a Simulation.
type IterationRecord struct {
	SimulationID string            `json:"simulation_id"`
	Iteration    int               `json:"iteration"`
	Time         int               `json:"time"`
	Dispatched   string            `json:"dispatched"`
	Outcome      ProcessState      `json:"outcome"`
	Snapshot     IterationSnapshot `json:"snapshot"`
	Segments     []TimelineEntry   `json:"segments"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ExecutionTimeInput accepts an execution time as a JSON number or string.
// Strings follow ParseExecutionTime: unparsable input means zero work, while
// out-of-range input is rejected like an out-of-range number.
type ExecutionTimeInput int

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExecutionTimeInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := ParseExecutionTime(s)
		if err != nil {
			return err
		}
		*e = ExecutionTimeInput(n)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("execution time %s is not an integer: %w", data, ErrInvalidInput)
	}
	if n < 0 {
		return fmt.Errorf("execution time %d must be non-negative: %w", n, ErrInvalidInput)
	}
	*e = ExecutionTimeInput(n)
	return nil
}

// Ints converts inputs to plain execution times.
func Ints(inputs []ExecutionTimeInput) []int {
	out := make([]int, len(inputs))
	for i, in := range inputs {
		out[i] = int(in)
	}
	return out
}
