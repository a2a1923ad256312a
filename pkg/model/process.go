package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxSimulatedTime bounds the clock of a single run, so a workload can always
// be driven to completion without overflowing time arithmetic.
const MaxSimulatedTime = 1_000_000

// Process is one simulated process. It is created at configuration time and
// mutated only by the scheduler engine.
type Process struct {
	// Index is the stable position of the process in the simulation. It is
	// assigned at creation and is independent of the display label.
	Index int    `json:"index" yaml:"index"`
	ID    string `json:"id" yaml:"id"`

	ArrivalTime   int `json:"arrival_time" yaml:"arrival_time"`
	ExecutionTime int `json:"execution_time" yaml:"execution_time"`
	RemainingTime int `json:"remaining_time" yaml:"remaining_time"`

	// WaitingTime and TurnaroundTime are set once the process completes.
	WaitingTime    int `json:"waiting_time" yaml:"waiting_time"`
	TurnaroundTime int `json:"turnaround_time" yaml:"turnaround_time"`

	State          ProcessState `json:"state" yaml:"state"`
	StartTime      *int         `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	CompletionTime *int         `json:"completion_time,omitempty" yaml:"completion_time,omitempty"`

	ProgramCounter      int    `json:"program_counter" yaml:"program_counter"`
	InstructionRegister Opcode `json:"instruction_register" yaml:"instruction_register"`
}

// ProcessLabel returns the display label for the process at index.
func ProcessLabel(index int) string {
	return "P" + strconv.Itoa(index+1)
}

// NewProcess creates a WAITING process for the given submission index.
func NewProcess(index, executionTime int) (*Process, error) {
	if index < 0 {
		return nil, fmt.Errorf("process index %d: %w", index, ErrInvalidInput)
	}
	if executionTime < 0 {
		return nil, fmt.Errorf("execution time %d for %s must be non-negative: %w",
			executionTime, ProcessLabel(index), ErrInvalidInput)
	}
	return &Process{
		Index:               index,
		ID:                  ProcessLabel(index),
		ArrivalTime:         index,
		ExecutionTime:       executionTime,
		RemainingTime:       executionTime,
		State:               ProcessStateWaiting,
		InstructionRegister: OpcodeLoad,
	}, nil
}

// TransitionTo moves the process to next, rejecting transitions outside
// ValidProcessTransitions.
func (p *Process) TransitionTo(next ProcessState) error {
	if !p.State.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "process", ID: p.ID, From: string(p.State), To: string(next)}
	}
	p.State = next
	return nil
}

// DisplayWaiting returns the waiting time clamped to zero.
func (p *Process) DisplayWaiting() int {
	return max(p.WaitingTime, 0)
}

// DisplayTurnaround returns the turnaround time clamped to zero.
func (p *Process) DisplayTurnaround() int {
	return max(p.TurnaroundTime, 0)
}

// Snapshot returns the display view captured in iteration history.
func (p *Process) Snapshot() ProcessSnapshot {
	return ProcessSnapshot{
		ID:                  p.ID,
		State:               p.State,
		RemainingTime:       p.RemainingTime,
		ProgramCounter:      p.ProgramCounter,
		InstructionRegister: p.InstructionRegister,
	}
}

// Clone returns a deep copy of the process.
func (p *Process) Clone() Process {
	c := *p
	if p.StartTime != nil {
		v := *p.StartTime
		c.StartTime = &v
	}
	if p.CompletionTime != nil {
		v := *p.CompletionTime
		c.CompletionTime = &v
	}
	return c
}

// ParseExecutionTime converts user input into an execution time.
// Empty or non-numeric input means zero work; a negative number is rejected.
func ParseExecutionTime(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("execution time %q is out of range: %w", s, ErrInvalidInput)
	}
	if err != nil {
		return 0, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("execution time %q must be non-negative: %w", s, ErrInvalidInput)
	}
	return n, nil
}

// ParseExecutionTimes parses each entry with ParseExecutionTime.
func ParseExecutionTimes(inputs []string) ([]int, error) {
	times := make([]int, len(inputs))
	for i, in := range inputs {
		n, err := ParseExecutionTime(in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ProcessLabel(i), err)
		}
		times[i] = n
	}
	return times, nil
}

// ParseQuantum converts user input into a quantum size. Unlike execution
// times, a malformed or non-positive quantum is rejected rather than coerced.
func ParseQuantum(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("quantum %q is not an integer: %w", s, ErrInvalidInput)
	}
	if err := ValidateQuantum(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateQuantum checks that q is a positive quantum size no larger than
// MaxSimulatedTime.
func ValidateQuantum(q int) error {
	if q < 1 {
		return fmt.Errorf("quantum %d must be positive: %w", q, ErrInvalidInput)
	}
	if q > MaxSimulatedTime {
		return fmt.Errorf("quantum %d exceeds %d: %w", q, MaxSimulatedTime, ErrInvalidInput)
	}
	return nil
}

// ValidateWorkload checks that running executionTimes to completion with
// quantum finishes within MaxSimulatedTime. Every dispatch costs a full
// quantum, and a zero-work process still takes one dispatch.
func ValidateWorkload(quantum int, executionTimes []int) error {
	if err := ValidateQuantum(quantum); err != nil {
		return err
	}
	limit := MaxSimulatedTime / quantum
	slices := 0
	for i, exec := range executionTimes {
		if exec < 0 {
			return fmt.Errorf("execution time %d for %s must be non-negative: %w",
				exec, ProcessLabel(i), ErrInvalidInput)
		}
		n := exec / quantum
		if exec == 0 || exec%quantum != 0 {
			n++
		}
		if n > limit-slices {
			return fmt.Errorf("workload needs more than %d time units at quantum %d: %w",
				MaxSimulatedTime, quantum, ErrInvalidInput)
		}
		slices += n
	}
	return nil
}
