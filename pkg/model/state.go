package model

// ProcessState represents the lifecycle state of a simulated Process.
type ProcessState string

const (
	ProcessStateWaiting   ProcessState = "WAITING"
	ProcessStateRunning   ProcessState = "RUNNING"
	ProcessStateHalted    ProcessState = "HALTED"
	ProcessStateCompleted ProcessState = "COMPLETED"
)

// String returns the string representation of the process state.
func (s ProcessState) String() string {
	return string(s)
}

// IsTerminal returns true if the process can no longer be dispatched.
func (s ProcessState) IsTerminal() bool {
	return s == ProcessStateCompleted
}

// ValidProcessTransitions defines the allowed state transitions for Processes.
var ValidProcessTransitions = map[ProcessState][]ProcessState{
	ProcessStateWaiting: {ProcessStateRunning},
	ProcessStateRunning: {ProcessStateHalted, ProcessStateCompleted},
	ProcessStateHalted:  {ProcessStateRunning},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ProcessState) CanTransitionTo(next ProcessState) bool {
	for _, allowed := range ValidProcessTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SimulationState represents the lifecycle state of a stored Simulation.
type SimulationState string

const (
	SimulationStatePending  SimulationState = "PENDING"
	SimulationStateRunning  SimulationState = "RUNNING"
	SimulationStatePaused   SimulationState = "PAUSED"
	SimulationStateFinished SimulationState = "FINISHED"
)

// String returns the string representation of the simulation state.
func (s SimulationState) String() string {
	return string(s)
}

// IsTerminal returns true if the simulation is in a final state.
func (s SimulationState) IsTerminal() bool {
	return s == SimulationStateFinished
}

// IsValid reports whether s is one of the known simulation states.
func (s SimulationState) IsValid() bool {
	switch s {
	case SimulationStatePending, SimulationStateRunning, SimulationStatePaused, SimulationStateFinished:
		return true
	}
	return false
}

// ValidSimulationTransitions defines the allowed state transitions for Simulations.
var ValidSimulationTransitions = map[SimulationState][]SimulationState{
	SimulationStatePending: {SimulationStateRunning, SimulationStateFinished},
	SimulationStateRunning: {SimulationStatePaused, SimulationStateFinished},
	SimulationStatePaused:  {SimulationStateRunning, SimulationStateFinished},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s SimulationState) CanTransitionTo(next SimulationState) bool {
	for _, allowed := range ValidSimulationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Opcode is the symbolic instruction shown in a process's instruction register.
// It is illustrative only and never drives a scheduling decision.
type Opcode string

const (
	OpcodeLoad Opcode = "LOAD"
	OpcodeAdd  Opcode = "ADD"
	OpcodeSub  Opcode = "SUB"
)

// Next returns the opcode loaded on the following dispatch.
func (o Opcode) Next() Opcode {
	if o == OpcodeAdd {
		return OpcodeSub
	}
	return OpcodeAdd
}
