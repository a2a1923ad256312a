package model

// TimelineEntry is one Gantt segment. Dispatches span a full quantum;
// HALTED and COMPLETED markers are zero-width (Start == End).
type TimelineEntry struct {
	ProcessID    string       `json:"process_id" yaml:"process_id"`
	ProcessIndex int          `json:"process_index" yaml:"process_index"`
	Start        int          `json:"start" yaml:"start"`
	End          int          `json:"end" yaml:"end"`
	State        ProcessState `json:"state" yaml:"state"`
}

// Duration returns the width of the segment.
func (e TimelineEntry) Duration() int {
	return e.End - e.Start
}

// ProcessSnapshot is the per-process view captured in an IterationSnapshot.
type ProcessSnapshot struct {
	ID                  string       `json:"id" yaml:"id"`
	State               ProcessState `json:"state" yaml:"state"`
	RemainingTime       int          `json:"remaining_time" yaml:"remaining_time"`
	ProgramCounter      int          `json:"program_counter" yaml:"program_counter"`
	InstructionRegister Opcode       `json:"instruction_register" yaml:"instruction_register"`
}

// IterationSnapshot records every process after one tick settled.
type IterationSnapshot struct {
	Iteration int               `json:"iteration" yaml:"iteration"`
	Time      int               `json:"time" yaml:"time"`
	Processes []ProcessSnapshot `json:"processes" yaml:"processes"`
}

// Clone returns a copy that shares no backing array with s.
func (s IterationSnapshot) Clone() IterationSnapshot {
	c := s
	c.Processes = append([]ProcessSnapshot(nil), s.Processes...)
	return c
}

// TickResult is returned by every engine tick.
type TickResult struct {
	Iteration int `json:"iteration"`
	Time      int `json:"time"`

	// Dispatched is the label of the process that ran this tick; empty when
	// the tick was idle or the simulation had already finished.
	Dispatched string       `json:"dispatched,omitempty"`
	Outcome    ProcessState `json:"outcome,omitempty"`

	Processes []Process         `json:"processes"`
	Queue     []string          `json:"queue"`
	Segments  []TimelineEntry   `json:"segments"`
	Snapshot  IterationSnapshot `json:"snapshot"`

	Idle     bool `json:"idle"`
	Finished bool `json:"finished"`
}

// Summary aggregates metrics over a run.
type Summary struct {
	TotalTime         int     `json:"total_time" yaml:"total_time"`
	Iterations        int     `json:"iterations" yaml:"iterations"`
	ContextSwitches   int     `json:"context_switches" yaml:"context_switches"`
	Completed         int     `json:"completed" yaml:"completed"`
	Processes         int     `json:"processes" yaml:"processes"`
	AverageWaiting    float64 `json:"average_waiting" yaml:"average_waiting"`
	AverageTurnaround float64 `json:"average_turnaround" yaml:"average_turnaround"`
	Throughput        float64 `json:"throughput" yaml:"throughput"`
}
