package scheduler

import (
	"fmt"

	"github.com/me/rrsim/internal/queue"
	"github.com/me/rrsim/internal/timeline"
	"github.com/me/rrsim/pkg/model"
)

// Engine is the round-robin state machine. It is synchronous and not safe for
// concurrent use; callers serialize Configure and Tick.
//
// The simulated clock advances only when a process is dispatched, so an idle
// or finished tick never moves time.
type Engine struct {
	quantum    int
	processes  []*model.Process
	ready      *queue.ReadyQueue
	recorder   *timeline.Recorder
	clock      int
	iterations int
	configured bool

	contextSwitches int
	lastDispatched  int
}

// NewEngine creates an unconfigured Engine.
func NewEngine() *Engine {
	return &Engine{
		ready:          queue.New(),
		recorder:       timeline.NewRecorder(),
		lastDispatched: -1,
	}
}

// Configure replaces all engine state with quantum and one WAITING process
// per execution time, queued in submission order. Workloads that cannot finish
// within model.MaxSimulatedTime are rejected. On error the previous state is
// left untouched.
func (e *Engine) Configure(quantum int, executionTimes []int) error {
	if err := model.ValidateQuantum(quantum); err != nil {
		return err
	}

	processes := make([]*model.Process, len(executionTimes))
	ready := queue.New()
	for i, exec := range executionTimes {
		p, err := model.NewProcess(i, exec)
		if err != nil {
			return err
		}
		processes[i] = p
		if err := ready.Enqueue(p); err != nil {
			return err
		}
	}
	if err := model.ValidateWorkload(quantum, executionTimes); err != nil {
		return err
	}

	e.quantum = quantum
	e.processes = processes
	e.ready = ready
	e.recorder.Reset()
	e.clock = 0
	e.iterations = 0
	e.contextSwitches = 0
	e.lastDispatched = -1
	e.configured = true
	return nil
}

// Tick advances the simulation by one quantum: it dispatches the front of the
// ready queue, then either completes the process or preempts it to the back.
// Ticking an idle or finished engine changes nothing.
func (e *Engine) Tick() (model.TickResult, error) {
	if !e.configured {
		return model.TickResult{}, model.ErrNotConfigured
	}

	if e.IsFinished() {
		return e.settledResult(true, false), nil
	}
	if e.ready.IsEmpty() {
		return e.settledResult(false, true), nil
	}

	mark := e.recorder.Len()
	start := e.clock
	end := start + e.quantum

	p, err := e.ready.Dequeue()
	if err != nil {
		return model.TickResult{}, err
	}
	if err := p.TransitionTo(model.ProcessStateRunning); err != nil {
		return model.TickResult{}, fmt.Errorf("dispatch: %w", err)
	}
	if p.StartTime == nil {
		t := start
		p.StartTime = &t
	}
	if e.lastDispatched != p.Index {
		if e.lastDispatched >= 0 {
			e.contextSwitches++
		}
		e.lastDispatched = p.Index
	}
	e.recorder.Record(model.TimelineEntry{
		ProcessID:    p.ID,
		ProcessIndex: p.Index,
		Start:        start,
		End:          end,
		State:        model.ProcessStateRunning,
	})

	p.InstructionRegister = p.InstructionRegister.Next()
	p.ProgramCounter += e.quantum

	if p.RemainingTime <= e.quantum {
		if err := p.TransitionTo(model.ProcessStateCompleted); err != nil {
			return model.TickResult{}, fmt.Errorf("complete: %w", err)
		}
		p.RemainingTime = 0
		done := end
		p.CompletionTime = &done
		p.TurnaroundTime = done - p.ArrivalTime
		p.WaitingTime = p.TurnaroundTime - p.ExecutionTime
	} else {
		if err := p.TransitionTo(model.ProcessStateHalted); err != nil {
			return model.TickResult{}, fmt.Errorf("preempt: %w", err)
		}
		p.RemainingTime -= e.quantum
		if err := e.ready.Enqueue(p); err != nil {
			return model.TickResult{}, fmt.Errorf("preempt: %w", err)
		}
	}
	e.recorder.Record(model.TimelineEntry{
		ProcessID:    p.ID,
		ProcessIndex: p.Index,
		Start:        end,
		End:          end,
		State:        p.State,
	})

	e.clock = end
	e.iterations++
	snap := e.capture()
	e.recorder.Snapshot(snap)

	return model.TickResult{
		Iteration:  e.iterations,
		Time:       e.clock,
		Dispatched: p.ID,
		Outcome:    p.State,
		Processes:  e.Processes(),
		Queue:      e.ready.IDs(),
		Segments:   e.recorder.SegmentsSince(mark),
		Snapshot:   snap,
		Finished:   e.IsFinished(),
	}, nil
}

// settledResult reports the current state without advancing anything.
func (e *Engine) settledResult(finished, idle bool) model.TickResult {
	snap, ok := e.recorder.Latest()
	if !ok {
		snap = e.capture()
	}
	return model.TickResult{
		Iteration: e.iterations,
		Time:      e.clock,
		Processes: e.Processes(),
		Queue:     e.ready.IDs(),
		Segments:  []model.TimelineEntry{},
		Snapshot:  snap,
		Idle:      idle,
		Finished:  finished,
	}
}

func (e *Engine) capture() model.IterationSnapshot {
	procs := make([]model.ProcessSnapshot, len(e.processes))
	for i, p := range e.processes {
		procs[i] = p.Snapshot()
	}
	return model.IterationSnapshot{Iteration: e.iterations, Time: e.clock, Processes: procs}
}

// IsFinished reports whether the ready queue is drained and every process has
// no remaining work. An unconfigured engine is never finished.
func (e *Engine) IsFinished() bool {
	if !e.configured || !e.ready.IsEmpty() {
		return false
	}
	for _, p := range e.processes {
		if p.RemainingTime != 0 {
			return false
		}
	}
	return true
}

// Configured reports whether Configure has succeeded at least once.
func (e *Engine) Configured() bool {
	return e.configured
}

// Quantum returns the configured quantum size.
func (e *Engine) Quantum() int {
	return e.quantum
}

// CurrentTime returns the simulated clock.
func (e *Engine) CurrentTime() int {
	return e.clock
}

// Iterations returns the number of effective ticks so far.
func (e *Engine) Iterations() int {
	return e.iterations
}

// Processes returns copies of all processes in index order.
func (e *Engine) Processes() []model.Process {
	out := make([]model.Process, len(e.processes))
	for i, p := range e.processes {
		out[i] = p.Clone()
	}
	return out
}

// Queue returns the ready queue labels, front to back.
func (e *Engine) Queue() []string {
	return e.ready.IDs()
}

// GanttSegments returns all recorded timeline entries.
func (e *Engine) GanttSegments() []model.TimelineEntry {
	return e.recorder.GanttSegments()
}

// IterationHistory returns all recorded iteration snapshots.
func (e *Engine) IterationHistory() []model.IterationSnapshot {
	return e.recorder.IterationHistory()
}

// Summary aggregates run metrics over completed processes.
func (e *Engine) Summary() model.Summary {
	s := model.Summary{
		TotalTime:       e.clock,
		Iterations:      e.iterations,
		ContextSwitches: e.contextSwitches,
		Processes:       len(e.processes),
	}
	var waiting, turnaround int
	for _, p := range e.processes {
		if p.State != model.ProcessStateCompleted {
			continue
		}
		s.Completed++
		waiting += p.DisplayWaiting()
		turnaround += p.DisplayTurnaround()
	}
	if s.Completed > 0 {
		s.AverageWaiting = float64(waiting) / float64(s.Completed)
		s.AverageTurnaround = float64(turnaround) / float64(s.Completed)
	}
	if s.TotalTime > 0 {
		s.Throughput = float64(s.Completed) / float64(s.TotalTime)
	}
	return s
}
