// Package session keeps live simulation engines in memory and mirrors their
// progress to the store. A simulation missing from memory is rebuilt by
// replaying its stored configuration and checking every replayed tick against
// the stored iteration log.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/rrsim/internal/logging"
	"github.com/me/rrsim/internal/scheduler"
	"github.com/me/rrsim/internal/store"
	"github.com/me/rrsim/pkg/model"
)

var (
	// ErrNotFound is returned when no simulation has the requested ID.
	ErrNotFound = errors.New("simulation not found")

	// ErrLogMismatch is returned when replaying a simulation does not
	// reproduce its stored iteration log.
	ErrLogMismatch = errors.New("iteration log does not match replay")

	errEvicted = errors.New("session evicted")
)

// session pairs a stored simulation with its live engine.
type session struct {
	mu     sync.Mutex
	sim    *model.Simulation
	engine *scheduler.Engine

	// evicted is set under mu once the session is dropped from the manager.
	// Holders that were waiting on mu must not advance it.
	evicted bool
}

// Manager owns every live simulation. It implements scheduler.Stepper.
type Manager struct {
	store        store.Store
	logger       *slog.Logger
	maxProcesses int
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures optional Manager settings.
type Option func(*Manager)

// WithMaxProcesses caps the number of processes per simulation (0 = no cap).
func WithMaxProcesses(n int) Option {
	return func(m *Manager) {
		m.maxProcesses = n
	}
}

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager backed by st. A nil logger discards output.
func NewManager(st store.Store, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &Manager{
		store:    st,
		logger:   logger.With("component", "session"),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create configures a new simulation and persists it in PENDING state.
func (m *Manager) Create(ctx context.Context, name string, quantum int, executionTimes []int) (*model.Simulation, error) {
	if m.maxProcesses > 0 && len(executionTimes) > m.maxProcesses {
		return nil, fmt.Errorf("%d processes exceeds limit of %d: %w", len(executionTimes), m.maxProcesses, model.ErrInvalidInput)
	}

	engine := scheduler.NewEngine()
	if err := engine.Configure(quantum, executionTimes); err != nil {
		return nil, err
	}

	now := m.now()
	sim := &model.Simulation{
		ID:             "sim_" + uuid.New().String(),
		Name:           name,
		Quantum:        quantum,
		ExecutionTimes: append([]int(nil), executionTimes...),
		State:          model.SimulationStatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if engine.IsFinished() {
		sim.State = model.SimulationStateFinished
		sim.CompletedAt = &now
	}

	if err := m.store.CreateSimulation(ctx, sim); err != nil {
		return nil, fmt.Errorf("store simulation: %w", err)
	}

	m.mu.Lock()
	m.sessions[sim.ID] = &session{sim: sim, engine: engine}
	m.mu.Unlock()

	m.logger.Info("simulation created", "simulation_id", sim.ID, "quantum", quantum, "processes", len(executionTimes))
	return m.Get(ctx, sim.ID)
}

// load returns the live session for id, rebuilding it from the store if needed.
func (m *Manager) load(ctx context.Context, id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	sim, err := m.store.GetSimulation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get simulation %s: %w", id, err)
	}
	if sim == nil {
		return nil, ErrNotFound
	}

	engine, err := m.replay(ctx, sim)
	if err != nil {
		return nil, err
	}

	s := &session{sim: sim, engine: engine}
	m.sessions[id] = s
	m.logger.Debug("simulation replayed", "simulation_id", id, "iterations", sim.Iterations)
	return s, nil
}

// replay rebuilds the engine for sim by re-running its stored ticks and
// checking each one against the iteration log.
func (m *Manager) replay(ctx context.Context, sim *model.Simulation) (*scheduler.Engine, error) {
	engine := scheduler.NewEngine()
	if err := engine.Configure(sim.Quantum, sim.ExecutionTimes); err != nil {
		return nil, fmt.Errorf("replay simulation %s: %w", sim.ID, err)
	}

	recs, err := m.store.ListIterations(ctx, sim.ID)
	if err != nil {
		return nil, fmt.Errorf("list iterations %s: %w", sim.ID, err)
	}
	if len(recs) != sim.Iterations {
		return nil, fmt.Errorf("simulation %s has %d logged iterations, want %d: %w",
			sim.ID, len(recs), sim.Iterations, ErrLogMismatch)
	}
	for _, rec := range recs {
		res, err := engine.Tick()
		if err != nil {
			return nil, fmt.Errorf("replay simulation %s tick %d: %w", sim.ID, rec.Iteration, err)
		}
		if res.Iteration != rec.Iteration || res.Time != rec.Time ||
			res.Dispatched != rec.Dispatched || res.Outcome != rec.Outcome {
			return nil, fmt.Errorf("simulation %s iteration %d: replayed %s -> %s at t=%d, logged %s -> %s at t=%d: %w",
				sim.ID, rec.Iteration, res.Dispatched, res.Outcome, res.Time,
				rec.Dispatched, rec.Outcome, rec.Time, ErrLogMismatch)
		}
	}
	return engine, nil
}

// acquire returns the live session for id with its lock held. A session
// evicted while the caller waited for the lock is replaced by a fresh load.
func (m *Manager) acquire(ctx context.Context, id string) (*session, error) {
	for attempt := 0; attempt < 3; attempt++ {
		s, err := m.load(ctx, id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !s.evicted {
			return s, nil
		}
		s.mu.Unlock()
	}
	return nil, fmt.Errorf("simulation %s: %w", id, errEvicted)
}

// evict drops s so the next access replays from the store. Callers hold s.mu.
func (m *Manager) evict(s *session) {
	s.evicted = true
	m.mu.Lock()
	if m.sessions[s.sim.ID] == s {
		delete(m.sessions, s.sim.ID)
	}
	m.mu.Unlock()
}

// view returns a detached copy of the simulation with computed fields.
// Callers hold s.mu.
func (s *session) view() *model.Simulation {
	v := *s.sim
	v.ExecutionTimes = append([]int(nil), s.sim.ExecutionTimes...)
	v.Processes = s.engine.Processes()
	v.Queue = s.engine.Queue()
	summary := s.engine.Summary()
	v.Summary = &summary
	return &v
}

// Get returns the simulation with its process table, queue and summary.
func (m *Manager) Get(ctx context.Context, id string) (*model.Simulation, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.view(), nil
}

// List returns stored simulations without computed fields.
func (m *Manager) List(ctx context.Context, opts model.ListOptions) ([]*model.Simulation, int, error) {
	return m.store.ListSimulations(ctx, opts)
}

// Tick advances simulation id by one quantum and persists the outcome.
func (m *Manager) Tick(ctx context.Context, id string) (model.TickResult, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return model.TickResult{}, err
	}
	defer s.mu.Unlock()
	return m.tickLocked(ctx, s)
}

func (m *Manager) tickLocked(ctx context.Context, s *session) (model.TickResult, error) {
	if s.evicted {
		return model.TickResult{}, fmt.Errorf("tick simulation %s: %w", s.sim.ID, errEvicted)
	}
	res, err := s.engine.Tick()
	if err != nil {
		return res, err
	}

	if res.Dispatched == "" {
		if res.Finished && !s.sim.State.IsTerminal() {
			if err := m.finish(ctx, s); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	now := m.now()
	prev := *s.sim
	s.sim.Iterations = res.Iteration
	s.sim.CurrentTime = res.Time
	s.sim.UpdatedAt = now
	if res.Finished {
		if err := s.sim.TransitionTo(model.SimulationStateFinished); err != nil {
			return res, err
		}
		s.sim.CompletedAt = &now
	}

	rec := &model.IterationRecord{
		SimulationID: s.sim.ID,
		Iteration:    res.Iteration,
		Time:         res.Time,
		Dispatched:   res.Dispatched,
		Outcome:      res.Outcome,
		Snapshot:     res.Snapshot,
		Segments:     res.Segments,
		CreatedAt:    now,
	}
	if err := m.store.RecordTick(ctx, s.sim, rec); err != nil {
		// The engine has advanced past the store; rebuild from the store next time.
		*s.sim = prev
		m.evict(s)
		return res, fmt.Errorf("record tick %d: %w", res.Iteration, err)
	}

	m.logger.Debug("tick", "simulation_id", s.sim.ID, "iteration", res.Iteration,
		"process", res.Dispatched, "outcome", res.Outcome, "time", res.Time)
	if res.Finished {
		m.logger.Info("simulation finished", "simulation_id", s.sim.ID,
			"iterations", res.Iteration, "total_time", res.Time)
	}
	return res, nil
}

// finish marks a simulation whose engine has nothing left to run.
func (m *Manager) finish(ctx context.Context, s *session) error {
	now := m.now()
	if err := s.sim.TransitionTo(model.SimulationStateFinished); err != nil {
		return err
	}
	s.sim.UpdatedAt = now
	s.sim.CompletedAt = &now
	return m.store.UpdateSimulation(ctx, s.sim)
}

// RunToCompletion ticks simulation id until it finishes and returns the
// number of ticks taken.
func (m *Manager) RunToCompletion(ctx context.Context, id string) (*model.Simulation, int, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	defer s.mu.Unlock()

	ticks := 0
	for !s.engine.IsFinished() {
		if err := ctx.Err(); err != nil {
			return s.view(), ticks, err
		}
		res, err := m.tickLocked(ctx, s)
		if err != nil {
			return s.view(), ticks, err
		}
		if res.Dispatched == "" {
			break
		}
		ticks++
	}
	if !s.sim.State.IsTerminal() {
		if err := m.finish(ctx, s); err != nil {
			return s.view(), ticks, err
		}
	}
	return s.view(), ticks, nil
}

// Play puts simulation id into auto-play; the scheduler loop advances it.
func (m *Manager) Play(ctx context.Context, id string) (*model.Simulation, error) {
	return m.setState(ctx, id, model.SimulationStateRunning)
}

// Pause stops auto-play for simulation id.
func (m *Manager) Pause(ctx context.Context, id string) (*model.Simulation, error) {
	return m.setState(ctx, id, model.SimulationStatePaused)
}

func (m *Manager) setState(ctx context.Context, id string, next model.SimulationState) (*model.Simulation, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	prev := *s.sim
	if err := s.sim.TransitionTo(next); err != nil {
		return nil, err
	}
	s.sim.UpdatedAt = m.now()
	if err := m.store.UpdateSimulation(ctx, s.sim); err != nil {
		*s.sim = prev
		return nil, fmt.Errorf("update simulation %s: %w", id, err)
	}
	m.logger.Info("simulation state changed", "simulation_id", id, "from", prev.State, "to", next)
	return s.view(), nil
}

// Delete removes simulation id from memory and the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := m.store.DeleteSimulation(ctx, id); err != nil {
		return fmt.Errorf("delete simulation %s: %w", id, err)
	}
	m.evict(s)
	m.logger.Info("simulation deleted", "simulation_id", id)
	return nil
}

// Gantt returns every timeline entry recorded for simulation id.
func (m *Manager) Gantt(ctx context.Context, id string) ([]model.TimelineEntry, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.engine.GanttSegments(), nil
}

// Iterations returns the per-tick snapshot history for simulation id.
func (m *Manager) Iterations(ctx context.Context, id string) ([]model.IterationSnapshot, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.engine.IterationHistory(), nil
}

// RunningIDs lists simulations in auto-play. Part of scheduler.Stepper.
func (m *Manager) RunningIDs(ctx context.Context) ([]string, error) {
	sims, err := m.store.GetSimulationsByState(ctx, model.SimulationStateRunning)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sims))
	for i, sim := range sims {
		ids[i] = sim.ID
	}
	return ids, nil
}

// Step ticks a simulation only if it is still in auto-play. Part of
// scheduler.Stepper.
func (m *Manager) Step(ctx context.Context, id string) error {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if s.sim.State != model.SimulationStateRunning {
		return nil
	}
	_, err = m.tickLocked(ctx, s)
	return err
}

var _ scheduler.Stepper = (*Manager)(nil)
