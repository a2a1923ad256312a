package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/rrsim/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

const simulationColumns = `id, name, quantum, execution_times, state, iterations, clock, created_at, updated_at, completed_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSimulation(row rowScanner) (*model.Simulation, error) {
	var sim model.Simulation
	var timesJSON, state, createdAt, updatedAt string
	var completedAt *string

	if err := row.Scan(&sim.ID, &sim.Name, &sim.Quantum, &timesJSON, &state,
		&sim.Iterations, &sim.CurrentTime, &createdAt, &updatedAt, &completedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(timesJSON), &sim.ExecutionTimes); err != nil {
		return nil, fmt.Errorf("unmarshal execution_times: %w", err)
	}
	sim.State = model.SimulationState(state)
	sim.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sim.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if completedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *completedAt)
		sim.CompletedAt = &t
	}
	return &sim, nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}

// --- Simulation CRUD ---

func (s *SQLiteStore) CreateSimulation(ctx context.Context, sim *model.Simulation) error {
	s.logger.Debug("sql", "op", "insert", "table", "simulations", "id", sim.ID)

	timesJSON, err := json.Marshal(sim.ExecutionTimes)
	if err != nil {
		return fmt.Errorf("marshal execution_times: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO simulations (`+simulationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sim.ID, sim.Name, sim.Quantum, string(timesJSON), string(sim.State),
		sim.Iterations, sim.CurrentTime,
		sim.CreatedAt.Format(time.RFC3339Nano), sim.UpdatedAt.Format(time.RFC3339Nano),
		formatOptionalTime(sim.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) GetSimulation(ctx context.Context, id string) (*model.Simulation, error) {
	s.logger.Debug("sql", "op", "select", "table", "simulations", "id", id)

	sim, err := scanSimulation(s.db.QueryRowContext(ctx,
		`SELECT `+simulationColumns+` FROM simulations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sim, nil
}

func (s *SQLiteStore) ListSimulations(ctx context.Context, opts model.ListOptions) ([]*model.Simulation, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "simulations", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereSQL := ""
	var args []any
	if opts.State != "" {
		whereSQL = " WHERE state = ?"
		args = append(args, opts.State)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM simulations`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(args, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+simulationColumns+` FROM simulations`+whereSQL+
			` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sims []*model.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, 0, err
		}
		sims = append(sims, sim)
	}
	return sims, total, rows.Err()
}

func (s *SQLiteStore) UpdateSimulation(ctx context.Context, sim *model.Simulation) error {
	s.logger.Debug("sql", "op", "update", "table", "simulations", "id", sim.ID)
	return updateSimulation(ctx, s.db, sim)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateSimulation(ctx context.Context, db execer, sim *model.Simulation) error {
	result, err := db.ExecContext(ctx,
		`UPDATE simulations SET name = ?, state = ?, iterations = ?, clock = ?, updated_at = ?, completed_at = ?
		 WHERE id = ?`,
		sim.Name, string(sim.State), sim.Iterations, sim.CurrentTime,
		sim.UpdatedAt.Format(time.RFC3339Nano), formatOptionalTime(sim.CompletedAt),
		sim.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("simulation %s not found", sim.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteSimulation(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "simulations", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM iterations WHERE simulation_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("simulation %s not found", id)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetSimulationsByState(ctx context.Context, state model.SimulationState) ([]*model.Simulation, error) {
	s.logger.Debug("sql", "op", "select_by_state", "table", "simulations", "state", state)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+simulationColumns+` FROM simulations WHERE state = ? ORDER BY created_at, id`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sims []*model.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, rows.Err()
}

// --- Iteration log ---

// RecordTick appends rec and updates sim's progress in one transaction.
func (s *SQLiteStore) RecordTick(ctx context.Context, sim *model.Simulation, rec *model.IterationRecord) error {
	s.logger.Debug("sql", "op", "insert", "table", "iterations", "simulation_id", rec.SimulationID, "iteration", rec.Iteration)

	snapJSON, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	segsJSON, err := json.Marshal(rec.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO iterations (simulation_id, iteration, time, dispatched, outcome, snapshot, segments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SimulationID, rec.Iteration, rec.Time, rec.Dispatched, string(rec.Outcome),
		string(snapJSON), string(segsJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert iteration %d: %w", rec.Iteration, err)
	}
	if err := updateSimulation(ctx, tx, sim); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListIterations(ctx context.Context, simulationID string) ([]*model.IterationRecord, error) {
	s.logger.Debug("sql", "op", "list", "table", "iterations", "simulation_id", simulationID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT simulation_id, iteration, time, dispatched, outcome, snapshot, segments, created_at
		 FROM iterations WHERE simulation_id = ? ORDER BY iteration`, simulationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*model.IterationRecord
	for rows.Next() {
		var rec model.IterationRecord
		var outcome, snapJSON, segsJSON, createdAt string
		if err := rows.Scan(&rec.SimulationID, &rec.Iteration, &rec.Time, &rec.Dispatched, &outcome,
			&snapJSON, &segsJSON, &createdAt); err != nil {
			return nil, err
		}
		rec.Outcome = model.ProcessState(outcome)
		if err := json.Unmarshal([]byte(snapJSON), &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(segsJSON), &rec.Segments); err != nil {
			return nil, fmt.Errorf("unmarshal segments: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
