// Package store persists simulation configurations and their iteration log.
package store

import (
	"context"

	"github.com/me/rrsim/pkg/model"
)

// Store defines the persistence layer for RRSim entities.
type Store interface {
	// Simulation CRUD
	CreateSimulation(ctx context.Context, sim *model.Simulation) error
	GetSimulation(ctx context.Context, id string) (*model.Simulation, error)
	ListSimulations(ctx context.Context, opts model.ListOptions) ([]*model.Simulation, int, error)
	UpdateSimulation(ctx context.Context, sim *model.Simulation) error
	DeleteSimulation(ctx context.Context, id string) error
	GetSimulationsByState(ctx context.Context, state model.SimulationState) ([]*model.Simulation, error)

	// Iteration log
	RecordTick(ctx context.Context, sim *model.Simulation, rec *model.IterationRecord) error
	ListIterations(ctx context.Context, simulationID string) ([]*model.IterationRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
