package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/me/rrsim/internal/logging"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: time.Second}
}

// Loop implements the Scheduler interface with a ticker that steps every
// auto-playing simulation once per interval.
type Loop struct {
	stepper Stepper
	config  Config
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewLoop creates a new scheduler loop.
func NewLoop(st Stepper, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Loop{
		stepper: st,
		config:  cfg,
		logger:  logger.With("component", "scheduler"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick to finish.
func (l *Loop) Stop() error {
	select {
	case <-l.doneCh:
		return nil
	default:
	}
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick steps every auto-playing simulation once. A failing simulation is
// logged and does not block the others.
func (l *Loop) Tick(ctx context.Context) error {
	ids, err := l.stepper.RunningIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.stepper.Step(ctx, id); err != nil {
			l.logger.Error("step simulation", "simulation_id", id, "error", err)
			continue
		}
		l.logger.Debug("simulation stepped", "simulation_id", id)
	}
	return nil
}
