package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/rrsim/internal/config"
	"github.com/me/rrsim/internal/logging"
	"github.com/me/rrsim/internal/scheduler"
	"github.com/me/rrsim/internal/server"
	"github.com/me/rrsim/internal/session"
	"github.com/me/rrsim/internal/store"
	"github.com/me/rrsim/pkg/model"
)

func main() {
	defaults := config.DefaultServerConfig()
	var flagCfg config.ServerConfig

	flag.StringVar(&flagCfg.Addr, "addr", defaults.Addr, "Listen address")
	flag.StringVar(&flagCfg.LogLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&flagCfg.LogFormat, "log-format", defaults.LogFormat, "Log format (text, json)")
	flag.StringVar(&flagCfg.DBPath, "db", defaults.DBPath, "SQLite database path")
	flag.IntVar(&flagCfg.Simulation.Quantum, "quantum", defaults.Simulation.Quantum, "Quantum for create requests that omit one")
	flag.DurationVar(&flagCfg.Simulation.TickInterval, "tick-interval", defaults.Simulation.TickInterval, "Auto-play cadence")
	flag.IntVar(&flagCfg.Simulation.MaxProcesses, "max-processes", defaults.Simulation.MaxProcesses, "Maximum processes per simulation (0 = unlimited)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	configFile := flag.String("config", "", "Path to YAML config file")

	flag.Parse()

	// Precedence: defaults, then the config file, then explicit flags.
	cfg := defaults
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flagCfg.Addr
		case "log-level":
			cfg.LogLevel = flagCfg.LogLevel
		case "log-format":
			cfg.LogFormat = flagCfg.LogFormat
		case "db":
			cfg.DBPath = flagCfg.DBPath
		case "quantum":
			cfg.Simulation.Quantum = flagCfg.Simulation.Quantum
		case "tick-interval":
			cfg.Simulation.TickInterval = flagCfg.Simulation.TickInterval
		case "max-processes":
			cfg.Simulation.MaxProcesses = flagCfg.Simulation.MaxProcesses
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := logging.ValidateFormat(cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := model.ValidateQuantum(cfg.Simulation.Quantum); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --quantum: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	mgr := session.NewManager(st, logger, session.WithMaxProcesses(cfg.Simulation.MaxProcesses))

	sched := scheduler.NewLoop(mgr, scheduler.Config{PollInterval: cfg.Simulation.TickInterval}, logger)

	srv := server.New(cfg, mgr, sched, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "tick_interval", cfg.Simulation.TickInterval)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop scheduler before HTTP server.
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
