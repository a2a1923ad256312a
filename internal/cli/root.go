package cli

import (
	"log/slog"
	"os"

	"github.com/me/rrsim/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking RRSIM_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("RRSIM_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the rrsim CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rrsim",
		Short: "rrsim: round-robin CPU scheduling simulator",
		Long: `rrsim simulates round-robin scheduling of a batch of processes.

Use "rrsim simulate" to run a workload locally, or the remaining commands to
drive simulations hosted by an rrsim server.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "rrsim server URL (or RRSIM_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSimulateCmd(),
		newCreateCmd(),
		newTickCmd(),
		newRunCmd(),
		newPlayCmd(),
		newPauseCmd(),
		newStatusCmd(),
		newGanttCmd(),
		newListCmd(),
		newDeleteCmd(),
	)

	return root
}
