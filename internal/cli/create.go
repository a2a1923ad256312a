package cli

import (
	"fmt"

	"github.com/me/rrsim/pkg/model"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var (
		name      string
		quantum   string
		execTimes string
		file      string
		play      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a simulation on the server",
		Example: `  rrsim create --name demo --quantum 2 --exec 4,2,6
  rrsim create --file workload.yaml --play`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, times, err := resolveWorkload(cmd, file, quantum, execTimes)
			if err != nil {
				return err
			}
			if name == "" && file != "" {
				if wl, err := loadWorkload(file); err == nil {
					name = wl.Name
				}
			}

			resp, err := client.Post("/api/v1/simulations/", map[string]any{
				"name":            name,
				"quantum":         q,
				"execution_times": times,
			})
			if err != nil {
				return fmt.Errorf("create simulation: %w", err)
			}
			var sim model.Simulation
			if err := resp.decode(&sim); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulation created: %s\n", sim.ID)
			fmt.Fprintf(out, "  Quantum:   %d\n", sim.Quantum)
			fmt.Fprintf(out, "  Processes: %d\n", len(sim.Processes))

			if play {
				if _, err := client.Put(simulationPath(sim.ID, "play"), nil); err != nil {
					return fmt.Errorf("play simulation: %w", err)
				}
				fmt.Fprintln(out, "  Auto-play: on")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Simulation name")
	cmd.Flags().StringVarP(&quantum, "quantum", "q", "2", "Quantum size (integer >= 1)")
	cmd.Flags().StringVarP(&execTimes, "exec", "e", "", "Comma-separated execution times, e.g. 4,2,6")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML workload file")
	cmd.Flags().BoolVar(&play, "play", false, "Start auto-play immediately")

	return cmd
}
