package cli

import (
	"fmt"

	"github.com/me/rrsim/internal/render"
	"github.com/me/rrsim/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var iterations bool

	cmd := &cobra.Command{
		Use:   "status <simulation_id>",
		Short: "Show a simulation's process table and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := client.GetSimulation(args[0])
			if err != nil {
				return fmt.Errorf("get simulation: %w", err)
			}

			out := cmd.OutOrStdout()
			p := render.New(out)

			fmt.Fprintf(out, "Simulation: %s\n", sim.ID)
			if sim.Name != "" {
				fmt.Fprintf(out, "  Name:      %s\n", sim.Name)
			}
			fmt.Fprintf(out, "  State:     %s\n", sim.State)
			fmt.Fprintf(out, "  Quantum:   %d\n", sim.Quantum)
			fmt.Fprintf(out, "  Time:      %d (iteration %d)\n", sim.CurrentTime, sim.Iterations)
			if len(sim.Queue) > 0 {
				fmt.Fprintf(out, "  Queue:     %v\n", sim.Queue)
			}
			fmt.Fprintf(out, "  Created:   %s\n", sim.CreatedAt.Format("2006-01-02 15:04:05"))
			if sim.CompletedAt != nil {
				fmt.Fprintf(out, "  Completed: %s\n", sim.CompletedAt.Format("2006-01-02 15:04:05"))
			}

			if len(sim.Processes) > 0 {
				fmt.Fprintln(out)
				if err := p.ProcessTable(sim.Processes); err != nil {
					return err
				}
			}

			if iterations {
				resp, err := client.Get(simulationPath(sim.ID, "iterations"))
				if err != nil {
					return fmt.Errorf("get iterations: %w", err)
				}
				var hist []model.IterationSnapshot
				if err := resp.decode(&hist); err != nil {
					return err
				}
				fmt.Fprintln(out)
				if err := p.IterationCards(hist); err != nil {
					return err
				}
			}

			if sim.Summary != nil {
				fmt.Fprintln(out)
				return p.Summary(*sim.Summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&iterations, "iterations", false, "Also show per-iteration snapshots")
	return cmd
}
