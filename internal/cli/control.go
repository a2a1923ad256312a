package cli

import (
	"fmt"

	"github.com/me/rrsim/internal/render"
	"github.com/me/rrsim/pkg/model"
	"github.com/spf13/cobra"
)

func newTickCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "tick <simulation_id>",
		Short: "Advance a simulation by one quantum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := render.New(cmd.OutOrStdout())
			for i := 0; i < count; i++ {
				res, err := client.Tick(args[0])
				if err != nil {
					return fmt.Errorf("tick: %w", err)
				}
				if err := p.TickLine(*res); err != nil {
					return err
				}
				if res.Finished {
					break
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of ticks")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <simulation_id>",
		Short: "Run a simulation until every process has completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(simulationPath(args[0], "run"), nil)
			if err != nil {
				return fmt.Errorf("run simulation: %w", err)
			}
			var data struct {
				Ticks      int              `json:"ticks"`
				Simulation model.Simulation `json:"simulation"`
			}
			if err := resp.decode(&data); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulation %s finished after %d ticks.\n\n", data.Simulation.ID, data.Ticks)
			if data.Simulation.Summary != nil {
				return render.New(out).Summary(*data.Simulation.Summary)
			}
			return nil
		},
	}
}

func newPlayCmd() *cobra.Command {
	return newPlaybackCmd("play", "Start auto-play for a simulation")
}

func newPauseCmd() *cobra.Command {
	return newPlaybackCmd("pause", "Pause auto-play for a simulation")
}

func newPlaybackCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <simulation_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Put(simulationPath(args[0], action), nil)
			if err != nil {
				return fmt.Errorf("%s simulation: %w", action, err)
			}
			var sim model.Simulation
			if err := resp.decode(&sim); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulation %s: %s (iteration %d, t=%d)\n",
				sim.ID, sim.State, sim.Iterations, sim.CurrentTime)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <simulation_id>",
		Short: "Delete a simulation and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete(simulationPath(args[0])); err != nil {
				return fmt.Errorf("delete simulation: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulation deleted: %s\n", args[0])
			return nil
		},
	}
}
