package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/me/rrsim/pkg/model"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/v1/simulations/"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list simulations: %w", err)
			}

			var sims []model.Simulation
			if err := resp.decode(&sims); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sims) == 0 {
				fmt.Fprintln(out, "No simulations found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-9s  %-7s  %-10s  %-16s  %s\n", "ID", "STATE", "QUANTUM", "PROCESSES", "NAME", "CREATED")
			fmt.Fprintf(out, "%-40s  %-9s  %-7s  %-10s  %-16s  %s\n", "--", "-----", "-------", "---------", "----", "-------")
			for _, sim := range sims {
				fmt.Fprintf(out, "%-40s  %-9s  %-7d  %-10d  %-16s  %s\n",
					sim.ID, sim.State, sim.Quantum, len(sim.ExecutionTimes), sim.Name, humanize.Time(sim.CreatedAt))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(sims), resp.Pagination.Total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (PENDING, RUNNING, PAUSED, FINISHED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of simulations to show")
	return cmd
}
