package cli

import (
	"fmt"

	"github.com/me/rrsim/internal/render"
	"github.com/me/rrsim/pkg/model"
	"github.com/spf13/cobra"
)

func newGanttCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gantt <simulation_id>",
		Short: "Draw a simulation's Gantt chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(simulationPath(args[0], "gantt"))
			if err != nil {
				return fmt.Errorf("get gantt: %w", err)
			}
			var segs []model.TimelineEntry
			if err := resp.decode(&segs); err != nil {
				return err
			}
			return render.New(cmd.OutOrStdout()).Gantt(segs)
		},
	}
}
