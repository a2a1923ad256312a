package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/me/rrsim/internal/render"
	"github.com/me/rrsim/internal/scheduler"
	"github.com/me/rrsim/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// workload is the YAML file accepted by --file. Values are kept as strings so
// they go through the same parsing as command-line input.
type workload struct {
	Name           string   `yaml:"name"`
	Quantum        string   `yaml:"quantum"`
	ExecutionTimes []string `yaml:"execution_times"`
}

func loadWorkload(path string) (*workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	var wl workload
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse workload %s: %w", path, err)
	}
	return &wl, nil
}

// splitExec splits a comma-separated list, keeping empty entries.
func splitExec(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// resolveWorkload merges --file with --quantum/--exec; explicit flags win.
func resolveWorkload(cmd *cobra.Command, file, quantumFlag, execFlag string) (quantum int, times []int, err error) {
	quantumIn, execIn := quantumFlag, splitExec(execFlag)
	if file != "" {
		wl, err := loadWorkload(file)
		if err != nil {
			return 0, nil, err
		}
		if !cmd.Flags().Changed("quantum") && wl.Quantum != "" {
			quantumIn = wl.Quantum
		}
		if !cmd.Flags().Changed("exec") {
			execIn = wl.ExecutionTimes
		}
	}

	quantum, err = model.ParseQuantum(quantumIn)
	if err != nil {
		return 0, nil, err
	}
	times, err = model.ParseExecutionTimes(execIn)
	if err != nil {
		return 0, nil, err
	}
	return quantum, times, nil
}

// report is the structured output of a local simulation.
type report struct {
	Quantum    int                       `json:"quantum" yaml:"quantum"`
	Processes  []model.Process           `json:"processes" yaml:"processes"`
	Gantt      []model.TimelineEntry     `json:"gantt" yaml:"gantt"`
	Iterations []model.IterationSnapshot `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Summary    model.Summary             `json:"summary" yaml:"summary"`
}

func newSimulateCmd() *cobra.Command {
	var (
		quantum    string
		execTimes  string
		file       string
		output     string
		iterations bool
		delay      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a round-robin simulation locally",
		Long: `Simulate round-robin scheduling without a server.

Execution times are given with --exec as a comma-separated list, or in a YAML
workload file with --file:

  quantum: 2
  execution_times: [4, 2, 6]

Empty or non-numeric execution times count as zero work.`,
		Example: `  rrsim simulate --quantum 2 --exec 4,2,6
  rrsim simulate --file workload.yaml --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
			}

			q, times, err := resolveWorkload(cmd, file, quantum, execTimes)
			if err != nil {
				return err
			}

			engine := scheduler.NewEngine()
			if err := engine.Configure(q, times); err != nil {
				return err
			}
			logger.Debug("simulate", "quantum", q, "processes", len(times))

			out := cmd.OutOrStdout()
			p := render.New(out)
			text := output == "text"

			for !engine.IsFinished() {
				res, err := engine.Tick()
				if err != nil {
					return err
				}
				if res.Dispatched == "" {
					break
				}
				if text {
					if err := p.TickLine(res); err != nil {
						return err
					}
					if delay > 0 {
						time.Sleep(delay)
					}
				}
			}

			rep := report{
				Quantum:   q,
				Processes: engine.Processes(),
				Gantt:     engine.GanttSegments(),
				Summary:   engine.Summary(),
			}
			if iterations {
				rep.Iterations = engine.IterationHistory()
			}

			switch output {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(rep); err != nil {
					return err
				}
				return enc.Close()
			}
			return printReport(out, p, rep)
		},
	}

	cmd.Flags().StringVarP(&quantum, "quantum", "q", "2", "Quantum size (integer >= 1)")
	cmd.Flags().StringVarP(&execTimes, "exec", "e", "", "Comma-separated execution times, e.g. 4,2,6")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML workload file")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	cmd.Flags().BoolVar(&iterations, "iterations", false, "Include per-iteration process snapshots")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between ticks in text output, e.g. 500ms")

	return cmd
}

func printReport(w io.Writer, p *render.Printer, rep report) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Processes:")
	if err := p.ProcessTable(rep.Processes); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Gantt:")
	if err := p.Gantt(rep.Gantt); err != nil {
		return err
	}
	if len(rep.Iterations) > 0 {
		fmt.Fprintln(w)
		if err := p.IterationCards(rep.Iterations); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	return p.Summary(rep.Summary)
}
