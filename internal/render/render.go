// Package render formats simulation state for terminals: the process table,
// the Gantt chart, per-iteration cards, the run summary and one-line tick
// reports. Colors are only emitted when the destination is a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/me/rrsim/pkg/model"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiOrange = "\x1b[38;5;208m"
	ansiWhite  = "\x1b[97m"
)

// Printer writes rendered views to w.
type Printer struct {
	w     io.Writer
	color bool
}

// New returns a Printer for w. Color is on when w is a terminal and NO_COLOR
// is unset.
func New(w io.Writer) *Printer {
	return &Printer{w: w, color: IsTerminal(w) && os.Getenv("NO_COLOR") == ""}
}

// WithColor forces color on or off.
func (p *Printer) WithColor(on bool) *Printer {
	p.color = on
	return p
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Printer) paint(state model.ProcessState, s string) string {
	if !p.color {
		return s
	}
	var code string
	switch state {
	case model.ProcessStateRunning:
		code = ansiGreen
	case model.ProcessStateHalted:
		code = ansiOrange
	case model.ProcessStateCompleted:
		code = ansiWhite
	default:
		return s
	}
	return code + s + ansiReset
}

// ProcessTable writes one row per process.
func (p *Printer) ProcessTable(procs []model.Process) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARRIVAL\tEXEC\tREMAINING\tWAITING\tTURNAROUND\tIR\tPC\tSTATUS")
	for _, proc := range procs {
		waiting, turnaround := "-", "-"
		if proc.State == model.ProcessStateCompleted {
			waiting = strconv.Itoa(proc.DisplayWaiting())
			turnaround = strconv.Itoa(proc.DisplayTurnaround())
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			proc.ID, proc.ArrivalTime, proc.ExecutionTime, proc.RemainingTime,
			waiting, turnaround, proc.InstructionRegister, proc.ProgramCounter, proc.State)
	}
	return tw.Flush()
}

// ganttMaxWidth caps the number of cells in a Gantt row.
const ganttMaxWidth = 120

// Gantt draws one row per process, one cell per time unit, followed by the
// HALTED and COMPLETED markers in the order they happened. Runs longer than
// ganttMaxWidth are scaled so each cell covers several time units.
func (p *Printer) Gantt(segs []model.TimelineEntry) error {
	if len(segs) == 0 {
		_, err := fmt.Fprintln(p.w, "(no dispatches yet)")
		return err
	}

	total := 0
	labels := map[int]string{}
	for _, s := range segs {
		total = max(total, s.End)
		labels[s.ProcessIndex] = s.ProcessID
	}
	indexes := make([]int, 0, len(labels))
	labelW := 0
	for idx, label := range labels {
		indexes = append(indexes, idx)
		labelW = max(labelW, len(label))
	}
	sort.Ints(indexes)

	scale := 1
	if total > ganttMaxWidth {
		scale = (total + ganttMaxWidth - 1) / ganttMaxWidth
	}
	width := (total + scale - 1) / scale

	for _, idx := range indexes {
		cells := make([]string, width)
		for i := range cells {
			cells[i] = "."
		}
		for _, s := range segs {
			if s.ProcessIndex != idx || s.State != model.ProcessStateRunning || s.End <= s.Start {
				continue
			}
			for c := s.Start / scale; c <= (s.End-1)/scale && c < width; c++ {
				cells[c] = p.paint(model.ProcessStateRunning, "#")
			}
		}
		if _, err := fmt.Fprintf(p.w, "%-*s |%s|\n", labelW, labels[idx], strings.Join(cells, "")); err != nil {
			return err
		}
	}

	end := strconv.Itoa(total)
	pad := max(width-1-len(end), 1)
	axis := fmt.Sprintf("%s0%s%s", strings.Repeat(" ", labelW+2), strings.Repeat(" ", pad), end)
	if scale > 1 {
		axis += fmt.Sprintf("  (1 cell = %d units)", scale)
	}
	fmt.Fprintln(p.w, axis)

	var markers []string
	for _, s := range segs {
		if s.State == model.ProcessStateRunning {
			continue
		}
		markers = append(markers, p.paint(s.State, fmt.Sprintf("t=%d %s %s", s.End, s.ProcessID, s.State)))
	}
	_, err := fmt.Fprintln(p.w, strings.Join(markers, ", "))
	return err
}

// IterationCards writes one block per recorded iteration.
func (p *Printer) IterationCards(history []model.IterationSnapshot) error {
	for _, it := range history {
		fmt.Fprintf(p.w, "Iteration %d (t=%d)\n", it.Iteration, it.Time)
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, ps := range it.Processes {
			fmt.Fprintf(tw, "  %s\t%s\trem=%d\tPC=%d\tIR=%s\n",
				ps.ID, ps.State, ps.RemainingTime, ps.ProgramCounter, ps.InstructionRegister)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Summary writes the aggregate run metrics.
func (p *Printer) Summary(s model.Summary) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total time:\t%d\n", s.TotalTime)
	fmt.Fprintf(tw, "Iterations:\t%d\n", s.Iterations)
	fmt.Fprintf(tw, "Context switches:\t%d\n", s.ContextSwitches)
	fmt.Fprintf(tw, "Completed:\t%d/%d\n", s.Completed, s.Processes)
	fmt.Fprintf(tw, "Avg waiting:\t%.2f\n", s.AverageWaiting)
	fmt.Fprintf(tw, "Avg turnaround:\t%.2f\n", s.AverageTurnaround)
	fmt.Fprintf(tw, "Throughput:\t%.3f\n", s.Throughput)
	return tw.Flush()
}

// TickLine writes a one-line report of res and the ready queue after it.
func (p *Printer) TickLine(res model.TickResult) error {
	var line string
	switch {
	case res.Dispatched != "":
		line = fmt.Sprintf("[%d] t=%d %s -> %s", res.Iteration, res.Time, res.Dispatched, p.paint(res.Outcome, string(res.Outcome)))
	case res.Finished:
		line = fmt.Sprintf("[%d] t=%d finished", res.Iteration, res.Time)
	default:
		line = fmt.Sprintf("[%d] t=%d idle", res.Iteration, res.Time)
	}
	if len(res.Queue) > 0 {
		line += "  queue: " + strings.Join(res.Queue, " ")
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}
