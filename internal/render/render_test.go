package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/me/rrsim/internal/scheduler"
	"github.com/me/rrsim/pkg/model"
)

// finishedEngine runs quantum 2 over [4 2 6] to completion.
func finishedEngine(t *testing.T) *scheduler.Engine {
	t.Helper()
	e := scheduler.NewEngine()
	if err := e.Configure(2, []int{4, 2, 6}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	for !e.IsFinished() {
		if _, err := e.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	return e
}

func TestGantt(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf).Gantt(finishedEngine(t).GanttSegments()); err != nil {
		t.Fatalf("Gantt: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")

	want := []string{
		"P1 |##....##....|",
		"P2 |..##........|",
		"P3 |....##..####|",
		"    0         12",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
	markers := "t=2 P1 HALTED, t=4 P2 COMPLETED, t=6 P3 HALTED, t=8 P1 COMPLETED, t=10 P3 HALTED, t=12 P3 COMPLETED"
	if lines[4] != markers {
		t.Errorf("markers = %q, want %q", lines[4], markers)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("non-terminal output contains ANSI escapes")
	}
}

func TestGantt_Empty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Gantt(nil)
	if !strings.Contains(buf.String(), "no dispatches") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestGantt_Color(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithColor(true).Gantt(finishedEngine(t).GanttSegments())
	out := buf.String()
	for _, code := range []string{ansiGreen, ansiOrange, ansiWhite} {
		if !strings.Contains(out, code) {
			t.Errorf("colored output missing %q", code)
		}
	}
}

func TestGantt_ScalesLongRuns(t *testing.T) {
	segs := []model.TimelineEntry{
		{ProcessID: "P1", ProcessIndex: 0, Start: 0, End: 480_000, State: model.ProcessStateRunning},
		{ProcessID: "P1", ProcessIndex: 0, Start: 480_000, End: 480_000, State: model.ProcessStateCompleted},
		{ProcessID: "P2", ProcessIndex: 1, Start: 480_000, End: 960_000, State: model.ProcessStateRunning},
		{ProcessID: "P2", ProcessIndex: 1, Start: 960_000, End: 960_000, State: model.ProcessStateCompleted},
	}
	var buf bytes.Buffer
	if err := New(&buf).Gantt(segs); err != nil {
		t.Fatalf("Gantt: %v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	half := strings.Repeat("#", ganttMaxWidth/2)
	dots := strings.Repeat(".", ganttMaxWidth/2)
	if want := "P1 |" + half + dots + "|"; lines[0] != want {
		t.Errorf("P1 row = %q, want %q", lines[0], want)
	}
	if want := "P2 |" + dots + half + "|"; lines[1] != want {
		t.Errorf("P2 row = %q, want %q", lines[1], want)
	}
	if !strings.HasSuffix(lines[2], "960000  (1 cell = 8000 units)") {
		t.Errorf("axis = %q", lines[2])
	}
}

func TestIsTerminal_Buffer(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("bytes.Buffer reported as terminal")
	}
}

func TestProcessTable(t *testing.T) {
	e := scheduler.NewEngine()
	e.Configure(2, []int{4, 2, 6})
	e.Tick()
	e.Tick()

	var buf bytes.Buffer
	if err := New(&buf).ProcessTable(e.Processes()); err != nil {
		t.Fatalf("ProcessTable: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3", len(lines))
	}
	if f := strings.Fields(lines[0]); f[0] != "ID" || f[len(f)-1] != "STATUS" {
		t.Errorf("header = %q", lines[0])
	}

	tests := []struct {
		line int
		want []string
	}{
		// ID ARRIVAL EXEC REMAINING WAITING TURNAROUND IR PC STATUS
		{1, []string{"P1", "0", "4", "2", "-", "-", "ADD", "2", "HALTED"}},
		{2, []string{"P2", "1", "2", "0", "1", "3", "ADD", "2", "COMPLETED"}},
		{3, []string{"P3", "2", "6", "6", "-", "-", "LOAD", "0", "WAITING"}},
	}
	for _, tt := range tests {
		got := strings.Fields(lines[tt.line])
		if strings.Join(got, " ") != strings.Join(tt.want, " ") {
			t.Errorf("row %d = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIterationCards(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf).IterationCards(finishedEngine(t).IterationHistory()); err != nil {
		t.Fatalf("IterationCards: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "Iteration ") != 6 {
		t.Errorf("cards = %d, want 6", strings.Count(out, "Iteration "))
	}
	if !strings.Contains(out, "Iteration 6 (t=12)") {
		t.Errorf("missing final card: %s", out)
	}
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf).Summary(finishedEngine(t).Summary()); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	for _, want := range []string{"12", "3/3", "3.00", "7.00", "0.250"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, buf.String())
		}
	}
}

func TestTickLine(t *testing.T) {
	tests := []struct {
		name string
		res  model.TickResult
		want string
	}{
		{
			"dispatch",
			model.TickResult{Iteration: 1, Time: 2, Dispatched: "P1", Outcome: model.ProcessStateHalted,
				Queue: []string{"P2", "P3", "P1"}},
			"[1] t=2 P1 -> HALTED  queue: P2 P3 P1\n",
		},
		{
			"finished",
			model.TickResult{Iteration: 6, Time: 12, Finished: true},
			"[6] t=12 finished\n",
		},
		{
			"idle",
			model.TickResult{Idle: true},
			"[0] t=0 idle\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf).TickLine(tt.res)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
