package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/rrsim/internal/config"
	"github.com/me/rrsim/internal/session"
	"github.com/me/rrsim/internal/store"
	"github.com/me/rrsim/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testServer(t *testing.T, opts ...Option) (*Server, *session.Manager) {
	t.Helper()
	logger := testLogger()
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mgr := session.NewManager(st, logger, session.WithMaxProcesses(8))
	return New(config.DefaultServerConfig(), mgr, nil, logger, opts...), mgr
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func doGet(t *testing.T, srv *Server, path string) envelope {
	t.Helper()
	return do(t, srv, "GET", path, "", http.StatusOK)
}

func createSimulation(t *testing.T, srv *Server, body string) model.Simulation {
	t.Helper()
	env := do(t, srv, "POST", "/api/v1/simulations/", body, http.StatusCreated)
	var sim model.Simulation
	if err := json.Unmarshal(env.Data, &sim); err != nil {
		t.Fatalf("decode simulation: %v", err)
	}
	return sim
}

func TestDiscovery(t *testing.T) {
	srv, _ := testServer(t)
	env := doGet(t, srv, "/api/v1/")
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	var data struct {
		Name      string `json:"name"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Name != "RRSim API" {
		t.Errorf("name = %q, want RRSim API", data.Name)
	}
	if len(data.Endpoints) < 9 {
		t.Errorf("endpoints count = %d, want >= 9", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	env := doGet(t, srv, "/api/v1/health")

	var data struct {
		Status    string `json:"status"`
		Scheduler string `json:"scheduler"`
		Store     string `json:"store"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" || data.Store != "sqlite" {
		t.Errorf("health = %+v", data)
	}
	if data.Scheduler != "disabled" {
		t.Errorf("scheduler = %q, want disabled with nil scheduler", data.Scheduler)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if id := w.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req_") {
		t.Errorf("X-Request-ID = %q, want req_ prefix", id)
	}
}

func TestCreateSimulation(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"name":"demo","quantum":2,"execution_times":[4,2,6]}`)

	if !strings.HasPrefix(sim.ID, "sim_") {
		t.Errorf("id = %q, want sim_ prefix", sim.ID)
	}
	if sim.State != model.SimulationStatePending {
		t.Errorf("state = %s, want PENDING", sim.State)
	}
	if len(sim.Processes) != 3 || sim.Processes[2].ID != "P3" {
		t.Errorf("processes = %+v", sim.Processes)
	}
	if strings.Join(sim.Queue, ",") != "P1,P2,P3" {
		t.Errorf("queue = %v, want [P1 P2 P3]", sim.Queue)
	}
}

func TestCreateSimulation_StringCoercion(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":1,"execution_times":["3","", "abc", 2]}`)

	want := []int{3, 0, 0, 2}
	for i, w := range want {
		if sim.ExecutionTimes[i] != w {
			t.Errorf("execution_times[%d] = %d, want %d", i, sim.ExecutionTimes[i], w)
		}
	}
}

func TestCreateSimulation_DefaultQuantum(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"execution_times":[1]}`)
	if sim.Quantum != config.DefaultServerConfig().Simulation.Quantum {
		t.Errorf("quantum = %d, want server default", sim.Quantum)
	}
}

func TestCreateSimulation_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"explicit zero quantum", `{"quantum":0,"execution_times":[1]}`},
		{"negative quantum", `{"quantum":-1,"execution_times":[1]}`},
		{"quantum above clock bound", `{"quantum":2000000000,"execution_times":[1]}`},
		{"workload past clock bound", `{"quantum":1000000,"execution_times":[1,1]}`},
		{"out of range time string", `{"quantum":2,"execution_times":["-99999999999999999999"]}`},
		{"negative time", `{"quantum":2,"execution_times":[-3]}`},
		{"fractional time", `{"quantum":2,"execution_times":[1.5]}`},
		{"quantum as text", `{"quantum":"two","execution_times":[1]}`},
		{"too many processes", `{"quantum":2,"execution_times":[1,1,1,1,1,1,1,1,1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, srv, "POST", "/api/v1/simulations/", tt.body, http.StatusBadRequest)
			if env.Status != "error" || env.Error == nil || env.Error.Code != model.ErrValidation {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestGetSimulation_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/simulations/sim_nope", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
	do(t, srv, "POST", "/api/v1/simulations/sim_nope/tick", "", http.StatusNotFound)
}

func TestTickAndGantt(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":2,"execution_times":[4,2,6]}`)
	base := "/api/v1/simulations/" + sim.ID

	env := do(t, srv, "POST", base+"/tick", "", http.StatusOK)
	var res model.TickResult
	json.Unmarshal(env.Data, &res)
	if res.Iteration != 1 || res.Dispatched != "P1" || res.Outcome != model.ProcessStateHalted {
		t.Errorf("tick = %+v", res)
	}

	env = do(t, srv, "POST", base+"/tick", "", http.StatusOK)
	json.Unmarshal(env.Data, &res)
	if res.Dispatched != "P2" || res.Outcome != model.ProcessStateCompleted || res.Time != 4 {
		t.Errorf("second tick = %+v", res)
	}

	env = doGet(t, srv, base+"/gantt")
	var segs []model.TimelineEntry
	json.Unmarshal(env.Data, &segs)
	if len(segs) != 4 {
		t.Fatalf("gantt segments = %d, want 4", len(segs))
	}
	if segs[2].ProcessID != "P2" || segs[2].Start != 2 || segs[2].End != 4 {
		t.Errorf("segs[2] = %+v", segs[2])
	}

	env = doGet(t, srv, base+"/iterations")
	var hist []model.IterationSnapshot
	json.Unmarshal(env.Data, &hist)
	if len(hist) != 2 || hist[1].Time != 4 {
		t.Errorf("iterations = %+v", hist)
	}
}

func TestGanttEmpty(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":2,"execution_times":[1]}`)
	env := doGet(t, srv, "/api/v1/simulations/"+sim.ID+"/gantt")
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestRunSimulation(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":2,"execution_times":[4,2,6]}`)

	env := do(t, srv, "POST", "/api/v1/simulations/"+sim.ID+"/run", "", http.StatusOK)
	var run struct {
		Ticks      int              `json:"ticks"`
		Simulation model.Simulation `json:"simulation"`
	}
	json.Unmarshal(env.Data, &run)
	if run.Ticks != 6 {
		t.Errorf("ticks = %d, want 6", run.Ticks)
	}
	done := run.Simulation
	if done.State != model.SimulationStateFinished || done.CurrentTime != 12 {
		t.Errorf("state/time = %s/%d, want FINISHED/12", done.State, done.CurrentTime)
	}
	completion := map[string]int{"P1": 8, "P2": 4, "P3": 12}
	for _, p := range done.Processes {
		if p.CompletionTime == nil || *p.CompletionTime != completion[p.ID] {
			t.Errorf("%s completion = %v, want %d", p.ID, p.CompletionTime, completion[p.ID])
		}
	}

	// Play on a finished simulation is an illegal transition.
	env = do(t, srv, "PUT", "/api/v1/simulations/"+sim.ID+"/play", "", http.StatusConflict)
	if env.Error.Code != model.ErrConflict {
		t.Errorf("code = %s, want CONFLICT", env.Error.Code)
	}
}

func TestPlayPause(t *testing.T) {
	srv, mgr := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":1,"execution_times":[3,3]}`)
	base := "/api/v1/simulations/" + sim.ID

	do(t, srv, "PUT", base+"/pause", "", http.StatusConflict)

	env := do(t, srv, "PUT", base+"/play", "", http.StatusOK)
	var got model.Simulation
	json.Unmarshal(env.Data, &got)
	if got.State != model.SimulationStateRunning {
		t.Errorf("state = %s, want RUNNING", got.State)
	}

	if err := mgr.Step(context.Background(), sim.ID); err != nil {
		t.Fatalf("Step: %v", err)
	}

	env = do(t, srv, "PUT", base+"/pause", "", http.StatusOK)
	json.Unmarshal(env.Data, &got)
	if got.State != model.SimulationStatePaused || got.Iterations != 1 {
		t.Errorf("paused = %s/%d, want PAUSED/1", got.State, got.Iterations)
	}
}

func TestListSimulations(t *testing.T) {
	srv, _ := testServer(t)
	for i := 0; i < 3; i++ {
		createSimulation(t, srv, `{"quantum":1,"execution_times":[1]}`)
	}

	env := doGet(t, srv, "/api/v1/simulations/?limit=2")
	var sims []model.Simulation
	json.Unmarshal(env.Data, &sims)
	if len(sims) != 2 {
		t.Errorf("len = %d, want 2", len(sims))
	}
	if env.Pagination == nil || env.Pagination.Total != 3 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	env = doGet(t, srv, "/api/v1/simulations/?state=FINISHED")
	if env.Pagination.Total != 0 || string(env.Data) != "[]" {
		t.Errorf("finished list = %s (total %d)", env.Data, env.Pagination.Total)
	}

	do(t, srv, "GET", "/api/v1/simulations/?limit=ten", "", http.StatusBadRequest)
	do(t, srv, "GET", "/api/v1/simulations/?state=DONE", "", http.StatusBadRequest)
}

func TestDeleteSimulation(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":1,"execution_times":[2]}`)
	base := "/api/v1/simulations/" + sim.ID

	do(t, srv, "POST", base+"/tick", "", http.StatusOK)
	do(t, srv, "DELETE", base, "", http.StatusOK)
	do(t, srv, "GET", base, "", http.StatusNotFound)
	do(t, srv, "DELETE", base, "", http.StatusNotFound)
}

// readEvents collects SSE event names from body until n events or EOF.
func readEvents(t *testing.T, body *bufio.Scanner, n int) []string {
	t.Helper()
	var events []string
	for len(events) < n && body.Scan() {
		if name, ok := strings.CutPrefix(body.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	return events
}

func TestSSE_FinishedSimulation(t *testing.T) {
	srv, _ := testServer(t)
	sim := createSimulation(t, srv, `{"quantum":2,"execution_times":[]}`)

	req := httptest.NewRequest("GET", "/api/v1/sse/simulations/"+sim.ID, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	events := readEvents(t, bufio.NewScanner(w.Body), 10)
	if strings.Join(events, ",") != "init,complete" {
		t.Errorf("events = %v, want [init complete]", events)
	}
}

func TestSSE_StreamsTicks(t *testing.T) {
	srv, mgr := testServer(t, WithSSEInterval(5*time.Millisecond))
	sim := createSimulation(t, srv, `{"quantum":1,"execution_times":[1]}`)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/sse/simulations/" + sim.ID)
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	defer resp.Body.Close()
	scanner := bufio.NewScanner(resp.Body)

	if got := readEvents(t, scanner, 1); len(got) != 1 || got[0] != "init" {
		t.Fatalf("first event = %v, want init", got)
	}

	if _, err := mgr.Tick(context.Background(), sim.ID); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if got := readEvents(t, scanner, 2); strings.Join(got, ",") != "tick,complete" {
		t.Errorf("events = %v, want [tick complete]", got)
	}
}

func TestSSE_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	do(t, srv, "GET", "/api/v1/sse/simulations/sim_nope", "", http.StatusNotFound)
}
