package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "RRSim API",
		Version:     "v1",
		Description: "Round-robin CPU scheduling simulator: step, auto-play and inspect simulations",
		Endpoints: []endpointInfo{
			{"/api/v1/simulations", []string{"GET", "POST"}, "List simulations or create one from a quantum and execution times"},
			{"/api/v1/simulations/{id}", []string{"GET", "DELETE"}, "Simulation detail with process table, ready queue and summary"},
			{"/api/v1/simulations/{id}/tick", []string{"POST"}, "Advance one quantum"},
			{"/api/v1/simulations/{id}/run", []string{"POST"}, "Advance until every process has completed"},
			{"/api/v1/simulations/{id}/play", []string{"PUT"}, "Start auto-play"},
			{"/api/v1/simulations/{id}/pause", []string{"PUT"}, "Pause auto-play"},
			{"/api/v1/simulations/{id}/gantt", []string{"GET"}, "Gantt chart segments"},
			{"/api/v1/simulations/{id}/iterations", []string{"GET"}, "Per-iteration process snapshots"},
			{"/api/v1/sse/simulations/{id}", []string{"GET"}, "Server-Sent Events stream of ticks"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
