package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/rrsim/pkg/model"
)

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.CreateSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	quantum := s.config.Simulation.Quantum
	if req.Quantum != nil {
		quantum = *req.Quantum
	}
	if err := model.ValidateQuantum(quantum); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid quantum",
				model.FieldError{Field: "quantum", Message: fmt.Sprintf("quantum must be an integer between 1 and %d", model.MaxSimulatedTime)}))
		return
	}

	sim, err := s.manager.Create(r.Context(), req.Name, quantum, model.Ints(req.ExecutionTimes))
	if err != nil {
		respondSimulationError(w, reqID, "", err)
		return
	}
	respondCreated(w, reqID, sim)
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	sims, total, err := s.manager.List(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if sims == nil {
		sims = []*model.Simulation{}
	}
	respondList(w, reqID, sims, model.NewPagination(total, len(sims), opts))
}

func parseListOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: "limit", Message: "limit must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: "offset", Message: "offset must be an integer"})
		}
		opts.Offset = n
	}
	if v := q.Get("state"); v != "" {
		if !model.SimulationState(v).IsValid() {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: "state", Message: "unknown simulation state " + v})
		}
		opts.State = v
	}
	opts.Clamp()
	return opts, nil
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sim, err := s.manager.Get(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, sim)
}

func (s *Server) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.manager.Delete(r.Context(), id); err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleTickSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	res, err := s.manager.Tick(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, res)
}

type runResponse struct {
	Ticks      int               `json:"ticks"`
	Simulation *model.Simulation `json:"simulation"`
}

func (s *Server) handleRunSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sim, ticks, err := s.manager.RunToCompletion(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, runResponse{Ticks: ticks, Simulation: sim})
}

func (s *Server) handlePlaySimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sim, err := s.manager.Play(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, sim)
}

func (s *Server) handlePauseSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sim, err := s.manager.Pause(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, sim)
}

func (s *Server) handleGetGantt(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	segs, err := s.manager.Gantt(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, segs)
}

func (s *Server) handleGetIterations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	hist, err := s.manager.Iterations(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}
	respondOK(w, reqID, hist)
}
