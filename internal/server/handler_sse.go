package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/rrsim/internal/session"
	"github.com/me/rrsim/pkg/model"
)

// handleSSESimulation streams simulation progress via Server-Sent Events.
// GET /api/v1/sse/simulations/{id}
//
// Events: "init" with the current simulation, "tick" whenever the iteration
// count moves, and "complete" once the simulation is FINISHED.
func (s *Server) handleSSESimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reqID := RequestIDFromContext(r.Context())

	sim, err := s.manager.Get(r.Context(), id)
	if err != nil {
		respondSimulationError(w, reqID, id, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	if err := sendSSEEvent(w, flusher, "init", sim); err != nil {
		s.logger.Debug("sse client disconnected", "id", id, "error", err)
		return
	}
	if sim.State.IsTerminal() {
		sendSSEEvent(w, flusher, "complete", summaryEvent(sim))
		return
	}

	ticker := time.NewTicker(s.sseInterval)
	defer ticker.Stop()

	lastIteration := sim.Iterations

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			sim, err = s.manager.Get(r.Context(), id)
			if errors.Is(err, session.ErrNotFound) {
				return
			}
			if err != nil {
				s.logger.Error("sse fetch error", "id", id, "error", err)
				continue
			}

			if sim.Iterations != lastIteration {
				if err := sendSSEEvent(w, flusher, "tick", sim); err != nil {
					s.logger.Debug("sse client disconnected", "id", id)
					return
				}
				lastIteration = sim.Iterations
			} else {
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
			}

			if sim.State.IsTerminal() {
				sendSSEEvent(w, flusher, "complete", summaryEvent(sim))
				return
			}
		}
	}
}

type completeEvent struct {
	ID      string         `json:"id"`
	State   string         `json:"state"`
	Summary *model.Summary `json:"summary"`
}

func summaryEvent(sim *model.Simulation) completeEvent {
	return completeEvent{ID: sim.ID, State: string(sim.State), Summary: sim.Summary}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
