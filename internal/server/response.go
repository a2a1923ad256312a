package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/me/rrsim/internal/session"
	"github.com/me/rrsim/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondSimulationError maps manager errors onto HTTP statuses.
func respondSimulationError(w http.ResponseWriter, reqID, id string, err error) {
	var transErr *model.InvalidTransitionError
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("simulation", id))
	case errors.Is(err, model.ErrInvalidInput):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
	case errors.As(err, &transErr), errors.Is(err, model.ErrNotConfigured):
		respondError(w, reqID, http.StatusConflict, model.NewConflictError(err.Error()))
	default:
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
