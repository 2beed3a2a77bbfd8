package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/vibereco/internal/worker"
)

const errCodeNoResult = "NO_RESULT"

type runRequest struct {
	Query string `json:"query" validate:"required,max=300"`
	Limit int    `json:"limit" validate:"omitempty,min=2,max=100"`
}

type runAccepted struct {
	ID string `json:"id"`
}

func (h *Handler) limitOf(req runRequest) int {
	if req.Limit > 0 {
		return req.Limit
	}
	return h.defaultLimit
}

// Recommend handles POST /recommendations. The pipeline runs inline, so
// callers should expect minutes, not milliseconds.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.runner.Run(r.Context(), req.Query, h.limitOf(req))
	if !res.OK {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SubmitRun handles POST /runs.
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusNotImplemented, "run queue not configured")
		return
	}
	var req runRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.queue.Submit(req.Query, h.limitOf(req))
	switch {
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Location", "/runs/"+id)
	writeJSON(w, http.StatusAccepted, runAccepted{ID: id})
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusNotImplemented, "run queue not configured")
		return
	}
	job, ok := h.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
