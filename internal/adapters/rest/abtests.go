package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

// blindTrack hides everything that could reveal which ordering is which.
type blindTrack struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ExternalID string `json:"externalId"`
}

type blindTestResponse struct {
	TestID    string       `json:"testId"`
	SeedQuery string       `json:"seedQuery"`
	A         []blindTrack `json:"a"`
	B         []blindTrack `json:"b"`
}

type voteRequest struct {
	Choice domain.Label  `json:"choice" validate:"required,oneof=A B"`
	Scores domain.Scores `json:"scores" validate:"required"`
}

func blind(tracks []domain.Track) []blindTrack {
	out := make([]blindTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, blindTrack{Title: t.Title, Artist: t.Artist, ExternalID: t.ExternalID})
	}
	return out
}

// CreateABTest handles POST /abtests: runs the pipeline and returns both
// orderings under neutral labels.
func (h *Handler) CreateABTest(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.runner.Run(r.Context(), req.Query, h.limitOf(req))
	if !res.OK {
		writeErrorWithCode(w, http.StatusUnprocessableEntity, res.Message, errCodeNoResult)
		return
	}
	catalog, reranked := res.Orderings()
	setup := h.abtests.PrepareBlindTest(req.Query, catalog, reranked)

	h.mu.Lock()
	h.evictPending(time.Now())
	h.pending[setup.TestID] = setup
	h.mu.Unlock()

	w.Header().Set("Location", "/abtests/"+setup.TestID)
	writeJSON(w, http.StatusCreated, blindTestResponse{
		TestID:    setup.TestID,
		SeedQuery: setup.SeedQuery,
		A:         blind(setup.A),
		B:         blind(setup.B),
	})
}

// Vote handles POST /abtests/{id}/votes. The response reveals the mapping.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req voteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Claim the setup so a concurrent vote on the same test gets 404.
	h.mu.Lock()
	setup, ok := h.pending[id]
	delete(h.pending, id)
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "blind test not found or already voted")
		return
	}

	rec, err := h.abtests.SaveVote(r.Context(), setup, req.Choice, req.Scores, "")
	if err != nil {
		h.mu.Lock()
		h.pending[id] = setup
		h.mu.Unlock()
	}
	if errors.Is(err, domain.ErrInvalidVote) {
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), "INVALID_VOTE")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ABTestStats handles GET /abtests/stats.
func (h *Handler) ABTestStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.abtests.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stats == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// evictPending drops setups nobody voted on. Callers hold h.mu.
func (h *Handler) evictPending(now time.Time) {
	for id, s := range h.pending {
		if now.Sub(s.CreatedAt) > pendingTTL {
			delete(h.pending, id)
		}
	}
}
