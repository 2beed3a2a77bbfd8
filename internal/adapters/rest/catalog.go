package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/vibereco/internal/core/services"
)

const defaultCatalogK = 5

// CatalogRecommend handles GET /catalog/recommendations?title=...&k=...
func (h *Handler) CatalogRecommend(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, http.StatusNotImplemented, "static catalog not configured")
		return
	}

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	k := defaultCatalogK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "k must be an integer between 1 and 100")
			return
		}
		k = n
	}

	neighbors, err := h.catalog.RecommendByTitle(r.Context(), title, k)
	switch {
	case errors.Is(err, services.ErrTrackNotInCatalog):
		writeErrorWithCode(w, http.StatusNotFound, err.Error(), "NOT_IN_CATALOG")
		return
	case errors.Is(err, services.ErrCatalogTooSmall):
		writeErrorWithCode(w, http.StatusConflict, err.Error(), "CATALOG_TOO_SMALL")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, neighbors)
}
