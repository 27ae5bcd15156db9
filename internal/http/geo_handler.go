package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Zyrax101/ThreadHeaven/internal/geo"
)

type GeoHandler struct {
	suggesters *geo.Pool
}

func NewGeoHandler(suggesters *geo.Pool) *GeoHandler {
	return &GeoHandler{suggesters: suggesters}
}

type SuggestResponse struct {
	Query       string           `json:"query"`
	Suggestions []geo.Suggestion `json:"suggestions"`
}

// Suggest serves debounced address completion. Clients call it per
// keystroke; a request overtaken by a newer one from the same session
// gets 204 and drops the result. Other sessions' searches are never
// affected.
func (h *GeoHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter q is required")
		return
	}

	suggester := h.suggesters.Suggester(getSessionID(r.Context()))
	suggestions, err := suggester.Search(r.Context(), query)
	if errors.Is(err, geo.ErrSuperseded) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadGateway, "geocoder_unavailable", "address lookup failed")
		return
	}

	if suggestions == nil {
		suggestions = []geo.Suggestion{}
	}
	respondJSON(w, http.StatusOK, SuggestResponse{
		Query:       query,
		Suggestions: suggestions,
	})
}
