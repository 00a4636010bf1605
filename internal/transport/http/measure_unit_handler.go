package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetMeasureUnit returns one measure unit
func (h *Handler) GetMeasureUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.deps.MeasureUnits.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, unit)
}
